package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // DISPLAY_TIMEZONE must resolve in slim images

	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server        ServerConfig
	Logging       LoggingConfig
	Database      DatabaseConfig
	Twitter       TwitterConfig
	OpenAI        OpenAIConfig
	Pipeline      PipelineConfig
	Publisher     PublisherConfig
	Notifications NotificationsConfig
	Auth          AuthConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig describes the content repository connection.
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
}

// TwitterConfig holds search and posting credentials. Search needs the bearer
// token; posting needs all four OAuth 1.0a values.
type TwitterConfig struct {
	BearerToken       string
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
}

// CanPost reports whether user-context credentials are present.
func (t TwitterConfig) CanPost() bool {
	return t.APIKey != "" && t.APISecret != "" && t.AccessToken != "" && t.AccessTokenSecret != ""
}

// ExtractionStrategy selects the primary extraction path.
type ExtractionStrategy string

const (
	// StrategyAuto uses the model when an API key is configured.
	StrategyAuto  ExtractionStrategy = "auto"
	StrategyRegex ExtractionStrategy = "regex"
	StrategyAI    ExtractionStrategy = "ai"
)

// OpenAIConfig configures the optional AI-assisted extraction path.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
	Strategy    ExtractionStrategy
}

// UseAI reports whether the AI path should be wired in.
func (o OpenAIConfig) UseAI() bool {
	switch o.Strategy {
	case StrategyRegex:
		return false
	default:
		return o.APIKey != ""
	}
}

// PipelineConfig configures scheduled ingestion passes.
type PipelineConfig struct {
	Interval        time.Duration
	MaxResults      int
	QueryDelay      time.Duration
	SubmitterID     string
	SearchRetries   int
	RateLimitBuffer time.Duration
	// Queries overrides the built-in query set when non-empty.
	Queries []string
}

// PublisherConfig configures the post-back pass.
type PublisherConfig struct {
	Enabled         bool
	Interval        time.Duration
	Limit           int
	BatchSize       int
	BatchDelay      time.Duration
	ThrottleBackoff time.Duration
	Location        *time.Location
}

// NotificationsConfig configures event.created dispatch. An empty URL selects
// the log-only notifier.
type NotificationsConfig struct {
	AMQPURL  string
	Exchange string
}

// AuthConfig configures the operator login for manual triggers.
type AuthConfig struct {
	JWTSecret         string
	AdminPasswordHash string
	TokenTTL          time.Duration
}

// Enabled reports whether the operator API can issue tokens.
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != "" && a.AdminPasswordHash != ""
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultMaxConnections     = 20
	defaultMaxIdleConnections = 5

	defaultOpenAIModel       = "gpt-4o-mini"
	defaultOpenAITemperature = 0.2
	defaultOpenAITimeout     = 60 * time.Second

	defaultIngestInterval  = 6 * time.Hour
	defaultMaxResults      = 100
	defaultQueryDelay      = 5 * time.Second
	defaultSubmitterID     = "system"
	defaultSearchRetries   = 1
	defaultRateLimitBuffer = 2 * time.Second

	defaultPublishInterval = time.Hour
	defaultPublishLimit    = 10
	defaultPublishBatch    = 5
	defaultPublishDelay    = 5 * time.Second
	defaultThrottleBackoff = 60 * time.Second
	defaultTimezone        = "Africa/Lagos"

	defaultExchange = "eventscout.events"
	defaultTokenTTL = 12 * time.Hour
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			MaxConnections:     defaultMaxConnections,
			MaxIdleConnections: defaultMaxIdleConnections,
		},
		Twitter: TwitterConfig{
			BearerToken:       os.Getenv("TWITTER_BEARER_TOKEN"),
			APIKey:            os.Getenv("TWITTER_APP_KEY"),
			APISecret:         os.Getenv("TWITTER_APP_SECRET"),
			AccessToken:       os.Getenv("TWITTER_ACCESS_TOKEN"),
			AccessTokenSecret: os.Getenv("TWITTER_ACCESS_SECRET"),
		},
		OpenAI: OpenAIConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Model:       getEnv("OPENAI_MODEL", defaultOpenAIModel),
			Temperature: defaultOpenAITemperature,
			Timeout:     defaultOpenAITimeout,
			Strategy:    StrategyAuto,
		},
		Pipeline: PipelineConfig{
			Interval:        defaultIngestInterval,
			MaxResults:      defaultMaxResults,
			QueryDelay:      defaultQueryDelay,
			SubmitterID:     getEnv("INGEST_SUBMITTER_ID", defaultSubmitterID),
			SearchRetries:   defaultSearchRetries,
			RateLimitBuffer: defaultRateLimitBuffer,
		},
		Publisher: PublisherConfig{
			Interval:        defaultPublishInterval,
			Limit:           defaultPublishLimit,
			BatchSize:       defaultPublishBatch,
			BatchDelay:      defaultPublishDelay,
			ThrottleBackoff: defaultThrottleBackoff,
		},
		Notifications: NotificationsConfig{
			AMQPURL:  os.Getenv("AMQP_URL"),
			Exchange: getEnv("AMQP_EXCHANGE", defaultExchange),
		},
		Auth: AuthConfig{
			JWTSecret:         os.Getenv("ADMIN_JWT_SECRET"),
			AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
			TokenTTL:          defaultTokenTTL,
		},
	}

	if err := loadServer(&cfg.Server); err != nil {
		return Config{}, err
	}
	if err := loadLogging(&cfg.Logging); err != nil {
		return Config{}, err
	}
	if err := loadDatabase(&cfg.Database); err != nil {
		return Config{}, err
	}
	if err := loadOpenAI(&cfg.OpenAI); err != nil {
		return Config{}, err
	}
	if err := loadPipeline(&cfg.Pipeline); err != nil {
		return Config{}, err
	}
	if err := loadPublisher(&cfg.Publisher); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("ADMIN_TOKEN_HOURS"); v != "" {
		hours, err := parsePositiveInt(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ADMIN_TOKEN_HOURS: %w", err)
		}
		cfg.Auth.TokenTTL = time.Duration(hours) * time.Hour
	}

	return cfg, nil
}

func loadServer(s *ServerConfig) error {
	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		s.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		s.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		s.ShutdownTimeout = d
	}
	return nil
}

func loadLogging(l *LoggingConfig) error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		l.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			l.Format = v
		default:
			return fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}
	return nil
}

func loadDatabase(d *DatabaseConfig) error {
	url, err := buildDatabaseURL()
	if err != nil {
		return err
	}
	d.URL = url

	if v := os.Getenv("DB_MAX_CONNECTIONS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return fmt.Errorf("invalid DB_MAX_CONNECTIONS: %w", err)
		}
		d.MaxConnections = n
	}
	if v := os.Getenv("DB_MAX_IDLE_CONNECTIONS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return fmt.Errorf("invalid DB_MAX_IDLE_CONNECTIONS: %w", err)
		}
		d.MaxIdleConnections = n
	}
	return nil
}

// buildDatabaseURL prefers DATABASE_URL and otherwise builds a Cloud SQL unix
// socket DSN from INSTANCE_CONNECTION_NAME. Neither being set leaves the URL
// empty; the caller decides whether that is fatal.
func buildDatabaseURL() (string, error) {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return dbURL, nil
	}

	instance := os.Getenv("INSTANCE_CONNECTION_NAME")
	if instance == "" {
		return "", nil
	}

	user := os.Getenv("DB_USER")
	name := os.Getenv("DB_NAME")
	if user == "" || name == "" {
		return "", fmt.Errorf("DB_USER and DB_NAME must be set when using INSTANCE_CONNECTION_NAME")
	}

	socket := "/cloudsql/" + instance
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable", socket, user, password, name), nil
	}
	// IAM authentication
	return fmt.Sprintf("host=%s user=%s dbname=%s sslmode=disable", socket, user, name), nil
}

// RedactedURL hides the password of a postgres:// URL or key=value DSN for logging.
func (d DatabaseConfig) RedactedURL() string {
	u := d.URL
	if strings.HasPrefix(u, "postgresql://") || strings.HasPrefix(u, "postgres://") {
		parts := strings.SplitN(u, "@", 2)
		if len(parts) == 2 {
			userParts := strings.Split(parts[0], ":")
			if len(userParts) >= 3 {
				return userParts[0] + ":" + userParts[1] + ":***@" + parts[1]
			}
		}
		return u
	}

	fields := strings.Fields(u)
	for i, f := range fields {
		if strings.HasPrefix(f, "password=") {
			fields[i] = "password=***"
		}
	}
	return strings.Join(fields, " ")
}

func loadOpenAI(o *OpenAIConfig) error {
	if v := os.Getenv("OPENAI_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 32)
		if err != nil || t < 0 || t > 2 {
			return fmt.Errorf("invalid OPENAI_TEMPERATURE: must be between 0 and 2")
		}
		o.Temperature = float32(t)
	}

	if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid OPENAI_TIMEOUT_SECONDS: %w", err)
		}
		o.Timeout = d
	}

	if v := os.Getenv("EXTRACTION_STRATEGY"); v != "" {
		switch s := ExtractionStrategy(strings.ToLower(v)); s {
		case StrategyAuto, StrategyRegex, StrategyAI:
			o.Strategy = s
		default:
			return fmt.Errorf("invalid EXTRACTION_STRATEGY: must be one of auto, regex, ai")
		}
	}

	if o.Strategy == StrategyAI && o.APIKey == "" {
		return fmt.Errorf("EXTRACTION_STRATEGY=ai requires OPENAI_API_KEY")
	}
	return nil
}

func loadPipeline(p *PipelineConfig) error {
	if v := os.Getenv("INGEST_INTERVAL_MINUTES"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return fmt.Errorf("invalid INGEST_INTERVAL_MINUTES: %w", err)
		}
		p.Interval = time.Duration(n) * time.Minute
	}

	if v := os.Getenv("INGEST_MAX_RESULTS"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil || n < 10 || n > 100 {
			return fmt.Errorf("invalid INGEST_MAX_RESULTS: must be between 10 and 100")
		}
		p.MaxResults = n
	}

	if v := os.Getenv("INGEST_QUERY_DELAY_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid INGEST_QUERY_DELAY_SECONDS: %w", err)
		}
		p.QueryDelay = d
	}

	if v := os.Getenv("SEARCH_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid SEARCH_RETRIES: must be a non-negative integer")
		}
		p.SearchRetries = n
	}

	if v := os.Getenv("RATE_LIMIT_BUFFER_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil || d < time.Second {
			return fmt.Errorf("invalid RATE_LIMIT_BUFFER_SECONDS: must be at least 1")
		}
		p.RateLimitBuffer = d
	}

	if path := os.Getenv("QUERIES_FILE"); path != "" {
		queries, err := LoadQueries(path)
		if err != nil {
			return err
		}
		p.Queries = queries
	}
	return nil
}

func loadPublisher(p *PublisherConfig) error {
	if v := os.Getenv("PUBLISH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid PUBLISH_ENABLED: %w", err)
		}
		p.Enabled = enabled
	}

	if v := os.Getenv("PUBLISH_INTERVAL_MINUTES"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return fmt.Errorf("invalid PUBLISH_INTERVAL_MINUTES: %w", err)
		}
		p.Interval = time.Duration(n) * time.Minute
	}

	if v := os.Getenv("PUBLISH_LIMIT"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return fmt.Errorf("invalid PUBLISH_LIMIT: %w", err)
		}
		p.Limit = n
	}

	if v := os.Getenv("PUBLISH_BATCH_SIZE"); v != "" {
		n, err := parsePositiveInt(v)
		if err != nil {
			return fmt.Errorf("invalid PUBLISH_BATCH_SIZE: %w", err)
		}
		p.BatchSize = n
	}

	if v := os.Getenv("PUBLISH_BATCH_DELAY_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid PUBLISH_BATCH_DELAY_SECONDS: %w", err)
		}
		p.BatchDelay = d
	}

	if v := os.Getenv("PUBLISH_THROTTLE_BACKOFF_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("invalid PUBLISH_THROTTLE_BACKOFF_SECONDS: %w", err)
		}
		p.ThrottleBackoff = d
	}

	loc, err := time.LoadLocation(getEnv("DISPLAY_TIMEZONE", defaultTimezone))
	if err != nil {
		return fmt.Errorf("invalid DISPLAY_TIMEZONE: %w", err)
	}
	p.Location = loc
	return nil
}

type queriesFile struct {
	Queries []string `yaml:"queries"`
}

// LoadQueries reads a YAML file of the form `queries: [...]`.
func LoadQueries(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read queries file: %w", err)
	}

	var f queriesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse queries file: %w", err)
	}

	queries := make([]string, 0, len(f.Queries))
	for _, q := range f.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("queries file %s lists no queries", path)
	}
	return queries, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return n, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
