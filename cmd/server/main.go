package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventscout/eventscout/internal/api"
	"github.com/eventscout/eventscout/internal/auth"
	"github.com/eventscout/eventscout/internal/classifier"
	"github.com/eventscout/eventscout/internal/config"
	"github.com/eventscout/eventscout/internal/database"
	"github.com/eventscout/eventscout/internal/enrichment"
	"github.com/eventscout/eventscout/internal/extraction"
	"github.com/eventscout/eventscout/internal/inference"
	"github.com/eventscout/eventscout/internal/ingestion"
	"github.com/eventscout/eventscout/internal/logging"
	"github.com/eventscout/eventscout/internal/metrics"
	"github.com/eventscout/eventscout/internal/notify"
	"github.com/eventscout/eventscout/internal/patterns"
	"github.com/eventscout/eventscout/internal/scheduler"
	"github.com/eventscout/eventscout/internal/server"
	"github.com/eventscout/eventscout/internal/social"
	"github.com/eventscout/eventscout/internal/validation"
	"github.com/eventscout/eventscout/migrations"
	"github.com/joho/godotenv"
)

// targetRegion is the country the AI prompt restricts events to.
const targetRegion = "Nigeria"

// eventRepository is the content repository seen by both the ingestor and
// the publisher.
type eventRepository interface {
	ingestion.EventStore
	social.PublishStore
}

// stores groups the repositories shared by the pipeline, the publisher and
// the operator API. The log stores stay nil without a database.
type stores struct {
	events     eventRepository
	cursors    ingestion.CursorStore
	activities *database.ActivityLogRepository
	errors     *database.IngestionErrorRepository
	inference  *database.InferenceLogRepository
}

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}
	if envErr != nil {
		logger.Debug("no .env file loaded, using environment variables")
	}

	logger.Info("starting eventscout")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, st, err := openStores(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	collector, err := metrics.New()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	lib, err := patterns.Default()
	if err != nil {
		logger.Error("failed to load pattern library", "error", err)
		os.Exit(1)
	}
	logger.Info("pattern library loaded", "version", lib.Version)

	var inferenceLogger *inference.Logger
	if st.inference != nil {
		inferenceLogger = inference.NewLogger(st.inference, logging.Component(logger, "inference"))
		defer inferenceLogger.Wait()
	}

	extractor := buildExtractor(cfg, lib, inferenceLogger, logger)

	validator, err := validation.New(time.Now)
	if err != nil {
		logger.Error("failed to init validator", "error", err)
		os.Exit(1)
	}

	notifier, brokerHealth, closeNotifier := buildNotifier(cfg.Notifications, logger)
	defer closeNotifier()

	retrieverConfig := ingestion.DefaultRetrieverConfig()
	retrieverConfig.Buffer = cfg.Pipeline.RateLimitBuffer
	retrieverConfig.MaxRetries = cfg.Pipeline.SearchRetries
	retriever := ingestion.NewRetriever(
		ingestion.NewTwitterSearchClient(cfg.Twitter.BearerToken, ""),
		st.cursors,
		retrieverConfig,
		logging.Component(logger, "retriever"),
	)

	var activityStore ingestion.ActivityStore
	var errorLog ingestion.ErrorLog
	if st.activities != nil {
		activityStore = st.activities
		errorLog = st.errors
	}

	effects := ingestion.NewSideEffects(activityStore, notifier, cfg.Pipeline.SubmitterID, ingestion.DefaultSideEffectConfig(), logging.Component(logger, "side_effects"))
	ingestor := ingestion.NewBulkIngestor(st.events, effects, lib, cfg.Pipeline.SubmitterID, logging.Component(logger, "ingestor"))
	defer ingestor.Wait()

	pipelineConfig := ingestion.DefaultPipelineConfig()
	pipelineConfig.MaxResults = cfg.Pipeline.MaxResults
	pipelineConfig.QueryDelay = cfg.Pipeline.QueryDelay
	if len(cfg.Pipeline.Queries) > 0 {
		pipelineConfig.Queries = cfg.Pipeline.Queries
	}
	pipeline := ingestion.NewPipeline(
		retriever,
		classifier.New(lib),
		extractor,
		validator,
		ingestor,
		errorLog,
		collector,
		logging.Component(logger, "pipeline"),
		pipelineConfig,
	)

	var publisher scheduler.PublishRunner
	switch {
	case !cfg.Publisher.Enabled:
		logger.Info("publisher disabled")
	case !cfg.Twitter.CanPost():
		logger.Warn("publisher enabled but posting credentials are missing, publisher disabled")
	default:
		publisherConfig := social.DefaultPublisherConfig()
		publisherConfig.Limit = cfg.Publisher.Limit
		publisherConfig.BatchSize = cfg.Publisher.BatchSize
		publisherConfig.BatchDelay = cfg.Publisher.BatchDelay
		publisherConfig.ThrottleBackoff = cfg.Publisher.ThrottleBackoff
		publisherConfig.Location = cfg.Publisher.Location
		poster := social.NewTwitterClient(
			cfg.Twitter.APIKey, cfg.Twitter.APISecret,
			cfg.Twitter.AccessToken, cfg.Twitter.AccessTokenSecret,
			"", logging.Component(logger, "twitter"),
		)
		publisher = social.NewPublisher(poster, st.events, publisherConfig, collector, logging.Component(logger, "publisher"))
	}

	sched := scheduler.New(pipeline, publisher, activityStore, errorLog, scheduler.Config{
		IngestInterval:  cfg.Pipeline.Interval,
		PublishInterval: cfg.Publisher.Interval,
		RunOnStart:      true,
	}, logging.Component(logger, "scheduler"))

	var authenticator *auth.Authenticator
	if cfg.Auth.Enabled() {
		authenticator = auth.NewAuthenticator(auth.Config{
			JWTSecret:     cfg.Auth.JWTSecret,
			PasswordHash:  cfg.Auth.AdminPasswordHash,
			TokenDuration: cfg.Auth.TokenTTL,
		})
	} else {
		logger.Warn("operator auth not configured, manual triggers disabled")
	}

	healthCheck := func(ctx context.Context) error {
		if db != nil {
			if err := database.HealthCheck(ctx, db); err != nil {
				return err
			}
		}
		return brokerHealth()
	}

	routes := api.Routes{
		Trigger: sched,
		InDoubt: st.events,
		Health:  healthCheck,
		Auth:    authenticator,
		Logger:  logging.Component(logger, "api"),
	}
	if db != nil {
		routes.Errors = st.errors
		routes.Activities = st.activities
		routes.Usage = st.inference
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	api.SetupRoutes(mux, routes)

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		sched.Start(ctx)
	}()

	logger.Info("eventscout started", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port))

	waitForSignal(logger)

	logger.Info("shutting down")
	sched.Stop()
	stop()
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	<-schedulerDone
	logger.Info("shutdown complete")
}

// openStores connects to Postgres when a URL is configured and falls back to
// process-local stores otherwise.
func openStores(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sql.DB, stores, error) {
	if cfg.URL == "" {
		logger.Warn("no database configured, using in-memory stores")
		return nil, stores{
			events:  ingestion.NewMemoryEventStore(),
			cursors: ingestion.NewMemoryCursorStore(),
		}, nil
	}

	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.URL
	dbConfig.MaxConnections = cfg.MaxConnections
	dbConfig.MaxIdleConnections = cfg.MaxIdleConnections

	logger.Info("connecting to database", "url", cfg.RedactedURL())
	db, err := database.Connect(ctx, dbConfig)
	if err != nil {
		return nil, stores{}, err
	}
	if err := database.RunMigrations(ctx, db, migrations.FS, logging.Component(logger, "migrations")); err != nil {
		db.Close()
		return nil, stores{}, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("database connected", "pool", database.Stats(db))

	return db, stores{
		events:     database.NewPostgresEventRepository(db),
		cursors:    database.NewCursorRepository(db),
		activities: database.NewActivityLogRepository(db),
		errors:     database.NewIngestionErrorRepository(db),
		inference:  database.NewInferenceLogRepository(db),
	}, nil
}

// buildExtractor wires the model-backed strategy in front of the regex
// fallback when configured.
func buildExtractor(cfg config.Config, lib *patterns.Library, inferenceLogger *inference.Logger, logger *slog.Logger) *extraction.Extractor {
	regex := extraction.NewRegexStrategy(lib, time.Now, cfg.Publisher.Location)

	var primary extraction.Strategy
	if cfg.OpenAI.UseAI() {
		openAIConfig := enrichment.DefaultOpenAIConfig()
		openAIConfig.APIKey = cfg.OpenAI.APIKey
		openAIConfig.Model = cfg.OpenAI.Model
		openAIConfig.Temperature = cfg.OpenAI.Temperature
		openAIConfig.Timeout = int(cfg.OpenAI.Timeout.Seconds())
		client := enrichment.NewOpenAIClient(openAIConfig, logging.Component(logger, "openai"), inferenceLogger)
		primary = extraction.NewAIStrategy(client, targetRegion, lib)
		logger.Info("ai extraction enabled", "model", openAIConfig.Model)
	} else {
		logger.Info("ai extraction disabled, using regex strategy")
	}

	return extraction.NewExtractor(primary, regex, logging.Component(logger, "extractor"))
}

// buildNotifier returns the RabbitMQ notifier when AMQP is configured and the
// log notifier otherwise, with matching health and close funcs.
func buildNotifier(cfg config.NotificationsConfig, logger *slog.Logger) (ingestion.Notifier, func() error, func()) {
	notifyLogger := logging.Component(logger, "notify")
	healthy := func() error { return nil }
	if cfg.AMQPURL == "" {
		return notify.NewLogNotifier(notifyLogger), healthy, func() {}
	}

	rabbit, err := notify.NewRabbitMQNotifier(cfg.AMQPURL, cfg.Exchange, notifyLogger)
	if err != nil {
		logger.Warn("failed to connect to rabbitmq, falling back to log notifier", "error", err)
		return notify.NewLogNotifier(notifyLogger), healthy, func() {}
	}
	return rabbit, rabbit.HealthCheck, func() {
		if err := rabbit.Close(); err != nil {
			logger.Warn("failed to close rabbitmq notifier", "error", err)
		}
	}
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
