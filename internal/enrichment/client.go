package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/eventscout/eventscout/internal/inference"
	openai "github.com/sashabaranov/go-openai"
)

// ErrEmptyResponse is returned when the model produced no usable content.
var ErrEmptyResponse = errors.New("empty completion")

// OpenAIClient wraps the OpenAI chat API for JSON-out prompts.
type OpenAIClient struct {
	client          *openai.Client
	config          OpenAIConfig
	logger          *slog.Logger
	inferenceLogger *inference.Logger
	sleep           func(time.Duration)
}

// OpenAIConfig holds configuration for OpenAI API usage.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     int // seconds
	MaxRetries  int
	// BaseURL overrides the API endpoint, e.g. for a proxy or tests.
	BaseURL string
}

// DefaultOpenAIConfig returns defaults suited to short extraction prompts.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:       openai.GPT4oMini,
		Temperature: 0.2,
		MaxTokens:   800,
		Timeout:     60,
		MaxRetries:  3,
	}
}

// NewOpenAIClient creates a client. inferenceLogger may be nil.
func NewOpenAIClient(config OpenAIConfig, logger *slog.Logger, inferenceLogger *inference.Logger) *OpenAIClient {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 1
	}

	return &OpenAIClient{
		client:          openai.NewClientWithConfig(clientConfig),
		config:          config,
		logger:          logger,
		inferenceLogger: inferenceLogger,
		sleep:           time.Sleep,
	}
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.config.Model
}

// CompleteJSON sends a system/user prompt pair and returns the JSON object
// found in the reply. Rate limited calls are retried with exponential backoff.
func (c *OpenAIClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt, operation string) (string, error) {
	timeout := 60
	if c.config.Timeout > 0 {
		timeout = c.config.Timeout
	}

	reasoning := isReasoningModel(c.config.Model)
	request := c.buildRequest(systemPrompt, userPrompt, reasoning)

	baseDelay := 1 * time.Second
	var resp openai.ChatCompletionResponse
	var err error

	for attempt := 0; attempt < c.config.MaxRetries; attempt++ {
		apiCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		start := time.Now()
		resp, err = c.client.CreateChatCompletion(apiCtx, request)
		cancel()
		latency := time.Since(start)

		c.logger.Debug("openai call complete",
			"operation", operation,
			"attempt", attempt+1,
			"duration_ms", latency.Milliseconds(),
			"success", err == nil)

		call := inference.Call{
			Model:       c.config.Model,
			Operation:   operation,
			Attempt:     attempt + 1,
			Latency:     latency,
			Err:         err,
			RateLimited: err != nil && isRateLimit(err),
		}
		if err == nil {
			call.Usage = inference.Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			}
		}
		c.inferenceLogger.Record(ctx, call)

		if err == nil || !isRateLimit(err) {
			break
		}

		if attempt < c.config.MaxRetries-1 {
			delay := baseDelay*time.Duration(1<<uint(attempt)) + time.Duration(rand.Intn(500))*time.Millisecond
			c.logger.Warn("openai rate limited, retrying with backoff",
				"operation", operation,
				"attempt", attempt+1,
				"delay_ms", delay.Milliseconds())
			c.sleep(delay)
			continue
		}
		c.logger.Error("openai rate limit exceeded, max retries reached",
			"operation", operation,
			"attempts", c.config.MaxRetries)
	}

	if err != nil {
		return "", fmt.Errorf("openai api call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices from model %s", ErrEmptyResponse, c.config.Model)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: model %s finish_reason %s", ErrEmptyResponse, c.config.Model, resp.Choices[0].FinishReason)
	}
	return ExtractJSONObject(content), nil
}

func (c *OpenAIClient) buildRequest(systemPrompt, userPrompt string, reasoning bool) openai.ChatCompletionRequest {
	// Reasoning models reject JSON mode, temperature and system messages.
	if reasoning {
		return openai.ChatCompletionRequest{
			Model:               c.config.Model,
			MaxCompletionTokens: c.config.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: systemPrompt + "\n\n" + userPrompt},
			},
		}
	}

	return openai.ChatCompletionRequest{
		Model:               c.config.Model,
		Temperature:         c.config.Temperature,
		MaxCompletionTokens: c.config.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
}

func isReasoningModel(model string) bool {
	m := strings.ToLower(model)
	return strings.Contains(m, "o1") ||
		strings.Contains(m, "o3") ||
		strings.Contains(m, "o4") ||
		strings.Contains(m, "gpt-5")
}

func isRateLimit(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") || strings.Contains(errStr, "Rate limit")
}
