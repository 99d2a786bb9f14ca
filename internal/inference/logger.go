// Package inference records generative model calls made during extraction.
package inference

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/eventscout/eventscout/internal/models"
)

const providerOpenAI = "openai"

// Store persists inference logs.
type Store interface {
	Create(ctx context.Context, log models.InferenceLog) error
}

// Usage is the token accounting reported by the provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Call describes one completion attempt.
type Call struct {
	Model       string
	Operation   string
	Attempt     int
	Usage       Usage
	Latency     time.Duration
	Err         error
	RateLimited bool
}

// price is USD per million tokens.
type price struct {
	input, output float64
}

var prices = map[string]price{
	"gpt-4o":        {2.50, 10.00},
	"gpt-4o-mini":   {0.15, 0.60},
	"gpt-4.1-mini":  {0.40, 1.60},
	"gpt-3.5-turbo": {0.50, 1.50},
}

// fallbackPrice overestimates unknown models.
var fallbackPrice = price{5.00, 15.00}

// Logger writes inference logs in the background. A nil Logger discards calls.
type Logger struct {
	store  Store
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewLogger creates a new inference logger.
func NewLogger(store Store, logger *slog.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

// Record stores one call. The write outlives ctx cancellation and its
// failure is only logged.
func (l *Logger) Record(ctx context.Context, call Call) {
	if l == nil {
		return
	}

	entry := newEntry(call)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.store.Create(context.WithoutCancel(ctx), entry); err != nil {
			l.logger.Error("failed to log inference call", "operation", call.Operation, "error", err)
		}
	}()
}

// Wait blocks until pending writes finish.
func (l *Logger) Wait() {
	if l == nil {
		return
	}
	l.wg.Wait()
}

func newEntry(call Call) models.InferenceLog {
	input, output := call.Usage.PromptTokens, call.Usage.CompletionTokens
	latency := int(call.Latency.Milliseconds())
	cost := EstimateCost(call.Model, input, output)

	entry := models.InferenceLog{
		Provider:     providerOpenAI,
		Model:        call.Model,
		Operation:    call.Operation,
		TokensUsed:   call.Usage.TotalTokens,
		InputTokens:  &input,
		OutputTokens: &output,
		CostUSD:      &cost,
		LatencyMs:    &latency,
		Status:       "success",
	}
	if call.Err != nil {
		msg := call.Err.Error()
		entry.Status = "error"
		entry.ErrorMessage = &msg
	}

	metadata := map[string]any{"attempt": call.Attempt}
	if call.RateLimited {
		metadata["is_rate_limit"] = true
	}
	if b, err := json.Marshal(metadata); err == nil {
		entry.Metadata = string(b)
	}
	return entry
}

// EstimateCost gives a rough USD cost for one call.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	p, ok := prices[model]
	if !ok {
		p = fallbackPrice
	}
	return float64(inputTokens)/1e6*p.input + float64(outputTokens)/1e6*p.output
}
