// Package api exposes the operator surface: health, login, manual pass
// triggers and read-only views of pass logs.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/eventscout/eventscout/internal/auth"
	"github.com/eventscout/eventscout/internal/database"
	"github.com/eventscout/eventscout/internal/ingestion"
	"github.com/eventscout/eventscout/internal/models"
	"github.com/eventscout/eventscout/internal/scheduler"
)

// PassTrigger runs passes on demand.
type PassTrigger interface {
	TriggerIngest(ctx context.Context) (ingestion.PassReport, error)
	TriggerPublish(ctx context.Context) (int, error)
	Status() scheduler.Status
}

// InDoubtLister lists events whose post attempt never completed.
type InDoubtLister interface {
	FindInDoubt(ctx context.Context) ([]models.Event, error)
}

// ErrorLister lists recent ingestion errors.
type ErrorLister interface {
	ListRecent(ctx context.Context, limit int) ([]models.IngestionError, error)
}

// ActivityLister lists activities for a user.
type ActivityLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]models.ActivityLog, error)
}

// UsageReporter aggregates model usage.
type UsageReporter interface {
	UsageSince(ctx context.Context, since time.Time) (database.InferenceUsage, error)
}

// Routes carries the collaborators behind each endpoint. Auth nil disables
// every protected route; nil listers disable their endpoint.
type Routes struct {
	Trigger    PassTrigger
	InDoubt    InDoubtLister
	Errors     ErrorLister
	Activities ActivityLister
	Usage      UsageReporter
	Health     func(ctx context.Context) error
	Auth       *auth.Authenticator
	Logger     *slog.Logger
}

// SetupRoutes configures all API routes
func SetupRoutes(mux *http.ServeMux, routes Routes) {
	health := NewHealthHandler(routes.Health, routes.Logger)
	mux.HandleFunc("/healthz", health.Healthz)

	authHandler := NewAuthHandler(routes.Auth, routes.Logger)
	mux.HandleFunc("/api/auth/login", authHandler.Login)

	protect := func(h http.HandlerFunc) http.Handler {
		if routes.Auth == nil {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "Operator authentication is not configured", http.StatusServiceUnavailable)
			})
		}
		return routes.Auth.Middleware(h)
	}

	pipeline := NewPipelineHandler(routes.Trigger, routes.InDoubt, routes.Logger)
	mux.Handle("/api/pipeline/ingest", protect(pipeline.Ingest))
	mux.Handle("/api/pipeline/publish", protect(pipeline.Publish))
	mux.Handle("/api/pipeline/in-doubt", protect(pipeline.ListInDoubt))
	mux.Handle("/api/pipeline/status", protect(pipeline.Status))

	logs := NewLogHandlers(routes.Errors, routes.Activities, routes.Usage, routes.Logger)
	mux.Handle("/api/ingestion-errors", protect(logs.ListErrors))
	mux.Handle("/api/activity-logs", protect(logs.ListActivities))
	mux.Handle("/api/inference/usage", protect(logs.InferenceUsage))
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
