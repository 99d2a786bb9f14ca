package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/eventscout/eventscout/internal/models"
)

// LogHandlers serves read-only views of pass logs.
type LogHandlers struct {
	errors     ErrorLister
	activities ActivityLister
	usage      UsageReporter
	logger     *slog.Logger
}

// NewLogHandlers creates log handlers. Any lister may be nil.
func NewLogHandlers(errors ErrorLister, activities ActivityLister, usage UsageReporter, logger *slog.Logger) *LogHandlers {
	return &LogHandlers{errors: errors, activities: activities, usage: usage, logger: logger}
}

// ListErrors handles GET /api/ingestion-errors?limit=50
func (h *LogHandlers) ListErrors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.errors == nil {
		http.Error(w, "Not available", http.StatusNotFound)
		return
	}

	entries, err := h.errors.ListRecent(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		h.logger.Error("failed to list ingestion errors", "error", err)
		http.Error(w, "Failed to list errors", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.IngestionError{}
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"errors": entries, "count": len(entries)})
}

// ListActivities handles GET /api/activity-logs?user_id=system&limit=100
func (h *LogHandlers) ListActivities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.activities == nil {
		http.Error(w, "Not available", http.StatusNotFound)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	logs, err := h.activities.ListByUser(r.Context(), userID, queryInt(r, "limit", 100))
	if err != nil {
		h.logger.Error("failed to list activity logs", "error", err)
		http.Error(w, "Failed to retrieve activity logs", http.StatusInternalServerError)
		return
	}
	if logs == nil {
		logs = []models.ActivityLog{}
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"logs": logs, "count": len(logs)})
}

// InferenceUsage handles GET /api/inference/usage?hours=24
func (h *LogHandlers) InferenceUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.usage == nil {
		http.Error(w, "Not available", http.StatusNotFound)
		return
	}

	hours := queryInt(r, "hours", 24)
	usage, err := h.usage.UsageSince(r.Context(), time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		h.logger.Error("failed to aggregate inference usage", "error", err)
		http.Error(w, "Failed to aggregate usage", http.StatusInternalServerError)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"hours": hours, "usage": usage})
}
