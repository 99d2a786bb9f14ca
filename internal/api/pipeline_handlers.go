package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/eventscout/eventscout/internal/ingestion"
	"github.com/eventscout/eventscout/internal/models"
	"github.com/eventscout/eventscout/internal/scheduler"
)

// PipelineHandler serves manual pass triggers.
type PipelineHandler struct {
	trigger PassTrigger
	inDoubt InDoubtLister
	logger  *slog.Logger
}

// NewPipelineHandler creates a new pipeline handler.
func NewPipelineHandler(trigger PassTrigger, inDoubt InDoubtLister, logger *slog.Logger) *PipelineHandler {
	return &PipelineHandler{trigger: trigger, inDoubt: inDoubt, logger: logger}
}

// PublishResponse reports a manual publish pass.
type PublishResponse struct {
	Posted int    `json:"posted"`
	Error  string `json:"error,omitempty"`
}

// Ingest handles POST /api/pipeline/ingest. The pass runs in the request, so
// callers should allow for long responses.
func (h *PipelineHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	report, err := h.trigger.TriggerIngest(r.Context())
	switch {
	case errors.Is(err, scheduler.ErrPassInProgress):
		http.Error(w, "Ingestion pass already running", http.StatusConflict)
	case errors.Is(err, ingestion.ErrMissingCredentials):
		http.Error(w, "Search credentials are not configured", http.StatusServiceUnavailable)
	case err != nil:
		h.logger.Error("manual ingestion pass failed", "error", err)
		writeJSON(w, h.logger, http.StatusBadGateway, map[string]any{"error": err.Error(), "report": report})
	default:
		writeJSON(w, h.logger, http.StatusOK, report)
	}
}

// Publish handles POST /api/pipeline/publish.
func (h *PipelineHandler) Publish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	posted, err := h.trigger.TriggerPublish(r.Context())
	switch {
	case errors.Is(err, scheduler.ErrPassInProgress):
		http.Error(w, "Publish pass already running", http.StatusConflict)
	case err != nil:
		h.logger.Error("manual publish pass failed", "error", err)
		writeJSON(w, h.logger, http.StatusBadGateway, PublishResponse{Posted: posted, Error: err.Error()})
	default:
		writeJSON(w, h.logger, http.StatusOK, PublishResponse{Posted: posted})
	}
}

// ListInDoubt handles GET /api/pipeline/in-doubt.
func (h *PipelineHandler) ListInDoubt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.inDoubt == nil {
		http.Error(w, "Not available", http.StatusNotFound)
		return
	}

	events, err := h.inDoubt.FindInDoubt(r.Context())
	if err != nil {
		h.logger.Error("failed to list in-doubt events", "error", err)
		http.Error(w, "Failed to list in-doubt events", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// Status handles GET /api/pipeline/status.
func (h *PipelineHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, h.trigger.Status())
}
