package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/forexbot/internal/history"
	"github.com/aristath/forexbot/internal/inference"
	"github.com/aristath/forexbot/internal/notify"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// InferenceHandlers exposes the inference trigger and its state over HTTP.
type InferenceHandlers struct {
	service       InferenceService
	history       HistoryReader
	schedule      NextRunProvider
	defaultTarget notify.Target
	log           zerolog.Logger
}

// NewInferenceHandlers creates inference handlers. history and schedule may be nil.
func NewInferenceHandlers(service InferenceService, hist HistoryReader, schedule NextRunProvider, defaultTarget notify.Target, log zerolog.Logger) *InferenceHandlers {
	return &InferenceHandlers{
		service:       service,
		history:       hist,
		schedule:      schedule,
		defaultTarget: defaultTarget,
		log:           log.With().Str("component", "inference_handlers").Logger(),
	}
}

// TriggerRequest is the optional body of POST /api/inference.
type TriggerRequest struct {
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Text      string `json:"text"`
}

// TriggerResponse is returned when a job was accepted.
type TriggerResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// HandleTrigger starts an inference job.
// POST /api/inference
func (h *InferenceHandlers) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(h.log, w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	target := h.defaultTarget
	if req.ChannelID != "" || req.UserID != "" {
		target = notify.Target{ChannelID: req.ChannelID, UserID: req.UserID}
	}

	// The job outlives this request.
	id, err := h.service.Submit(context.WithoutCancel(r.Context()), inference.Trigger{
		Kind:   inference.Interactive,
		Target: target,
		Text:   req.Text,
	})
	if errors.Is(err, inference.ErrJobRunning) {
		writeError(h.log, w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to submit inference job")
		writeError(h.log, w, http.StatusInternalServerError, "failed to submit inference job")
		return
	}

	writeJSON(h.log, w, http.StatusAccepted, TriggerResponse{RequestID: id, Status: "accepted"})
}

// CurrentJob describes the running job.
type CurrentJob struct {
	RequestID string    `json:"request_id"`
	Trigger   string    `json:"trigger"`
	OutputDir string    `json:"output_dir,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// StatusResponse is the body of GET /api/inference/status.
type StatusResponse struct {
	State   string      `json:"state"`
	Current *CurrentJob `json:"current,omitempty"`
	NextRun *time.Time  `json:"next_run,omitempty"`
}

// HandleStatus reports whether a job is running.
// GET /api/inference/status
func (h *InferenceHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status := h.service.Status()

	resp := StatusResponse{State: status.State.String()}
	if status.Current != nil {
		resp.Current = &CurrentJob{
			RequestID: status.Current.ID,
			Trigger:   status.Current.Trigger.String(),
			OutputDir: status.Current.OutputDir,
			StartedAt: status.Current.StartedAt,
		}
	}
	if h.schedule != nil {
		if next, ok := h.schedule.NextRun(); ok {
			resp.NextRun = &next
		}
	}

	writeJSON(h.log, w, http.StatusOK, resp)
}

// HandleHistory lists recent jobs, newest first.
// GET /api/inference/history?limit=N
func (h *InferenceHandlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(h.log, w, http.StatusServiceUnavailable, "job history is not enabled")
		return
	}

	limit := history.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(h.log, w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load job history")
		writeError(h.log, w, http.StatusInternalServerError, "failed to load job history")
		return
	}

	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		"jobs":  records,
		"count": len(records),
	})
}

// HandleHistoryItem returns a single job record.
// GET /api/inference/history/{id}
func (h *InferenceHandlers) HandleHistoryItem(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(h.log, w, http.StatusServiceUnavailable, "job history is not enabled")
		return
	}

	id := chi.URLParam(r, "id")
	rec, err := h.history.Get(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("request_id", id).Msg("Failed to load job record")
		writeError(h.log, w, http.StatusInternalServerError, "failed to load job record")
		return
	}
	if rec == nil {
		writeError(h.log, w, http.StatusNotFound, "job not found")
		return
	}

	writeJSON(h.log, w, http.StatusOK, rec)
}
