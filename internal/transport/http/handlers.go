// Package http exposes the orchestrator over a small JSON API: submit a
// download, poll the shared job state, cancel, and browse history.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/streamsaavy/streamsaavy-go/internal/domain"
	"github.com/streamsaavy/streamsaavy-go/internal/service/orchestrator"
)

// Handlers contains the HTTP handlers and their dependencies.
type Handlers struct {
	orch               *orchestrator.Orchestrator
	defaultDestination string
}

// NewHandlers creates a Handlers instance. defaultDestination is used when a
// request omits its destination path.
func NewHandlers(orch *orchestrator.Orchestrator, defaultDestination string) *Handlers {
	return &Handlers{orch: orch, defaultDestination: defaultDestination}
}

// downloadPayload is the expected body for POST /api/download. The embed
// flags are pointers so "absent" defaults to enabled.
type downloadPayload struct {
	URL              string `json:"url"`
	Mode             string `json:"mode"`
	DestinationPath  string `json:"destination_path,omitempty"`
	AudioBitrateKbps int    `json:"audio_bitrate_kbps,omitempty"`
	MaxVideoHeight   int    `json:"max_video_height,omitempty"`
	EmbedThumbnail   *bool  `json:"embed_thumbnail,omitempty"`
	EmbedMetadata    *bool  `json:"embed_metadata,omitempty"`
	CredentialsFile  string `json:"credentials_file,omitempty"`
}

type downloadResponse struct {
	JobID string `json:"job_id"`
}

type cancelResponse struct {
	Canceled bool `json:"canceled"`
}

// HealthHandler handles GET /api/health.
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &domain.HealthResponse{
		Status: "ok",
		Phase:  h.orch.Snapshot().Phase,
	})
}

// ModesHandler handles GET /api/modes.
func (h *Handlers) ModesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.Modes())
}

// DownloadHandler handles POST /api/download. Validation and admission
// failures are synchronous; on success the job ID is returned immediately
// and progress is observed through GET /api/status.
func (h *Handlers) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	var payload downloadPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "INVALID_BODY", "")
		return
	}

	dest := payload.DestinationPath
	if strings.TrimSpace(dest) == "" {
		dest = h.defaultDestination
	}

	params := domain.RequestParams{
		URL:              payload.URL,
		DestinationPath:  dest,
		Mode:             payload.Mode,
		AudioBitrateKbps: payload.AudioBitrateKbps,
		MaxVideoHeight:   payload.MaxVideoHeight,
		EmbedThumbnail:   boolOrDefault(payload.EmbedThumbnail, true),
		EmbedMetadata:    boolOrDefault(payload.EmbedMetadata, true),
		CredentialsFile:  payload.CredentialsFile,
	}

	jobID, err := h.orch.Start(params)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	slog.Info("download accepted", "job_id", jobID, "url", params.URL, "mode", params.Mode)
	writeJSON(w, http.StatusAccepted, &downloadResponse{JobID: jobID})
}

// StatusHandler handles GET /api/status. The snapshot is safe to poll at any
// rate; it never blocks on the running job.
func (h *Handlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.Snapshot())
}

// CancelHandler handles POST /api/cancel. Cancellation is advisory: the job
// ends in whichever terminal phase the engine reports first, and partial
// files may remain in the destination.
func (h *Handlers) CancelHandler(w http.ResponseWriter, r *http.Request) {
	canceled := h.orch.Cancel()
	if !canceled {
		writeError(w, http.StatusConflict, "no download in progress", "NOT_RUNNING", "")
		return
	}
	writeJSON(w, http.StatusAccepted, &cancelResponse{Canceled: true})
}

// ProbeHandler handles GET /api/probe?url=...
func (h *Handlers) ProbeHandler(w http.ResponseWriter, r *http.Request) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required", "MISSING_URL", "")
		return
	}

	info, err := h.orch.Probe(r.Context(), url)
	if err != nil {
		slog.Warn("probe failed", "url", url, "error", err)
		writeError(w, http.StatusBadGateway, "failed to probe media info", "PROBE_FAILED", "")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// JobsHandler handles GET /api/jobs.
func (h *Handlers) JobsHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	jobs, err := h.orch.History(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs", "DB_ERROR", "")
		return
	}
	if jobs == nil {
		jobs = []*domain.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// JobHandler handles GET /api/jobs/{job_id}.
func (h *Handlers) JobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid job_id format", "INVALID_JOB_ID", "")
		return
	}

	job, err := h.orch.JobByID(r.Context(), jobID)
	if err != nil {
		slog.Error("failed to get job", "job_id", jobID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get job", "DB_ERROR", "")
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND", "")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Helper functions

func boolOrDefault(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func writeRequestError(w http.ResponseWriter, err error) {
	var reqErr *domain.RequestError
	if !errors.As(err, &reqErr) {
		writeError(w, http.StatusInternalServerError, "failed to start download", "INTERNAL", "")
		return
	}

	switch reqErr.Kind {
	case domain.KindAlreadyRunning:
		writeError(w, http.StatusConflict, reqErr.Message, "ALREADY_RUNNING", reqErr.Kind)
	case domain.KindUnknownMode:
		writeError(w, http.StatusBadRequest, reqErr.Message, "UNKNOWN_MODE", reqErr.Kind)
	default:
		writeError(w, http.StatusBadRequest, reqErr.Message, "INVALID_REQUEST", reqErr.Kind)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message, code string, kind domain.ErrorKind) {
	writeJSON(w, status, &domain.ErrorResponse{
		Error: message,
		Code:  code,
		Kind:  kind,
	})
}
