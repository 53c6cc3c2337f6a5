package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamsaavy/streamsaavy-go/internal/domain"
	"github.com/streamsaavy/streamsaavy-go/internal/plan"
	"github.com/streamsaavy/streamsaavy-go/internal/progress"
	"github.com/streamsaavy/streamsaavy-go/internal/service/orchestrator"
	"github.com/streamsaavy/streamsaavy-go/internal/supervisor"
)

// stubEngine completes immediately with a finished record, or blocks until
// release closes when set.
type stubEngine struct {
	release chan struct{}
}

func (e *stubEngine) Run(ctx context.Context, _ plan.Plan, emit func(progress.Record)) error {
	if e.release != nil {
		select {
		case <-e.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	emit(progress.HookRecord(progress.Hook{Status: "finished", Filename: "out.mp3"}))
	return nil
}

func newTestHandlers(t *testing.T, eng supervisor.Engine) *Handlers {
	t.Helper()
	orch := orchestrator.New(plan.Builder{}, supervisor.New(eng))
	return NewHandlers(orch, t.TempDir())
}

func testRouter(h *Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/api/health", h.HealthHandler)
	r.Get("/api/status", h.StatusHandler)
	r.Get("/api/modes", h.ModesHandler)
	r.Get("/api/jobs", h.JobsHandler)
	r.Get("/api/jobs/{job_id}", h.JobHandler)
	r.Post("/api/download", h.DownloadHandler)
	r.Post("/api/cancel", h.CancelHandler)
	r.Get("/api/probe", h.ProbeHandler)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthHandler(t *testing.T) {
	r := testRouter(newTestHandlers(t, &stubEngine{}))
	rec := doJSON(t, r, http.MethodGet, "/api/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp domain.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, domain.PhaseIdle, resp.Phase)
}

func TestModesHandler(t *testing.T) {
	r := testRouter(newTestHandlers(t, &stubEngine{}))
	rec := doJSON(t, r, http.MethodGet, "/api/modes", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var modes []domain.ModeInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &modes))
	require.Len(t, modes, 5)
	assert.Equal(t, "single-song", modes[0].Token)
}

func TestDownloadHandlerAccepted(t *testing.T) {
	r := testRouter(newTestHandlers(t, &stubEngine{}))
	rec := doJSON(t, r, http.MethodPost, "/api/download",
		`{"url":"https://example.com/watch?v=abc","mode":"single-song"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)
}

func TestDownloadHandlerUnknownMode(t *testing.T) {
	r := testRouter(newTestHandlers(t, &stubEngine{}))
	rec := doJSON(t, r, http.MethodPost, "/api/download",
		`{"url":"https://example.com/watch?v=abc","mode":"mp3"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp domain.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "UNKNOWN_MODE", resp.Code)
	assert.Equal(t, domain.KindUnknownMode, resp.Kind)
}

func TestDownloadHandlerMissingURL(t *testing.T) {
	r := testRouter(newTestHandlers(t, &stubEngine{}))
	rec := doJSON(t, r, http.MethodPost, "/api/download", `{"mode":"single-song"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp domain.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Code)
}

func TestDownloadHandlerInvalidBody(t *testing.T) {
	r := testRouter(newTestHandlers(t, &stubEngine{}))
	rec := doJSON(t, r, http.MethodPost, "/api/download", `not json`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp domain.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_BODY", resp.Code)
}

func TestDownloadHandlerAlreadyRunning(t *testing.T) {
	eng := &stubEngine{release: make(chan struct{})}
	h := newTestHandlers(t, eng)
	r := testRouter(h)

	first := doJSON(t, r, http.MethodPost, "/api/download",
		`{"url":"https://example.com/watch?v=abc","mode":"single-song"}`)
	require.Equal(t, http.StatusAccepted, first.Code)

	second := doJSON(t, r, http.MethodPost, "/api/download",
		`{"url":"https://example.com/watch?v=def","mode":"single-video"}`)
	require.Equal(t, http.StatusConflict, second.Code)
	var resp domain.ErrorResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.Equal(t, "ALREADY_RUNNING", resp.Code)
	assert.Equal(t, domain.KindAlreadyRunning, resp.Kind)

	close(eng.release)
}

func TestStatusHandlerReflectsJob(t *testing.T) {
	h := newTestHandlers(t, &stubEngine{})
	r := testRouter(h)

	rec := doJSON(t, r, http.MethodPost, "/api/download",
		`{"url":"https://example.com/watch?v=abc","mode":"single-song"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		status := doJSON(t, r, http.MethodGet, "/api/status", "")
		var snap domain.Snapshot
		if err := json.Unmarshal(status.Body.Bytes(), &snap); err != nil {
			return false
		}
		return snap.Phase == domain.PhaseCompleted && snap.Percent == 100
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCancelHandlerNotRunning(t *testing.T) {
	r := testRouter(newTestHandlers(t, &stubEngine{}))
	rec := doJSON(t, r, http.MethodPost, "/api/cancel", "")

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp domain.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_RUNNING", resp.Code)
}

func TestCancelHandlerRunning(t *testing.T) {
	eng := &stubEngine{release: make(chan struct{})}
	h := newTestHandlers(t, eng)
	r := testRouter(h)

	rec := doJSON(t, r, http.MethodPost, "/api/download",
		`{"url":"https://example.com/watch?v=abc","mode":"single-song"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	cancel := doJSON(t, r, http.MethodPost, "/api/cancel", "")
	require.Equal(t, http.StatusAccepted, cancel.Code)
	var resp cancelResponse
	require.NoError(t, json.Unmarshal(cancel.Body.Bytes(), &resp))
	assert.True(t, resp.Canceled)
}

func TestProbeHandlerMissingURL(t *testing.T) {
	r := testRouter(newTestHandlers(t, &stubEngine{}))
	rec := doJSON(t, r, http.MethodGet, "/api/probe", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp domain.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "MISSING_URL", resp.Code)
}

func TestJobHandlerInvalidID(t *testing.T) {
	r := testRouter(newTestHandlers(t, &stubEngine{}))
	rec := doJSON(t, r, http.MethodGet, "/api/jobs/not-a-uuid", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp domain.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_JOB_ID", resp.Code)
}

func TestJobsHandlerWithoutHistory(t *testing.T) {
	r := testRouter(newTestHandlers(t, &stubEngine{}))
	rec := doJSON(t, r, http.MethodGet, "/api/jobs", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}
