// Package supervisor owns the single in-process download job slot. It admits
// at most one running job, folds normalized events into the shared job state,
// and reports the terminal outcome through snapshots and observers.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/streamsaavy/streamsaavy-go/internal/domain"
	"github.com/streamsaavy/streamsaavy-go/internal/plan"
	"github.com/streamsaavy/streamsaavy-go/internal/progress"
)

// LogTailCapacity bounds the retained log history; oldest lines are evicted.
const LogTailCapacity = 400

// ErrAlreadyRunning is returned by Start while a job is active. Admission
// control guarantees at most one concurrent job per process.
var ErrAlreadyRunning = &domain.RequestError{
	Kind:    domain.KindAlreadyRunning,
	Message: "a download is already in progress",
}

// Engine executes a plan, emitting one raw record per unit of output.
// Run blocks until the engine's stream ends and the process has exited.
type Engine interface {
	Run(ctx context.Context, p plan.Plan, emit func(progress.Record)) error
}

// Observer receives every event of the job it was registered for, in
// production order. Observers run on the background goroutine and must not
// block for long.
type Observer func(domain.Event)

// Handle controls one admitted job.
type Handle struct {
	ID     string
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel requests a best-effort stop. The engine gives no interruption
// guarantee, so cancellation may race with completion: the job ends in
// whichever terminal phase lands first, and partial output files may remain.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed when the job reaches a terminal phase.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Supervisor is the single writer of the process-wide job state.
type Supervisor struct {
	engine Engine

	mu         sync.Mutex
	jobID      string
	engineLive bool
	phase      domain.Phase
	percent    float64
	logTail    []string
	lastError  string
	errorKind  domain.ErrorKind
	outputPath string
	startedAt  *time.Time
	finishedAt *time.Time
	observers  []Observer
	cancel     context.CancelFunc
	done       chan struct{}
}

// New creates an idle Supervisor backed by the given engine.
func New(engine Engine) *Supervisor {
	return &Supervisor{
		engine: engine,
		phase:  domain.PhaseIdle,
	}
}

// Start admits a plan under a fresh job ID. See StartJob.
func (s *Supervisor) Start(p plan.Plan, observers ...Observer) (*Handle, error) {
	return s.StartJob(uuid.New().String(), p, observers...)
}

// StartJob admits a plan if no job is running and dispatches it to a
// background goroutine; it never blocks on the download itself. Observers
// are notified synchronously, in event order, for the lifetime of this job
// only. Callers that need the job ID before any event fires (e.g. to create
// a bookkeeping record) preassign it here.
func (s *Supervisor) StartJob(jobID string, p plan.Plan, observers ...Observer) (*Handle, error) {
	s.mu.Lock()
	// The engine may report the job finished while its process is still
	// post-processing, so the slot stays occupied until the run goroutine
	// returns, not merely until the phase turns terminal.
	if s.phase == domain.PhaseRunning || s.engineLive {
		s.mu.Unlock()
		return nil, ErrAlreadyRunning
	}

	now := time.Now().UTC()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.jobID = jobID
	s.engineLive = true
	s.phase = domain.PhaseRunning
	s.percent = 0
	s.logTail = nil
	s.lastError = ""
	s.errorKind = ""
	s.outputPath = ""
	s.startedAt = &now
	s.finishedAt = nil
	s.observers = observers
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	slog.Info("job admitted", "job_id", jobID, "url", p.URL(), "playlist", p.IsPlaylist())

	go s.run(ctx, p, jobID, done)

	return &Handle{ID: jobID, cancel: cancel, done: done}, nil
}

// Cancel requests a best-effort stop of the current job, if any.
func (s *Supervisor) Cancel() bool {
	s.mu.Lock()
	cancel := s.cancel
	running := s.phase == domain.PhaseRunning
	s.mu.Unlock()
	if running && cancel != nil {
		cancel()
	}
	return running
}

// Running reports whether a job is currently active.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase == domain.PhaseRunning
}

// Snapshot returns a copy of the job state. The log tail is owned by the
// caller; no field is shared with the background goroutine.
func (s *Supervisor) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	tail := make([]string, len(s.logTail))
	copy(tail, s.logTail)

	return domain.Snapshot{
		JobID:      s.jobID,
		Phase:      s.phase,
		Percent:    s.percent,
		LogTail:    tail,
		LastError:  s.lastError,
		ErrorKind:  s.errorKind,
		OutputPath: s.outputPath,
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
	}
}

// run is the background execution context: the only producer of events and
// the only writer of job state for the duration of one job.
func (s *Supervisor) run(ctx context.Context, p plan.Plan, jobID string, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.engineLive = false
		s.mu.Unlock()
		close(done)
	}()

	norm := progress.NewNormalizer()
	s.apply(jobID, domain.StartedEvent())

	err := s.engine.Run(ctx, p, func(rec progress.Record) {
		s.apply(jobID, norm.Normalize(rec))
	})

	if err == nil {
		for _, ev := range norm.Finish() {
			s.apply(jobID, ev)
		}
		s.mu.Lock()
		phase := s.phase
		s.mu.Unlock()
		slog.Info("job finished", "job_id", jobID, "phase", phase)
		return
	}

	var cerr *domain.ClassifiedError
	switch {
	case errors.As(err, &cerr):
		s.apply(jobID, domain.ErrorEvent(cerr.Kind, cerr.Detail))
	case errors.Is(err, context.Canceled):
		s.apply(jobID, domain.ErrorEvent(domain.KindEngineExit, "download canceled"))
	default:
		// Unclean exit with no classified error seen: synthesize one.
		s.apply(jobID, domain.ErrorEvent(domain.KindEngineExit, err.Error()))
	}

	s.mu.Lock()
	detail := s.lastError
	s.mu.Unlock()
	slog.Warn("job failed", "job_id", jobID, "error", detail)
}

// apply folds one event into the job state as a single atomic unit, then
// notifies observers. Events are job-scoped: anything produced for a job
// that is no longer current is dropped, as is anything arriving after a
// terminal phase, which resolves the cancel/completion race in favor of
// whichever terminal event landed first.
func (s *Supervisor) apply(jobID string, ev domain.Event) {
	s.mu.Lock()
	if s.jobID != jobID || s.phase.Terminal() {
		s.mu.Unlock()
		return
	}

	switch ev.Type {
	case domain.EventStarted:
		// phase already set by Start
	case domain.EventProgress:
		s.percent = clampPercent(ev.Percent)
	case domain.EventStage:
		s.appendLog(ev.Note)
	case domain.EventLogLine:
		s.appendLog(ev.Text)
	case domain.EventFinished:
		s.phase = domain.PhaseCompleted
		s.percent = 100
		s.outputPath = ev.OutputPath
		now := time.Now().UTC()
		s.finishedAt = &now
	case domain.EventError:
		s.phase = domain.PhaseFailed
		s.errorKind = ev.Kind
		s.lastError = ev.Detail
		now := time.Now().UTC()
		s.finishedAt = &now
	}

	observers := s.observers
	s.mu.Unlock()

	// Events are produced by the single background goroutine, so notifying
	// outside the lock keeps delivery order intact while snapshots never
	// wait on a slow observer.
	for _, ob := range observers {
		ob(ev)
	}
}

func (s *Supervisor) appendLog(line string) {
	s.logTail = append(s.logTail, line)
	if len(s.logTail) > LogTailCapacity {
		s.logTail = s.logTail[len(s.logTail)-LogTailCapacity:]
	}
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
