package supervisor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamsaavy/streamsaavy-go/internal/domain"
	"github.com/streamsaavy/streamsaavy-go/internal/plan"
	"github.com/streamsaavy/streamsaavy-go/internal/progress"
)

// fakeEngine scripts one run: it feeds records through emit and returns err.
// When block is non-nil the run stalls until the channel closes or the
// context is canceled.
type fakeEngine struct {
	records []progress.Record
	err     error
	block   chan struct{}
}

func (f *fakeEngine) Run(ctx context.Context, _ plan.Plan, emit func(progress.Record)) error {
	for _, rec := range f.records {
		emit(rec)
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func testPlan(t *testing.T) plan.Plan {
	t.Helper()
	req, err := domain.NewDownloadRequest(domain.RequestParams{
		URL:             "https://example.com/watch?v=abc",
		DestinationPath: t.TempDir(),
		Mode:            "single-song",
	})
	require.NoError(t, err)
	return plan.Builder{}.Build(req)
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not reach a terminal phase")
	}
}

func TestStartRunsToCompletion(t *testing.T) {
	eng := &fakeEngine{records: []progress.Record{
		progress.HookRecord(progress.Hook{Status: "downloading", Percent: "10.0%"}),
		progress.HookRecord(progress.Hook{Status: "downloading", Percent: "55.0%"}),
		progress.HookRecord(progress.Hook{Status: "finished", Filename: "a.mp3"}),
	}}
	s := New(eng)

	h, err := s.Start(testPlan(t))
	require.NoError(t, err)
	require.NotEmpty(t, h.ID)
	waitDone(t, h)

	snap := s.Snapshot()
	assert.Equal(t, domain.PhaseCompleted, snap.Phase)
	assert.Equal(t, float64(100), snap.Percent)
	assert.Equal(t, "a.mp3", snap.OutputPath)
	assert.Empty(t, snap.LastError)
	assert.NotNil(t, snap.StartedAt)
	assert.NotNil(t, snap.FinishedAt)
}

func TestStartSynthesizesCompletionOnSilentStreamEnd(t *testing.T) {
	eng := &fakeEngine{records: []progress.Record{
		progress.LineRecord("[download]  99.2% of 3MiB"),
	}}
	s := New(eng)

	h, err := s.Start(testPlan(t))
	require.NoError(t, err)
	waitDone(t, h)

	snap := s.Snapshot()
	assert.Equal(t, domain.PhaseCompleted, snap.Phase)
	assert.Equal(t, float64(100), snap.Percent)
	assert.Empty(t, snap.OutputPath)
}

func TestStartRejectsConcurrentJob(t *testing.T) {
	block := make(chan struct{})
	s := New(&fakeEngine{block: block})

	h, err := s.Start(testPlan(t))
	require.NoError(t, err)

	// Drive some state so rejection leaving it untouched is observable.
	require.Eventually(t, s.Running, time.Second, 5*time.Millisecond)
	before := s.Snapshot()

	_, err = s.Start(testPlan(t))
	require.Error(t, err)
	var rerr *domain.RequestError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, domain.KindAlreadyRunning, rerr.Kind)

	after := s.Snapshot()
	assert.Equal(t, before.JobID, after.JobID)
	assert.Equal(t, domain.PhaseRunning, after.Phase)

	close(block)
	waitDone(t, h)
}

func TestStartJobUsesPreassignedID(t *testing.T) {
	s := New(&fakeEngine{})
	h, err := s.StartJob("job-123", testPlan(t))
	require.NoError(t, err)
	assert.Equal(t, "job-123", h.ID)
	waitDone(t, h)
	assert.Equal(t, "job-123", s.Snapshot().JobID)
}

func TestEngineFailureClassified(t *testing.T) {
	eng := &fakeEngine{err: &domain.ClassifiedError{
		Kind:   domain.KindFormatUnavailable,
		Detail: "no playable stream for the requested format",
	}}
	s := New(eng)

	h, err := s.Start(testPlan(t))
	require.NoError(t, err)
	waitDone(t, h)

	snap := s.Snapshot()
	assert.Equal(t, domain.PhaseFailed, snap.Phase)
	assert.Equal(t, domain.KindFormatUnavailable, snap.ErrorKind)
	assert.NotEmpty(t, snap.LastError)
}

func TestEngineFailureUnclassified(t *testing.T) {
	s := New(&fakeEngine{err: errors.New("exit status 1")})

	h, err := s.Start(testPlan(t))
	require.NoError(t, err)
	waitDone(t, h)

	snap := s.Snapshot()
	assert.Equal(t, domain.PhaseFailed, snap.Phase)
	assert.Equal(t, domain.KindEngineExit, snap.ErrorKind)
	assert.Equal(t, "exit status 1", snap.LastError)
}

func TestCancelRunningJob(t *testing.T) {
	block := make(chan struct{})
	s := New(&fakeEngine{block: block})

	h, err := s.Start(testPlan(t))
	require.NoError(t, err)
	require.Eventually(t, s.Running, time.Second, 5*time.Millisecond)

	assert.True(t, s.Cancel())
	waitDone(t, h)

	snap := s.Snapshot()
	assert.Equal(t, domain.PhaseFailed, snap.Phase)
	assert.Equal(t, "download canceled", snap.LastError)

	// Nothing left to cancel.
	assert.False(t, s.Cancel())
}

func TestPercentClamping(t *testing.T) {
	eng := &fakeEngine{
		records: []progress.Record{
			progress.HookRecord(progress.Hook{Status: "downloading", Percent: "150%"}),
		},
		block: make(chan struct{}),
	}
	s := New(eng)

	h, err := s.Start(testPlan(t))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return s.Snapshot().Percent == 100
	}, time.Second, 5*time.Millisecond)

	close(eng.block)
	waitDone(t, h)

	assert.Equal(t, float64(0), clampPercent(-5))
	assert.Equal(t, float64(100), clampPercent(150))
	assert.Equal(t, float64(42.5), clampPercent(42.5))
}

func TestLogTailBounded(t *testing.T) {
	records := make([]progress.Record, 0, LogTailCapacity+50)
	for i := 0; i < LogTailCapacity+50; i++ {
		records = append(records, progress.LineRecord(fmt.Sprintf("[youtube] line %d", i)))
	}
	s := New(&fakeEngine{records: records})

	h, err := s.Start(testPlan(t))
	require.NoError(t, err)
	waitDone(t, h)

	snap := s.Snapshot()
	require.Len(t, snap.LogTail, LogTailCapacity)
	assert.Equal(t, "[youtube] line 50", snap.LogTail[0])
	assert.Equal(t, fmt.Sprintf("[youtube] line %d", LogTailCapacity+49), snap.LogTail[LogTailCapacity-1])
}

func TestObserversReceiveEventsInOrder(t *testing.T) {
	eng := &fakeEngine{records: []progress.Record{
		progress.HookRecord(progress.Hook{Status: "downloading", Percent: "40%"}),
		progress.HookRecord(progress.Hook{Status: "finished", Filename: "a.mp3"}),
	}}
	s := New(eng)

	var types []domain.EventType
	h, err := s.Start(testPlan(t), func(ev domain.Event) {
		types = append(types, ev.Type)
	})
	require.NoError(t, err)
	waitDone(t, h)

	assert.Equal(t, []domain.EventType{
		domain.EventStarted,
		domain.EventProgress,
		domain.EventFinished,
	}, types)
}

func TestEventsAfterTerminalPhaseDropped(t *testing.T) {
	eng := &fakeEngine{records: []progress.Record{
		progress.HookRecord(progress.Hook{Status: "finished", Filename: "a.mp3"}),
		progress.HookRecord(progress.Hook{Status: "downloading", Percent: "10%"}),
		progress.LineRecord("straggler line"),
	}}
	s := New(eng)

	h, err := s.Start(testPlan(t))
	require.NoError(t, err)
	waitDone(t, h)

	snap := s.Snapshot()
	assert.Equal(t, domain.PhaseCompleted, snap.Phase)
	assert.Equal(t, float64(100), snap.Percent)
	assert.Empty(t, snap.LogTail)
}

func TestSlotOccupiedUntilEngineReturns(t *testing.T) {
	// The engine reports the download finished, keeps running (post-
	// processing), then exits uncleanly. The slot must stay occupied until
	// the process is gone, and the late exit must not touch the next job.
	block := make(chan struct{})
	eng := &fakeEngine{
		records: []progress.Record{
			progress.HookRecord(progress.Hook{Status: "finished", Filename: "a.mp3"}),
		},
		block: block,
		err:   errors.New("exit status 1"),
	}
	s := New(eng)

	h1, err := s.Start(testPlan(t))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return s.Snapshot().Phase == domain.PhaseCompleted
	}, time.Second, 5*time.Millisecond)

	_, err = s.Start(testPlan(t))
	var rerr *domain.RequestError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, domain.KindAlreadyRunning, rerr.Kind)

	close(block)
	waitDone(t, h1)

	// The unclean exit arrived after the explicit finished record, so the
	// first job stays completed.
	snap := s.Snapshot()
	assert.Equal(t, h1.ID, snap.JobID)
	assert.Equal(t, domain.PhaseCompleted, snap.Phase)
	assert.Equal(t, "a.mp3", snap.OutputPath)
	assert.Empty(t, snap.LastError)
}

func TestSlotReusableAfterTerminalPhase(t *testing.T) {
	s := New(&fakeEngine{records: []progress.Record{
		progress.HookRecord(progress.Hook{Status: "finished", Filename: "first.mp3"}),
	}})

	h1, err := s.Start(testPlan(t))
	require.NoError(t, err)
	waitDone(t, h1)

	h2, err := s.Start(testPlan(t))
	require.NoError(t, err)
	waitDone(t, h2)

	snap := s.Snapshot()
	assert.Equal(t, h2.ID, snap.JobID)
	assert.NotEqual(t, h1.ID, h2.ID)
}
