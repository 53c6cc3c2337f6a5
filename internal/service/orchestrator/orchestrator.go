// Package orchestrator wires the plan builder, the job supervisor and the
// bookkeeping infrastructure into the operation surface that presentation
// layers consume.
package orchestrator

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/streamsaavy/streamsaavy-go/internal/domain"
	"github.com/streamsaavy/streamsaavy-go/internal/infra/cache"
	"github.com/streamsaavy/streamsaavy-go/internal/infra/s3"
	"github.com/streamsaavy/streamsaavy-go/internal/infra/sqlite"
	"github.com/streamsaavy/streamsaavy-go/internal/plan"
	"github.com/streamsaavy/streamsaavy-go/internal/supervisor"
)

// Prober retrieves media metadata without downloading.
type Prober interface {
	Probe(ctx context.Context, url string) (*domain.MediaInfo, error)
}

// Orchestrator exposes the job-control and state-query operations.
// History, cache and uploader are optional; a nil field disables that
// bookkeeping without touching the core flow.
type Orchestrator struct {
	builder   plan.Builder
	sup       *supervisor.Supervisor
	repo      *sqlite.Repository
	uploader  *s3.Uploader
	prober    Prober
	infoCache *cache.MediaInfoCache
}

// Option configures optional collaborators.
type Option func(*Orchestrator)

// WithHistory records every admitted job in the repository.
func WithHistory(repo *sqlite.Repository) Option {
	return func(o *Orchestrator) { o.repo = repo }
}

// WithUploader uploads completed single-file downloads and records the link.
func WithUploader(up *s3.Uploader) Option {
	return func(o *Orchestrator) { o.uploader = up }
}

// WithProber enables the metadata probe operation.
func WithProber(p Prober, c *cache.MediaInfoCache) Option {
	return func(o *Orchestrator) {
		o.prober = p
		o.infoCache = c
	}
}

// New creates an Orchestrator around the supervisor and plan builder.
func New(builder plan.Builder, sup *supervisor.Supervisor, opts ...Option) *Orchestrator {
	o := &Orchestrator{builder: builder, sup: sup}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start validates the raw parameters, builds the plan and admits the job.
// Validation failures and admission rejections are synchronous errors; all
// runtime failures surface only through Snapshot.
func (o *Orchestrator) Start(params domain.RequestParams, observers ...supervisor.Observer) (string, error) {
	req, err := domain.NewDownloadRequest(params)
	if err != nil {
		return "", err
	}

	p := o.builder.Build(req)
	jobID := uuid.New().String()

	var record *domain.Job
	if o.repo != nil {
		// The row must exist before any event can try to update it, so it
		// is created ahead of admission and removed again on rejection.
		record = domain.NewJob(jobID, req)
		if cerr := o.repo.Create(context.Background(), record); cerr != nil {
			slog.Error("failed to record job", "job_id", jobID, "error", cerr)
			record = nil
		}
		if record != nil {
			observers = append([]supervisor.Observer{o.recordObserver(record)}, observers...)
		}
	}

	handle, err := o.sup.StartJob(jobID, p, observers...)
	if err != nil {
		if record != nil {
			if derr := o.repo.Delete(context.Background(), jobID); derr != nil {
				slog.Warn("failed to remove rejected job record", "job_id", jobID, "error", derr)
			}
		}
		return "", err
	}

	return handle.ID, nil
}

// recordObserver keeps the history row in step with the live job.
func (o *Orchestrator) recordObserver(job *domain.Job) supervisor.Observer {
	lastPersisted := -1
	return func(ev domain.Event) {
		ctx := context.Background()

		switch ev.Type {
		case domain.EventProgress:
			// Persist at whole-percent granularity to keep writes bounded.
			pct := int(ev.Percent)
			if pct == lastPersisted {
				return
			}
			lastPersisted = pct
			if err := o.repo.UpdateProgress(ctx, job.ID, ev.Percent); err != nil {
				slog.Debug("failed to persist progress", "job_id", job.ID, "error", err)
			}
		case domain.EventFinished:
			job.MarkCompleted(ev.OutputPath)
			if err := o.repo.Update(ctx, job); err != nil {
				slog.Error("failed to finalize job record", "job_id", job.ID, "error", err)
			}
			if o.uploader != nil && job.OutputPath != "" {
				// Upload off the event path so a slow bucket never delays
				// the terminal state.
				go o.uploadResult(job)
			}
		case domain.EventError:
			job.MarkFailed(ev.Kind, ev.Detail)
			if err := o.repo.Update(ctx, job); err != nil {
				slog.Error("failed to finalize job record", "job_id", job.ID, "error", err)
			}
		}
	}
}

func (o *Orchestrator) uploadResult(job *domain.Job) {
	ctx := context.Background()
	key := job.ID + "/" + filepath.Base(job.OutputPath)

	url, err := o.uploader.UploadFile(ctx, job.OutputPath, key)
	if err != nil {
		slog.Error("failed to upload result", "job_id", job.ID, "error", err)
		return
	}

	job.DownloadURL = url
	if err := o.repo.Update(ctx, job); err != nil {
		slog.Error("failed to record download URL", "job_id", job.ID, "error", err)
	}
}

// Cancel requests a best-effort stop of the running job.
func (o *Orchestrator) Cancel() bool {
	return o.sup.Cancel()
}

// Snapshot returns the current job state.
func (o *Orchestrator) Snapshot() domain.Snapshot {
	return o.sup.Snapshot()
}

// Running reports whether a job is active.
func (o *Orchestrator) Running() bool {
	return o.sup.Running()
}

// Modes returns the supported modes for presentation.
func (o *Orchestrator) Modes() []domain.ModeInfo {
	return domain.ModesView()
}

// Probe returns media metadata for a URL, served from cache when fresh.
func (o *Orchestrator) Probe(ctx context.Context, url string) (*domain.MediaInfo, error) {
	if o.prober == nil {
		return nil, &domain.RequestError{
			Kind:    domain.KindInvalidRequest,
			Message: "metadata probing is not enabled",
		}
	}

	if o.infoCache != nil {
		if info, ok := o.infoCache.Get(url); ok {
			return info, nil
		}
	}

	info, err := o.prober.Probe(ctx, url)
	if err != nil {
		return nil, err
	}

	if o.infoCache != nil {
		o.infoCache.Set(url, info)
	}
	return info, nil
}

// PruneHistory removes job records and uploaded objects older than age.
// Collaborators that are not configured are skipped.
func (o *Orchestrator) PruneHistory(ctx context.Context, age time.Duration) {
	if o.repo != nil {
		if n, err := o.repo.DeleteOlderThan(ctx, age); err != nil {
			slog.Warn("history cleanup failed", "error", err)
		} else if n > 0 {
			slog.Info("old job records removed", "count", n)
		}
	}
	if o.uploader != nil {
		if n, err := o.uploader.DeleteOlderThan(ctx, age); err != nil {
			slog.Warn("bucket cleanup failed", "error", err)
		} else if n > 0 {
			slog.Info("old uploads removed", "count", n)
		}
	}
}

// History returns the most recent job records, newest first.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]*domain.Job, error) {
	if o.repo == nil {
		return nil, nil
	}
	return o.repo.ListRecent(ctx, limit)
}

// JobByID returns one historical job record, or nil when absent.
func (o *Orchestrator) JobByID(ctx context.Context, id string) (*domain.Job, error) {
	if o.repo == nil {
		return nil, nil
	}
	return o.repo.GetByID(ctx, id)
}
