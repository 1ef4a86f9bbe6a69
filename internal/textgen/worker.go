package textgen

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/ledger"
	"genstudio/internal/queue"
	"genstudio/internal/status"
)

const DefaultPollInterval = time.Second

type WorkerOptions struct {
	Jobs     domain.JobRepository
	Saga     *ledger.Saga
	Queue    *queue.Queue
	Status   status.Store
	Provider TextProvider
	RPMLimit int
	// PollInterval is the fixed delay between ticks.
	PollInterval time.Duration
	Logger       *infra.Logger
	Now          func() time.Time
}

// Worker is the single consumer of the text queue. Only one Worker may run
// against a queue at a time; the in-flight flag guards re-entrant ticks inside
// one process and nothing else.
type Worker struct {
	jobs     domain.JobRepository
	saga     *ledger.Saga
	queue    *queue.Queue
	status   status.Store
	provider TextProvider
	minGap   time.Duration
	interval time.Duration
	logger   *infra.Logger
	now      func() time.Time

	inFlight     atomic.Bool
	lastDispatch time.Time
}

func NewWorker(opts WorkerOptions) *Worker {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Worker{
		jobs:     opts.Jobs,
		saga:     opts.Saga,
		queue:    opts.Queue,
		status:   opts.Status,
		provider: opts.Provider,
		minGap:   MinDispatchGap(opts.RPMLimit),
		interval: interval,
		logger:   infra.OrDiscard(opts.Logger),
		now:      now,
	}
}

// MinDispatchGap is ceil(60000/rpm) milliseconds.
func MinDispatchGap(rpm int) time.Duration {
	if rpm <= 0 {
		return 0
	}
	ms := (60000 + rpm - 1) / rpm
	return time.Duration(ms) * time.Millisecond
}

// Run ticks every poll interval until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Dur("min_gap", w.minGap).Dur("interval", w.interval).Msg("worker: started")
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		w.Tick(ctx)
		timer.Reset(w.interval)
	}
}

// Tick dispatches at most one job. It does nothing while a dispatch is in
// flight or when the previous dispatch is closer than the minimum gap, and
// reports whether a job was processed.
func (w *Worker) Tick(ctx context.Context) bool {
	if !w.inFlight.CompareAndSwap(false, true) {
		return false
	}
	defer w.inFlight.Store(false)

	if !w.lastDispatch.IsZero() && w.now().Sub(w.lastDispatch) < w.minGap {
		return false
	}

	// A popped id whose processing marker failed is still processed.
	jobID, ok, err := w.queue.Lease(ctx)
	if err != nil {
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("worker: lease failed")
	}
	if !ok {
		return false
	}

	if w.process(ctx, jobID) {
		if err := w.queue.Release(context.WithoutCancel(ctx), jobID); err != nil {
			w.logger.Error().Err(err).Str("job_id", jobID).Msg("worker: release failed")
		}
	}
	w.lastDispatch = w.now()
	return true
}

// LastDispatch returns when the previous dispatch finished.
func (w *Worker) LastDispatch() time.Time { return w.lastDispatch }

// process runs one leased job and reports whether its id may leave the
// processing list. An id whose record could not be loaded stays there so
// that it shows up as stuck.
func (w *Worker) process(ctx context.Context, jobID string) (release bool) {
	bg := context.WithoutCancel(ctx)
	job, err := w.jobs.GetByID(bg, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			w.logger.Warn().Str("job_id", jobID).Msg("worker: leased job has no record")
			return true
		}
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("worker: load job failed, leaving it in processing")
		return false
	}
	if job.Status != domain.JobStatusPending {
		w.logger.Warn().Str("job_id", jobID).Str("status", string(job.Status)).Msg("worker: skipping job not pending")
		return true
	}
	w.logger.Info().Str("job_id", jobID).Str("owner_id", job.OwnerID).Msg("worker: picked job")

	defer func() {
		if r := recover(); r != nil {
			w.fail(bg, job, fmt.Errorf("%w: panic: %v", domain.ErrProviderFailure, r))
			release = true
		}
	}()

	if err := w.jobs.Update(bg, jobID, domain.StatusPatch(domain.JobStatusProcessing)); err != nil {
		w.fail(bg, job, fmt.Errorf("mark processing: %w", errors.Join(domain.ErrPersistence, err)))
		return true
	}
	setStatus(bg, w.status, w.logger, jobID, domain.JobStatusProcessing, 10, "")

	text, err := w.provider.Complete(ctx, SystemPrompt, BuildUserPrompt(job.Payload))
	if err != nil {
		w.fail(bg, job, err)
		return true
	}

	if err := w.jobs.Update(bg, jobID, domain.CompletedPatch("", text)); err != nil {
		w.fail(bg, job, fmt.Errorf("store result: %w", errors.Join(domain.ErrPersistence, err)))
		return true
	}
	_ = w.saga.Commit(bg, job.OwnerID, job.CreditsReserved)
	setStatus(bg, w.status, w.logger, jobID, domain.JobStatusCompleted, 100, "")
	w.logger.Info().Str("job_id", jobID).Msg("worker: job completed")
	return true
}

func (w *Worker) fail(ctx context.Context, job *domain.Job, cause error) {
	w.logger.Error().Err(cause).Str("job_id", job.ID).Msg("worker: job failed")
	refunded := true
	if job.CreditsReserved > 0 {
		refunded = w.saga.Compensate(ctx, job.OwnerID, job.CreditsReserved) == nil
	}
	msg := domain.SanitizeError(cause)
	if err := w.jobs.Update(ctx, job.ID, domain.FailedPatch(msg, refunded)); err != nil {
		w.logger.Error().Err(err).Str("job_id", job.ID).Msg("worker: mark failed")
	}
	setStatus(ctx, w.status, w.logger, job.ID, domain.JobStatusFailed, 100, msg)
}
