// Package textgen accepts text letter jobs and runs them through a single
// rate-limited worker.
package textgen

import (
	"context"
	"errors"
	"time"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/ledger"
	"genstudio/internal/queue"
	"genstudio/internal/status"
)

// TextProvider completes one letter.
type TextProvider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type ServiceOptions struct {
	Jobs   domain.JobRepository
	Saga   *ledger.Saga
	Queue  *queue.Queue
	Status status.Store
	// Cost is the credit price of one letter.
	Cost     int64
	RPMLimit int
	Logger   *infra.Logger
}

// Service is the producer side of the text queue.
type Service struct {
	jobs   domain.JobRepository
	saga   *ledger.Saga
	queue  *queue.Queue
	status status.Store
	cost   int64
	rpm    int
	logger *infra.Logger
}

func NewService(opts ServiceOptions) *Service {
	return &Service{
		jobs:   opts.Jobs,
		saga:   opts.Saga,
		queue:  opts.Queue,
		status: opts.Status,
		cost:   opts.Cost,
		rpm:    opts.RPMLimit,
		logger: infra.OrDiscard(opts.Logger),
	}
}

// Submit reserves credits, creates a pending job and enqueues it. When the
// enqueue fails after the job exists, the reservation is refunded and the job
// is marked failed.
func (s *Service) Submit(ctx context.Context, ownerID string, req LetterRequest) (*domain.Job, error) {
	req, err := req.Validate()
	if err != nil {
		return nil, err
	}

	var job *domain.Job
	err = s.saga.WithReservation(ctx, ownerID, s.cost, func(ctx context.Context) error {
		job = &domain.Job{
			OwnerID:         ownerID,
			Kind:            domain.JobKindTextLetter,
			Payload:         req.Payload(),
			Status:          domain.JobStatusPending,
			CreditsReserved: s.cost,
		}
		if err := s.jobs.Create(ctx, job); err != nil {
			job = nil
			return err
		}
		if err := s.queue.Enqueue(ctx, job.ID); err != nil {
			return errors.Join(domain.ErrPersistence, err)
		}
		return nil
	})
	if err != nil {
		if job != nil {
			s.markFailed(ctx, job.ID, err)
		}
		return nil, err
	}

	s.setStatus(ctx, job.ID, domain.JobStatusPending, 0, "")
	s.logger.Info().
		Str("job_id", job.ID).
		Str("owner_id", ownerID).
		Int64("amount", s.cost).
		Msg("textgen: job enqueued")
	return job, nil
}

// QueueStatus reports queue depth and the estimated wait at the configured RPM.
func (s *Service) QueueStatus(ctx context.Context) (queue.Status, error) {
	return s.queue.Status(ctx, s.rpm)
}

func (s *Service) markFailed(ctx context.Context, jobID string, cause error) {
	msg := domain.SanitizeError(cause)
	ctx = context.WithoutCancel(ctx)
	if err := s.jobs.Update(ctx, jobID, domain.FailedPatch(msg, ledger.Refunded(cause))); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("textgen: mark failed")
	}
	s.setStatus(ctx, jobID, domain.JobStatusFailed, 100, msg)
}

func (s *Service) setStatus(ctx context.Context, jobID string, st domain.JobStatus, progress int, msg string) {
	setStatus(ctx, s.status, s.logger, jobID, st, progress, msg)
}

func setStatus(ctx context.Context, store status.Store, logger *infra.Logger, jobID string, st domain.JobStatus, progress int, msg string) {
	if store == nil {
		return
	}
	entry := status.Entry{Status: st, Progress: progress, Error: msg, UpdatedAt: time.Now().UTC()}
	if err := store.Set(ctx, jobID, entry); err != nil {
		logger.Warn().Err(err).Str("job_id", jobID).Msg("textgen: status update failed")
	}
}
