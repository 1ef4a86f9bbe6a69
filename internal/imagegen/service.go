// Package imagegen runs image generation synchronously inside the caller's
// request: validate, reserve, create, call, materialize, then commit or refund.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"genstudio/internal/domain"
	"genstudio/internal/generation"
	"genstudio/internal/infra"
	"genstudio/internal/ledger"
	"genstudio/internal/materializer"
	"genstudio/internal/status"
)

// Generator produces a normalized artifact for a request.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (generation.Artifact, error)
}

// Materializer turns an artifact into a storable URL.
type Materializer interface {
	Materialize(ctx context.Context, art generation.Artifact, filename string) (materializer.Result, error)
}

// Pricer returns the credit cost of a (mode, tier) pair.
type Pricer interface {
	ImageCost(mode, tier string) (int64, error)
}

type Options struct {
	Jobs         domain.JobRepository
	Saga         *ledger.Saga
	Generator    Generator
	Materializer Materializer
	Pricing      Pricer
	Status       status.Store
	Logger       *infra.Logger
}

type Service struct {
	jobs         domain.JobRepository
	saga         *ledger.Saga
	generator    Generator
	materializer Materializer
	pricing      Pricer
	status       status.Store
	logger       *infra.Logger
}

func NewService(opts Options) *Service {
	return &Service{
		jobs:         opts.Jobs,
		saga:         opts.Saga,
		generator:    opts.Generator,
		materializer: opts.Materializer,
		pricing:      opts.Pricing,
		status:       opts.Status,
		logger:       infra.OrDiscard(opts.Logger),
	}
}

// Generate runs one image request for ownerID.
//
// Validation and insufficient credits return before any job exists. Any later
// failure refunds the reservation and leaves the returned job failed; the job
// keeps its reserved credits only when the refund itself failed.
func (s *Service) Generate(ctx context.Context, ownerID string, req generation.Request) (*domain.Job, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cost, err := s.pricing.ImageCost(string(req.Mode), string(req.Tier))
	if err != nil {
		return nil, domain.Invalid("no price for %s/%s", req.Mode, req.Tier)
	}

	var job *domain.Job
	err = s.saga.WithReservation(ctx, ownerID, cost, func(ctx context.Context) error {
		job = &domain.Job{
			OwnerID:         ownerID,
			Kind:            domain.JobKindImage,
			Payload:         req.Payload(),
			Status:          domain.JobStatusPending,
			CreditsReserved: cost,
		}
		if err := s.jobs.Create(ctx, job); err != nil {
			job = nil
			return err
		}
		return s.run(ctx, job, req)
	})
	if err != nil {
		if job != nil {
			s.markFailed(ctx, job, err)
		}
		return job, err
	}

	_ = s.saga.Commit(ctx, ownerID, cost)
	s.setStatus(ctx, job.ID, domain.JobStatusCompleted, 100, "")
	s.logger.Info().
		Str("job_id", job.ID).
		Str("owner_id", ownerID).
		Str("mode", string(req.Mode)).
		Str("tier", string(req.Tier)).
		Int64("amount", cost).
		Msg("imagegen: job completed")
	return job, nil
}

func (s *Service) run(ctx context.Context, job *domain.Job, req generation.Request) error {
	if err := s.update(ctx, job, domain.StatusPatch(domain.JobStatusProcessing)); err != nil {
		return err
	}
	s.setStatus(ctx, job.ID, domain.JobStatusProcessing, 10, "")

	art, err := s.generator.Generate(ctx, req)
	if err != nil {
		return err
	}
	s.setStatus(ctx, job.ID, domain.JobStatusProcessing, 60, "")

	res, err := s.materializer.Materialize(ctx, art, job.ID)
	if err != nil {
		return err
	}
	if !res.Durable {
		s.logger.Warn().Str("job_id", job.ID).Msg("imagegen: storing provider url")
	}
	return s.update(ctx, job, domain.CompletedPatch(res.URL, ""))
}

// update writes patch and mirrors it onto the in-memory job.
func (s *Service) update(ctx context.Context, job *domain.Job, patch domain.JobPatch) error {
	if err := s.jobs.Update(ctx, job.ID, patch); err != nil {
		if errors.Is(err, domain.ErrPersistence) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return job.Apply(patch, time.Now().UTC())
}

func (s *Service) markFailed(ctx context.Context, job *domain.Job, cause error) {
	ctx = context.WithoutCancel(ctx)
	msg := domain.SanitizeError(cause)
	s.logger.Error().Err(cause).Str("job_id", job.ID).Msg("imagegen: job failed")
	patch := domain.FailedPatch(msg, ledger.Refunded(cause))
	if err := s.jobs.Update(ctx, job.ID, patch); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("imagegen: mark failed")
	} else {
		_ = job.Apply(patch, time.Now().UTC())
	}
	s.setStatus(ctx, job.ID, domain.JobStatusFailed, 100, msg)
}

func (s *Service) setStatus(ctx context.Context, jobID string, st domain.JobStatus, progress int, msg string) {
	if s.status == nil {
		return
	}
	entry := status.Entry{Status: st, Progress: progress, Error: msg, UpdatedAt: time.Now().UTC()}
	if err := s.status.Set(ctx, jobID, entry); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("imagegen: status update failed")
	}
}
