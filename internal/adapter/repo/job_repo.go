package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"genstudio/internal/domain"
	"genstudio/internal/infra"
	"genstudio/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	db infra.SQLExecutor
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(db infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{db: db}
}

// Create inserts a new job record. An empty ID is filled with a fresh UUID.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return domain.Invalid("job is required")
	}
	if strings.TrimSpace(job.ID) == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("encode job payload: %w", err)
	}
	row := r.db.QueryRow(ctx, sqlinline.QInsertJob,
		job.ID,
		job.OwnerID,
		string(job.Kind),
		payload,
		string(job.Status),
		job.CreditsReserved,
	)
	if err := row.Scan(&job.CreatedAt, &job.UpdatedAt); err != nil {
		return fmt.Errorf("%w: insert job: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Update applies patch. A status move is only written when the current status
// is one of its predecessors; otherwise ErrInvalidTransition is returned.
func (r *JobRepositoryPG) Update(ctx context.Context, jobID string, patch domain.JobPatch) error {
	var status *string
	var predecessors []string
	if patch.Status != nil {
		s := string(*patch.Status)
		status = &s
		for _, p := range patch.Status.Predecessors() {
			predecessors = append(predecessors, string(p))
		}
	}
	tag, err := r.db.Exec(ctx, sqlinline.QUpdateJob,
		jobID,
		status,
		patch.CreditsReserved,
		patch.OutputURL,
		patch.ResultText,
		patch.ErrorMessage,
		predecessors,
	)
	if err != nil {
		return fmt.Errorf("%w: update job: %w", domain.ErrPersistence, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if status == nil {
		return domain.ErrNotFound
	}

	var current string
	if err := r.db.QueryRow(ctx, sqlinline.QSelectJobStatus, jobID).Scan(&current); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("%w: read job status: %w", domain.ErrPersistence, err)
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, *status)
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, domain.ErrNotFound
	}
	var (
		job     domain.Job
		kind    string
		status  string
		payload []byte
	)
	err := r.db.QueryRow(ctx, sqlinline.QSelectJobByID, jobID).Scan(
		&job.ID,
		&job.OwnerID,
		&kind,
		&payload,
		&status,
		&job.CreditsReserved,
		&job.OutputURL,
		&job.ResultText,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: select job: %w", domain.ErrPersistence, err)
	}
	job.Kind = domain.JobKind(kind)
	job.Status = domain.JobStatus(status)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &job.Payload); err != nil {
			return nil, fmt.Errorf("decode job payload: %w", err)
		}
	}
	return &job, nil
}

// EnsureSchema creates the jobs, credit and integration token tables when they
// are missing.
func EnsureSchema(ctx context.Context, db infra.SQLExecutor) error {
	if _, err := db.Exec(ctx, sqlinline.QEnsureSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
