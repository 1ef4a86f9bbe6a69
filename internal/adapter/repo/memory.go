package repo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"genstudio/internal/domain"
)

// MemoryJobRepository keeps jobs in a map. It applies the same transition
// rules as the Postgres repository and hands out copies.
type MemoryJobRepository struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
	now  func() time.Time

	// CreateErr and UpdateErr, when set, are returned instead of writing.
	CreateErr error
	UpdateErr error
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{jobs: make(map[string]domain.Job), now: time.Now}
}

func (r *MemoryJobRepository) Create(_ context.Context, job *domain.Job) error {
	if job == nil {
		return domain.Invalid("job is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	if strings.TrimSpace(job.ID) == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	now := r.now()
	job.CreatedAt, job.UpdatedAt = now, now
	r.jobs[job.ID] = *job
	return nil
}

func (r *MemoryJobRepository) Update(_ context.Context, jobID string, patch domain.JobPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		return r.UpdateErr
	}
	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if err := job.Apply(patch, r.now()); err != nil {
		return err
	}
	r.jobs[jobID] = job
	return nil
}

func (r *MemoryJobRepository) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

// Len returns the number of stored jobs.
func (r *MemoryJobRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

var _ domain.JobRepository = (*MemoryJobRepository)(nil)
