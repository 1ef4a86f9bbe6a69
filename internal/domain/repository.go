package domain

import "context"

// JobRepository defines persistence for job entities. Update must reject
// backwards status moves with ErrInvalidTransition.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	Update(ctx context.Context, jobID string, patch JobPatch) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
}
