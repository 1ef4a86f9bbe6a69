package queue

import (
	"context"
	"fmt"
	"strings"

	"genstudio/internal/domain"
)

const (
	DefaultWaitingKey    = "genstudio:text:waiting"
	DefaultProcessingKey = "genstudio:text:processing"
)

// Status is the observable queue depth.
type Status struct {
	Waiting              int64 `json:"waiting"`
	Processing           int64 `json:"processing"`
	EstimatedWaitMinutes int64 `json:"estimatedWaitMinutes"`
}

// Queue is a FIFO over a ListStore: producers push on the left, the single
// consumer pops from the right.
//
// Lease pops and then pushes onto the processing list as two separate calls.
// A crash between Lease and Release leaves the id in the processing list; it is
// reported by Stuck and never moved back automatically. Only one consumer may
// run at a time; there is no lease ownership or fencing.
type Queue struct {
	store         ListStore
	waitingKey    string
	processingKey string
}

// Option configures Queue.
type Option func(*Queue)

// WithKeys overrides the waiting and processing list keys.
func WithKeys(waiting, processing string) Option {
	return func(q *Queue) {
		q.waitingKey = waiting
		q.processingKey = processing
	}
}

func New(store ListStore, opts ...Option) *Queue {
	q := &Queue{
		store:         store,
		waitingKey:    DefaultWaitingKey,
		processingKey: DefaultProcessingKey,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends jobID to the waiting list.
func (q *Queue) Enqueue(ctx context.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return domain.Invalid("job id is required")
	}
	return q.store.PushLeft(ctx, q.waitingKey, jobID)
}

// Lease pops the oldest waiting id and marks it as processing. ok is false when
// nothing is waiting.
func (q *Queue) Lease(ctx context.Context) (string, bool, error) {
	jobID, ok, err := q.store.PopRight(ctx, q.waitingKey)
	if err != nil || !ok {
		return "", false, err
	}
	if err := q.store.PushLeft(ctx, q.processingKey, jobID); err != nil {
		return jobID, true, fmt.Errorf("mark processing: %w", err)
	}
	return jobID, true, nil
}

// Release removes jobID from the processing list.
func (q *Queue) Release(ctx context.Context, jobID string) error {
	_, err := q.store.Remove(ctx, q.processingKey, jobID)
	return err
}

// Status reports both list lengths and the estimated wait in whole minutes at
// rpm dispatches per minute.
func (q *Queue) Status(ctx context.Context, rpm int) (Status, error) {
	waiting, err := q.store.Length(ctx, q.waitingKey)
	if err != nil {
		return Status{}, err
	}
	processing, err := q.store.Length(ctx, q.processingKey)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Waiting:              waiting,
		Processing:           processing,
		EstimatedWaitMinutes: EstimatedWaitMinutes(waiting, rpm),
	}, nil
}

// Stuck lists the ids currently in the processing list.
func (q *Queue) Stuck(ctx context.Context) ([]string, error) {
	return q.store.Range(ctx, q.processingKey)
}

// EstimatedWaitMinutes is ceil(waiting / rpm).
func EstimatedWaitMinutes(waiting int64, rpm int) int64 {
	if rpm <= 0 || waiting <= 0 {
		return 0
	}
	r := int64(rpm)
	return (waiting + r - 1) / r
}
