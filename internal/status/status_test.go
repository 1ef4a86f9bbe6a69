package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genstudio/internal/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryStoreSetGetClear(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(time.Hour, clock.Now)

	require.NoError(t, store.Set(ctx, "job-1", Entry{Status: domain.JobStatusProcessing, Progress: 50}))
	got, ok, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusProcessing, got.Status)
	assert.Equal(t, 50, got.Progress)
	assert.Equal(t, clock.t, got.UpdatedAt)

	require.NoError(t, store.Clear(ctx, "job-1"))
	_, ok, err = store.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(time.Hour, clock.Now)

	require.NoError(t, store.Set(ctx, "job-1", Entry{Status: domain.JobStatusPending}))
	clock.Advance(59 * time.Minute)
	_, ok, _ := store.Get(ctx, "job-1")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	_, ok, _ = store.Get(ctx, "job-1")
	assert.False(t, ok)
}

func TestMemoryStoreSetRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(time.Hour, clock.Now)

	require.NoError(t, store.Set(ctx, "job-1", Entry{Status: domain.JobStatusPending}))
	clock.Advance(45 * time.Minute)
	require.NoError(t, store.Set(ctx, "job-1", Entry{Status: domain.JobStatusFailed, Error: "generation failed"}))
	clock.Advance(45 * time.Minute)

	got, ok, _ := store.Get(ctx, "job-1")
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, "generation failed", got.Error)
}

func TestMemoryStoreDefaultTTL(t *testing.T) {
	store := NewMemoryStore(0, nil)
	assert.Equal(t, DefaultTTL, store.ttl)
}
