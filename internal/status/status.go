// Package status is an advisory, TTL-bounded cache of job progress. The job
// record stays authoritative; readers fall back to it on a miss.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"genstudio/internal/domain"
)

const DefaultTTL = time.Hour

// Entry is the cached view of one job.
type Entry struct {
	Status    domain.JobStatus `json:"status"`
	Progress  int              `json:"progress"`
	Error     string           `json:"error,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Store sets, reads and clears entries. Get returns ok=false for a missing or
// expired entry.
type Store interface {
	Set(ctx context.Context, jobID string, entry Entry) error
	Get(ctx context.Context, jobID string) (Entry, bool, error)
	Clear(ctx context.Context, jobID string) error
}

// RedisStore keeps each entry as a JSON string under SET ... EX.
type RedisStore struct {
	client    goredis.Cmdable
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client goredis.Cmdable, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, keyPrefix: "genstudio:status:", ttl: ttl, now: time.Now}
}

func (s *RedisStore) Set(ctx context.Context, jobID string, entry Entry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = s.now().UTC()
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.keyPrefix+jobID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("status: set %s: %w", jobID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (Entry, bool, error) {
	raw, err := s.client.Get(ctx, s.keyPrefix+jobID).Bytes()
	if errors.Is(err, goredis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("status: get %s: %w", jobID, err)
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("status: decode %s: %w", jobID, err)
	}
	return entry, true, nil
}

func (s *RedisStore) Clear(ctx context.Context, jobID string) error {
	if err := s.client.Del(ctx, s.keyPrefix+jobID).Err(); err != nil {
		return fmt.Errorf("status: clear %s: %w", jobID, err)
	}
	return nil
}

type memoryItem struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryStore is an in-process Store with lazy expiry.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	ttl   time.Duration
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds a MemoryStore. now may be nil to use time.Now.
func NewMemoryStore(ttl time.Duration, now func() time.Time) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{items: make(map[string]memoryItem), ttl: ttl, now: now}
}

func (m *MemoryStore) Set(ctx context.Context, jobID string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = now.UTC()
	}
	m.items[jobID] = memoryItem{entry: entry, expiresAt: now.Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, jobID string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[jobID]
	if !ok {
		return Entry{}, false, nil
	}
	if !m.now().Before(item.expiresAt) {
		delete(m.items, jobID)
		return Entry{}, false, nil
	}
	return item.entry, true, nil
}

func (m *MemoryStore) Clear(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, jobID)
	return nil
}
