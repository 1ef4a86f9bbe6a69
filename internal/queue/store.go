// Package queue keeps text job ids in two lists of a shared list store:
// "waiting" for jobs not yet picked up and "processing" for the job the worker
// currently holds.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"genstudio/internal/domain"
)

// ListStore is the push/pop primitive set the queue is built on. Pushes are
// safe for concurrent producers. PopRight returns ok=false on an empty list.
type ListStore interface {
	PushLeft(ctx context.Context, key, value string) error
	PopRight(ctx context.Context, key string) (value string, ok bool, err error)
	Remove(ctx context.Context, key, value string) (int64, error)
	Length(ctx context.Context, key string) (int64, error)
	Range(ctx context.Context, key string) ([]string, error)
}

// RedisListStore maps ListStore onto LPUSH, RPOP, LREM, LLEN and LRANGE.
type RedisListStore struct {
	client goredis.Cmdable
}

var _ ListStore = (*RedisListStore)(nil)

func NewRedisListStore(client goredis.Cmdable) *RedisListStore {
	return &RedisListStore{client: client}
}

func (s *RedisListStore) PushLeft(ctx context.Context, key, value string) error {
	if err := s.client.LPush(ctx, key, value).Err(); err != nil {
		return fmt.Errorf("%w: lpush %s: %v", domain.ErrPersistence, key, err)
	}
	return nil
}

func (s *RedisListStore) PopRight(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.RPop(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: rpop %s: %v", domain.ErrPersistence, key, err)
	}
	return v, true, nil
}

func (s *RedisListStore) Remove(ctx context.Context, key, value string) (int64, error) {
	n, err := s.client.LRem(ctx, key, 0, value).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: lrem %s: %v", domain.ErrPersistence, key, err)
	}
	return n, nil
}

func (s *RedisListStore) Length(ctx context.Context, key string) (int64, error) {
	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: llen %s: %v", domain.ErrPersistence, key, err)
	}
	return n, nil
}

func (s *RedisListStore) Range(ctx context.Context, key string) ([]string, error) {
	vals, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: lrange %s: %v", domain.ErrPersistence, key, err)
	}
	return vals, nil
}

// MemoryListStore is a ListStore for tests and single-process runs. Index 0 is
// the left end of each list.
type MemoryListStore struct {
	mu    sync.Mutex
	lists map[string][]string

	// PushErr, when set, fails every PushLeft.
	PushErr error
}

var _ ListStore = (*MemoryListStore)(nil)

func NewMemoryListStore() *MemoryListStore {
	return &MemoryListStore{lists: make(map[string][]string)}
}

func (m *MemoryListStore) PushLeft(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PushErr != nil {
		return m.PushErr
	}
	m.lists[key] = append([]string{value}, m.lists[key]...)
	return nil
}

func (m *MemoryListStore) PopRight(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.lists[key]
	if len(list) == 0 {
		return "", false, nil
	}
	v := list[len(list)-1]
	m.lists[key] = list[:len(list)-1]
	return v, true, nil
}

func (m *MemoryListStore) Remove(ctx context.Context, key, value string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		kept    []string
		removed int64
	)
	for _, v := range m.lists[key] {
		if v == value {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	m.lists[key] = kept
	return removed, nil
}

func (m *MemoryListStore) Length(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.lists[key])), nil
}

func (m *MemoryListStore) Range(ctx context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lists[key]...), nil
}
