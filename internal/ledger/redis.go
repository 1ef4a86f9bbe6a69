package ledger

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"genstudio/internal/domain"
)

// RedisStore keeps each owner's credits in a hash with "balance" and "spent"
// fields. Reserve runs as a Lua script so the check and the debit are atomic.
type RedisStore struct {
	client    goredis.Cmdable
	keyPrefix string
}

var _ Store = (*RedisStore)(nil)

// RedisOption configures RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the Redis key prefix (default "genstudio:credits:").
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.keyPrefix = prefix }
}

func NewRedisStore(client goredis.Cmdable, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, keyPrefix: "genstudio:credits:"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(owner string) string {
	return s.keyPrefix + owner
}

// reserveScript debits ARGV[1] from the balance field of KEYS[1].
// Returns 1 when reserved and 0 when the balance is insufficient.
var reserveScript = goredis.NewScript(`
local balance = tonumber(redis.call("HGET", KEYS[1], "balance") or "0")
local amount = tonumber(ARGV[1])
if balance < amount then
    return 0
end
redis.call("HINCRBY", KEYS[1], "balance", -amount)
return 1
`)

func (s *RedisStore) Reserve(ctx context.Context, owner string, amount int64) error {
	if err := checkAmount(owner, amount); err != nil {
		return err
	}
	res, err := reserveScript.Run(ctx, s.client, []string{s.key(owner)}, amount).Int64()
	if err != nil {
		return fmt.Errorf("%w: redis reserve: %v", domain.ErrPersistence, err)
	}
	if res == 0 {
		return domain.ErrInsufficientCredits
	}
	return nil
}

func (s *RedisStore) Refund(ctx context.Context, owner string, amount int64) error {
	return s.incr(ctx, owner, "balance", amount)
}

func (s *RedisStore) Grant(ctx context.Context, owner string, amount int64) error {
	return s.incr(ctx, owner, "balance", amount)
}

func (s *RedisStore) Commit(ctx context.Context, owner string, amount int64) error {
	return s.incr(ctx, owner, "spent", amount)
}

func (s *RedisStore) Balance(ctx context.Context, owner string) (int64, error) {
	v, err := s.client.HGet(ctx, s.key(owner), "balance").Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: redis balance: %v", domain.ErrPersistence, err)
	}
	return v, nil
}

func (s *RedisStore) incr(ctx context.Context, owner, field string, amount int64) error {
	if err := checkAmount(owner, amount); err != nil {
		return err
	}
	if err := s.client.HIncrBy(ctx, s.key(owner), field, amount).Err(); err != nil {
		return fmt.Errorf("%w: redis %s: %v", domain.ErrPersistence, field, err)
	}
	return nil
}
