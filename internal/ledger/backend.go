package ledger

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"genstudio/internal/infra"
)

// NewStore picks the ledger implementation named by backend. Only the
// dependency the backend needs has to be non-nil.
func NewStore(backend string, db infra.Transactor, rdb goredis.Cmdable) (Store, error) {
	switch backend {
	case infra.LedgerBackendPostgres:
		if db == nil {
			return nil, fmt.Errorf("ledger: postgres backend needs a database")
		}
		return NewPostgresStore(db), nil
	case infra.LedgerBackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("ledger: redis backend needs a redis client")
		}
		return NewRedisStore(rdb), nil
	default:
		return nil, fmt.Errorf("ledger: unknown backend %q", backend)
	}
}
