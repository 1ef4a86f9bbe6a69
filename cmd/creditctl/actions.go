package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"genstudio/internal/adapter/repo"
	"genstudio/internal/infra"
	"genstudio/internal/infra/credentials"
	"genstudio/internal/ledger"
	"genstudio/internal/middleware"
	"genstudio/internal/queue"
)

const defaultTokenTTL = 24 * time.Hour

// env holds the connections a command opened. Close releases whatever is set.
type env struct {
	cfg    *infra.Config
	logger infra.Logger
	runner *infra.SQLRunner
	rdb    *goredis.Client
	close  []func()
}

func (e *env) Close() {
	for i := len(e.close) - 1; i >= 0; i-- {
		e.close[i]()
	}
}

type needs int

const (
	needDB needs = 1 << iota
	needRedis
	// needLedger opens whichever connection LEDGER_BACKEND points at.
	needLedger
)

func openEnv(ctx context.Context, n needs) (*env, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	if n&needLedger != 0 {
		switch cfg.LedgerBackend {
		case infra.LedgerBackendPostgres:
			n |= needDB
		case infra.LedgerBackendRedis:
			n |= needRedis
		}
	}
	e := &env{cfg: cfg, logger: infra.NewLogger("cli").With().Str("cmd", "creditctl").Logger()}
	if n&needDB != 0 {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		e.close = append(e.close, pool.Close)
		e.runner = infra.NewSQLRunner(pool, e.logger)
	}
	if n&needRedis != 0 {
		rdb, err := infra.NewRedisClient(ctx, cfg)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.close = append(e.close, func() { _ = rdb.Close() })
		e.rdb = rdb
	}
	return e, nil
}

func ledgerEnv(ctx context.Context) (*env, ledger.Store, error) {
	e, err := openEnv(ctx, needLedger)
	if err != nil {
		return nil, nil, err
	}
	var db infra.Transactor
	if e.runner != nil {
		db = e.runner
	}
	var rdb goredis.Cmdable
	if e.rdb != nil {
		rdb = e.rdb
	}
	store, err := ledger.NewStore(e.cfg.LedgerBackend, db, rdb)
	if err != nil {
		e.Close()
		return nil, nil, err
	}
	return e, store, nil
}

func creditsGrantAction(ctx context.Context, cmd *cli.Command) error {
	owner := strings.TrimSpace(cmd.String("owner"))
	amount := cmd.Int64("amount")
	if amount <= 0 {
		return fmt.Errorf("--amount must be positive")
	}
	e, store, err := ledgerEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := store.Grant(ctx, owner, amount); err != nil {
		return fmt.Errorf("grant credits: %w", err)
	}
	balance, err := store.Balance(ctx, owner)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	e.logger.Info().Str("owner", owner).Int64("amount", amount).Msg("credits granted")
	fmt.Fprintf(cmd.Root().Writer, "owner %s balance=%d\n", owner, balance)
	return nil
}

func creditsBalanceAction(ctx context.Context, cmd *cli.Command) error {
	owner := strings.TrimSpace(cmd.String("owner"))
	e, store, err := ledgerEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	balance, err := store.Balance(ctx, owner)
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}
	fmt.Fprintf(cmd.Root().Writer, "owner %s balance=%d\n", owner, balance)
	return nil
}

func textQueue(ctx context.Context) (*env, *queue.Queue, error) {
	e, err := openEnv(ctx, needRedis)
	if err != nil {
		return nil, nil, err
	}
	return e, queue.New(queue.NewRedisListStore(e.rdb)), nil
}

func queueStatusAction(ctx context.Context, cmd *cli.Command) error {
	e, q, err := textQueue(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	st, err := q.Status(ctx, e.cfg.TextRPMLimit)
	if err != nil {
		return fmt.Errorf("queue status: %w", err)
	}
	fmt.Fprintf(cmd.Root().Writer, "waiting=%d processing=%d estimated_wait_minutes=%d\n",
		st.Waiting, st.Processing, st.EstimatedWaitMinutes)
	return nil
}

func queueStuckAction(ctx context.Context, cmd *cli.Command) error {
	e, q, err := textQueue(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	ids, err := q.Stuck(ctx)
	if err != nil {
		return fmt.Errorf("list processing: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(cmd.Root().Writer, "no jobs in processing")
		return nil
	}
	for _, id := range ids {
		fmt.Fprintln(cmd.Root().Writer, id)
	}
	return nil
}

func queueReleaseAction(ctx context.Context, cmd *cli.Command) error {
	jobID := strings.TrimSpace(cmd.String("job"))
	e, q, err := textQueue(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := q.Release(ctx, jobID); err != nil {
		return fmt.Errorf("release %s: %w", jobID, err)
	}
	e.logger.Warn().Str("job_id", jobID).Msg("job released from processing list")
	return nil
}

func dbMigrateAction(ctx context.Context, cmd *cli.Command) error {
	e, err := openEnv(ctx, needDB)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := repo.EnsureSchema(ctx, e.runner); err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, "schema up to date")
	return nil
}

func keysSetAction(ctx context.Context, cmd *cli.Command) error {
	provider := strings.ToLower(strings.TrimSpace(cmd.String("provider")))
	if !credentials.Known(provider) {
		return fmt.Errorf("unsupported provider %q", provider)
	}
	e, err := openEnv(ctx, needDB)
	if err != nil {
		return err
	}
	defer e.Close()

	if err := credentials.NewStore(e.runner).SetToken(ctx, provider, cmd.String("key")); err != nil {
		return fmt.Errorf("store %s key: %w", provider, err)
	}
	fmt.Fprintf(cmd.Root().Writer, "%s key stored\n", provider)
	return nil
}

func tokenAction(ctx context.Context, cmd *cli.Command) error {
	token, err := middleware.SignJWT(cmd.String("secret"), strings.TrimSpace(cmd.String("owner")), cmd.String("locale"), cmd.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.Root().Writer, token)
	return nil
}
