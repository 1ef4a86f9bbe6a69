// Command worker drains the text letter queue. Run exactly one instance per
// queue: dispatch pacing and the in-flight guard are process local.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"genstudio/internal/adapter/repo"
	"genstudio/internal/infra"
	"genstudio/internal/infra/credentials"
	"genstudio/internal/ledger"
	"genstudio/internal/providers/textai"
	"genstudio/internal/queue"
	"genstudio/internal/status"
	"genstudio/internal/textgen"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: redis connection failed")
	}
	defer rdb.Close()

	ledgerStore, err := ledger.NewStore(cfg.LedgerBackend, runner, rdb)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: ledger setup failed")
	}

	apiKey, err := credentials.NewStore(runner).Resolve(ctx, credentials.ProviderOpenAI, cfg.OpenAIAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("worker: stored openai key lookup failed")
	}
	if apiKey == "" {
		logger.Warn().Msg("worker: openai api key missing, every letter will fail")
	}

	provider := textai.NewClient(textai.Options{
		APIKey:  apiKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
		Logger:  &logger,
	})

	textQueue := queue.New(queue.NewRedisListStore(rdb))
	if stuck, err := textQueue.Stuck(ctx); err == nil && len(stuck) > 0 {
		logger.Warn().Strs("job_ids", stuck).Msg("worker: jobs left in processing by an earlier run")
	}

	worker := textgen.NewWorker(textgen.WorkerOptions{
		Jobs:         repo.NewJobRepository(runner),
		Saga:         ledger.NewSaga(ledgerStore, &logger),
		Queue:        textQueue,
		Status:       status.NewRedisStore(rdb, cfg.StatusTTL),
		Provider:     provider,
		RPMLimit:     cfg.TextRPMLimit,
		PollInterval: cfg.WorkerPollInterval,
		Logger:       &logger,
	})

	logger.Info().
		Str("model", provider.Model()).
		Int("rpm_limit", cfg.TextRPMLimit).
		Msg("worker: text provider ready")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
