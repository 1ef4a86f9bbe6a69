package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"genstudio/internal/adapter/repo"
	"genstudio/internal/generation"
	"genstudio/internal/http/handlers"
	httpapi "genstudio/internal/http/httpapi"
	"genstudio/internal/imagegen"
	"genstudio/internal/infra"
	"genstudio/internal/infra/credentials"
	"genstudio/internal/ledger"
	"genstudio/internal/materializer"
	"genstudio/internal/providers/genai"
	"genstudio/internal/providers/replicate"
	"genstudio/internal/queue"
	"genstudio/internal/retry"
	"genstudio/internal/status"
	"genstudio/internal/storage"
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
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	if cfg.DBAutoMigrate {
		if err := repo.EnsureSchema(ctx, runner); err != nil {
			logger.Fatal().Err(err).Msg("api: schema migration failed")
		}
	}

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: redis connection failed")
	}
	defer rdb.Close()

	ledgerStore, err := ledger.NewStore(cfg.LedgerBackend, runner, rdb)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: ledger setup failed")
	}
	saga := ledger.NewSaga(ledgerStore, &logger)

	pricing, err := infra.LoadPricing(cfg.PricingFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: pricing load failed")
	}

	fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: storage setup failed")
	}

	creds := credentials.NewStore(runner)
	replicateToken := resolveKey(ctx, creds, credentials.ProviderReplicate, cfg.ReplicateAPIToken, logger)
	geminiKey := resolveKey(ctx, creds, credentials.ProviderGemini, cfg.GeminiAPIKey, logger)

	replicateClient, err := replicate.NewClient(replicate.Options{
		APIToken: replicateToken,
		BaseURL:  cfg.ReplicateBaseURL,
		Logger:   &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: replicate client setup failed")
	}
	geminiClient, err := genai.NewClient(genai.Options{
		APIKey:  geminiKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: gemini client setup failed")
	}

	generator := generation.NewClient(generation.Options{
		Replicate: replicateClient,
		GenAI:     geminiClient,
		Models: generation.ModelSet{
			Replicate:      cfg.ReplicateModel,
			ReplicateMulti: cfg.ReplicateMultiModel,
		},
		Logger: &logger,
	})

	mat := materializer.New(materializer.Options{
		Uploader:   fileStore,
		Downloader: materializer.NewHTTPDownloader(nil),
		Policy: retry.Policy{
			MaxAttempts: cfg.DownloadMaxAttempts,
			Backoff:     retry.Fixed(cfg.DownloadBackoff),
		},
		Logger: &logger,
	})

	jobs := repo.NewJobRepository(runner)
	statusStore := status.NewRedisStore(rdb, cfg.StatusTTL)
	textQueue := queue.New(queue.NewRedisListStore(rdb))

	app := &handlers.App{
		Images: imagegen.NewService(imagegen.Options{
			Jobs:         jobs,
			Saga:         saga,
			Generator:    generator,
			Materializer: mat,
			Pricing:      pricing,
			Status:       statusStore,
			Logger:       &logger,
		}),
		Texts: textgen.NewService(textgen.ServiceOptions{
			Jobs:     jobs,
			Saga:     saga,
			Queue:    textQueue,
			Status:   statusStore,
			Cost:     pricing.TextLetter,
			RPMLimit: cfg.TextRPMLimit,
			Logger:   &logger,
		}),
		Jobs:   jobs,
		Status: statusStore,
		Ledger: ledgerStore,
		Logger: &logger,
		Checks: map[string]func(context.Context) error{
			"db":    pool.Ping,
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	}

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit:      cfg.RateLimitPerMin,
		DefaultLocale:  "en",
		StaticDir:      fileStore.BasePath(),
		Logger:         logger,
	})

	server := infra.NewHTTPServer(ctx, cfg, router)
	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("api: listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: shutdown failed")
	}
	logger.Info().Msg("api: stopped")
}

// resolveKey prefers the configured key and falls back to integration_tokens.
func resolveKey(ctx context.Context, creds *credentials.Store, provider, explicit string, logger infra.Logger) string {
	key, err := creds.Resolve(ctx, provider, explicit)
	if err != nil {
		logger.Warn().Err(err).Str("provider", provider).Msg("api: stored key lookup failed")
		return ""
	}
	if key == "" {
		logger.Warn().Str("provider", provider).Msg("api: no api key configured")
	}
	return key
}
