// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-ai-generation/internal/config"
	"telegram-ai-generation/internal/domain/ports/adapter"
	genAdapters "telegram-ai-generation/internal/infra/adapters/generation"
	payAdapters "telegram-ai-generation/internal/infra/adapters/payment"
	promptAdapters "telegram-ai-generation/internal/infra/adapters/prompt"
	tele "telegram-ai-generation/internal/infra/adapters/telegram"
	pg "telegram-ai-generation/internal/infra/db/postgres"
	httpapi "telegram-ai-generation/internal/infra/http"
	"telegram-ai-generation/internal/infra/logging"
	"telegram-ai-generation/internal/infra/metrics"
	red "telegram-ai-generation/internal/infra/redis"
	"telegram-ai-generation/internal/infra/sched"
	"telegram-ai-generation/internal/infra/worker"
	"telegram-ai-generation/internal/usecase"
)

const version = "1.0.0"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop adapters where keys are missing)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	fileCache := red.NewFileCache(redisClient, cfg.Redis.FileTTL)

	// ---- Repositories ----
	userRepo := pg.NewUserRepo(pool)
	planRepo := pg.NewPlanRepo(pool)
	grantRepo := pg.NewGrantRepo(pool)
	jobRepo := pg.NewGenerationJobRepo(pool)
	payRepo := pg.NewPaymentRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Use cases ----
	ledger := usecase.NewCreditLedger(grantRepo, planRepo, tm, cfg.Subscription.DefaultPlan, cfg.Subscription.ExpiryBatch, logger)
	userUC := usecase.NewUserUseCase(userRepo, ledger)
	collector := usecase.NewMediaBatchCollector(cfg.Bot.Debounce)

	// ---- Generation provider ----
	var provider adapter.GenerationProvider
	if cfg.Generation.KieKey != "" {
		provider, err = genAdapters.NewKieProvider(cfg.Generation.KieKey, cfg.Generation.APIBase, cfg.Generation.UploadBase, cfg.Generation.Model)
		if err != nil {
			logger.Fatal().Err(err).Msg("kie provider init failed")
		}
	} else if cfg.Runtime.Dev {
		provider = genAdapters.NewNoopProvider()
		logger.Warn().Msg("generation.kie_key empty, using noop provider")
	} else {
		logger.Fatal().Msg("generation.kie_key is required outside dev mode")
	}

	// ---- Prompt refiner (optional) ----
	var refiner adapter.PromptRefiner
	if cfg.Prompt.OpenRouterKey != "" {
		refiner, err = promptAdapters.NewOpenRouterRefiner(cfg.Prompt.OpenRouterKey, cfg.Prompt.Model, cfg.Prompt.BaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("openrouter refiner init failed")
		}
	} else {
		refiner = promptAdapters.NewNoopRefiner()
		logger.Warn().Msg("prompt.openrouter_key empty, prompts pass through unrefined")
	}

	// ---- Payment gateway ----
	var gateway adapter.PaymentGateway
	if cfg.Payment.Platega.MerchantID != "" {
		gateway, err = payAdapters.NewPlategaGateway(
			cfg.Payment.Platega.BaseURL, cfg.Payment.Platega.MerchantID, cfg.Payment.Platega.Secret,
			cfg.Payment.Platega.ReturnURL, cfg.Payment.Platega.FailedURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("platega gateway init failed")
		}
	} else if cfg.Runtime.Dev {
		gateway = payAdapters.NewNoopPaymentGateway()
		logger.Warn().Msg("payment.platega.merchant_id empty, using noop gateway")
	} else {
		logger.Fatal().Msg("payment.platega credentials are required outside dev mode")
	}

	// ---- Delivery sink / file source ----
	var sink adapter.DeliverySink
	var files adapter.FileSource
	var bot *tele.RealBot
	if cfg.Runtime.Dev && cfg.Bot.Token == "dev" {
		noop := tele.NewNoopBot()
		sink, files = noop, noop
		logger.Warn().Msg("bot.token=dev, telegram polling disabled")
	} else {
		bot, err = tele.NewRealBot(&cfg.Bot, tele.RealBotDeps{
			Users:       userUC,
			Ledger:      ledger,
			Plans:       planRepo,
			Collector:   collector,
			FileCache:   fileCache,
			RateLimiter: rateLimiter,
			LimitPerMin: cfg.Subscription.RateLimitPerMin,
		}, 8, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram bot init failed")
		}
		sink, files = bot, bot
	}

	paymentUC := usecase.NewPaymentUseCase(payRepo, planRepo, gateway, ledger, sink, logger)

	// ---- Worker pool + orchestrator ----
	genPool := worker.NewPool(cfg.Generation.MaxConcurrent, logger)
	genPool.Start(ctx)
	orch := usecase.NewGenerationOrchestrator(ledger, provider, refiner, files, sink, jobRepo, genPool, usecase.OrchestratorOptions{
		PollInterval:  cfg.Generation.PollInterval,
		PollBudget:    cfg.Generation.PollBudget,
		MaxInputFiles: cfg.Generation.MaxInputFiles,
	}, logger)

	if bot != nil {
		bot.SetOrchestrator(orch)
		bot.SetPayments(paymentUC)
		go func() {
			if err := bot.StartPolling(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("telegram polling stopped")
			}
		}()
	}

	// ---- Scheduled workers ----
	expiry := sched.NewExpiryWorker(cfg.Subscription.ExpirySweep, ledger, logger)
	go func() { _ = expiry.Run(ctx) }()
	reconciler := sched.NewPaymentReconciler(paymentUC, payRepo, cfg.Payment.ReconcileInterval, 30*time.Second, cfg.Payment.ReconcileBatch, logger)
	go func() { _ = reconciler.Run(ctx) }()

	// ---- HTTP server ----
	srv := httpapi.NewServer(cfg, pool, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	if bot != nil {
		bot.StopPolling()
	}
	genPool.Stop()
	logger.Info().Msg("bye")
}
