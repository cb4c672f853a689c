package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-authoring/internal/archive"
	"github.com/stemsi/exstem-authoring/internal/bulk"
	"github.com/stemsi/exstem-authoring/internal/client"
	"github.com/stemsi/exstem-authoring/internal/config"
	"github.com/stemsi/exstem-authoring/internal/database"
	"github.com/stemsi/exstem-authoring/internal/handler"
	"github.com/stemsi/exstem-authoring/internal/logger"
	"github.com/stemsi/exstem-authoring/internal/middleware"
	"github.com/stemsi/exstem-authoring/internal/repository"
	"github.com/stemsi/exstem-authoring/internal/router"
	"github.com/stemsi/exstem-authoring/internal/service"
	"github.com/stemsi/exstem-authoring/internal/submission"
	"github.com/stemsi/exstem-authoring/internal/testcase"
	"github.com/stemsi/exstem-authoring/internal/upload"
	"github.com/stemsi/exstem-authoring/internal/validator"
	"github.com/stemsi/exstem-authoring/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("parser_url", cfg.ParserURL).
		Str("problem_api_url", cfg.ProblemAPIURL).
		Msg("Starting ExStem Authoring")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Upstream Clients ──────────────────────────────────────────────
	parserClient := client.NewParserClient(cfg.ParserURL, cfg.UpstreamTimeout, log)
	problemClient := client.NewProblemClient(cfg.ProblemAPIURL, cfg.UpstreamTimeout, log)

	// ─── Initialize Repositories ───────────────────────────────────────
	bulkRunRepo := repository.NewBulkRunRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	uploads := upload.NewStore(cfg.UploadDir)
	defaults := submission.Defaults{TimeLimit: cfg.DefaultTimeLimit, MemoryLimit: cfg.DefaultMemoryLimit}

	authService := service.NewAuthService(cfg)
	facade := archive.NewFacade(parserClient, archive.NewRedisCache(rdb, cfg.ParseCacheTTL), log)
	extractor := testcase.NewExtractor(cfg.MaxTestcaseUploadBytes, log)
	submitter := submission.NewSubmitter(problemClient, defaults, log)
	draftStore := service.NewDraftStore(cfg.MaxDrafts, cfg.DraftTTL, uploads, log)
	draftService := service.NewDraftService(cfg, draftStore, uploads, facade, extractor, submitter, log)

	orchestrator := bulk.NewOrchestrator(problemClient, cfg.MaxArchiveBytes, log)
	bulkService := service.NewBulkService(cfg, bulkRunRepo, rdb, uploads, orchestrator, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Draft: handler.NewDraftHandler(draftService, log),
		Bulk:  handler.NewBulkHandler(bulkService, log),
		WS:    handler.NewWSHandler(bulkService, log, cfg.AllowedOrigins),
		Health: func(ctx context.Context) (map[string]string, bool) {
			return database.Check(ctx, pool, rdb)
		},
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	bulkWorker := worker.NewBulkWorker(rdb, bulkService, log)
	go bulkWorker.Start(workerCtx)

	parseLimiter := middleware.NewRateLimiter(cfg.ParseRatePerMinute, time.Minute, middleware.ByAuthor)
	go parseLimiter.Cleanup(workerCtx.Done(), 3*time.Minute)

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, draftService, parseLimiter, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the bulk worker. A run in progress finishes first.
	workerCancel()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer waitCancel()
	bulkWorker.Wait(waitCtx)

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
