package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/config"
	dbRedis "github.com/kailas-cloud/docdex/internal/db/redis"
	"github.com/kailas-cloud/docdex/internal/index"
	logpkg "github.com/kailas-cloud/docdex/internal/logger"
	"github.com/kailas-cloud/docdex/internal/metrics"
	"github.com/kailas-cloud/docdex/internal/queue"
	annotationrepo "github.com/kailas-cloud/docdex/internal/repository/annotation"
	batchrepo "github.com/kailas-cloud/docdex/internal/repository/batchsearch"
	"github.com/kailas-cloud/docdex/internal/repository/dedup"
	"github.com/kailas-cloud/docdex/internal/repository/report"
	"github.com/kailas-cloud/docdex/internal/storage/sqlite"
	transport "github.com/kailas-cloud/docdex/internal/transport/chi"
	annotateuc "github.com/kailas-cloud/docdex/internal/usecase/annotate"
	batchuc "github.com/kailas-cloud/docdex/internal/usecase/batchsearch"
	"github.com/kailas-cloud/docdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting docdex",
		zap.String("version", version.Short()),
		zap.String("env", env),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("sqlite_path", cfg.Storage.SQLitePath),
		zap.String("queue", cfg.Queue.Name),
		zap.String("filter_scope", cfg.Filter.Scope),
	)

	// Relational store for annotations and batch searches
	sqlStore, err := sqlite.NewStore(cfg.Storage.SQLitePath)
	if err != nil {
		logger.Fatal("Failed to open SQLite store", zap.Error(err))
	}
	defer sqlStore.Close()

	// Redis store for the dedup filter, the failure report and the index
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create Redis store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to Redis")

	metrics.Register()

	// Repositories
	annRepo := annotationrepo.New(sqlStore.DB())
	bsRepo := batchrepo.New(sqlStore.DB())
	filter := dedup.New(store, dedup.Scope(cfg.Filter.Scope), cfg.Filter.SetName)
	failures := report.New(store, cfg.Filter.ReportName)

	// Executor and runner
	executor := index.New(store).
		WithPageSize(cfg.Batch.PageSize).
		WithMaxHits(cfg.Batch.MaxHitsPerQuery)
	runner := batchuc.NewRunner(bsRepo, executor, filter, logger).
		WithRetryPolicy(batchuc.RetryPolicy{
			MaxAttempts:    cfg.Batch.RetryMaxAttempts,
			InitialBackoff: time.Duration(cfg.Batch.RetryInitialBackoffMS) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.Batch.RetryMaxBackoffMS) * time.Millisecond,
		}).
		WithReporter(failures)

	// Queue client and services
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Database.Addrs[0],
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	}
	enqueuer := queue.NewClient(redisOpt, cfg.Queue.Name)
	defer enqueuer.Close()

	annotations := annotateuc.New(annRepo, logger)
	batches := batchuc.NewService(bsRepo, enqueuer, logger).WithFailureReader(failures)

	// Worker server
	worker := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Queue.Concurrency,
		Queues:      map[string]int{cfg.Queue.Name: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error("Task failed", zap.String("type", task.Type()), zap.Error(err))
		}),
	})

	handler := queue.NewHandler(runner, logger)
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskBatchSearch, handler.ProcessBatchSearch)

	if err := worker.Start(mux); err != nil {
		logger.Fatal("Failed to start worker", zap.Error(err))
	}

	// HTTP API server
	apiServer := transport.NewServer(annotations, batches, store.Ping, logger)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      apiServer.Router(cfg.Server.UserHeader),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("Received shutdown signal")

	worker.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownSec)*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during HTTP shutdown", zap.Error(err))
	}

	logger.Info("Stopped gracefully")
}
