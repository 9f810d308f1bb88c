package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ftcatalog/internal/app"
	"github.com/kailas-cloud/ftcatalog/internal/config"
	dbRedis "github.com/kailas-cloud/ftcatalog/internal/db/redis"
	logpkg "github.com/kailas-cloud/ftcatalog/internal/logger"
	"github.com/kailas-cloud/ftcatalog/internal/metrics"
	chiTransport "github.com/kailas-cloud/ftcatalog/internal/transport/chi"
	"github.com/kailas-cloud/ftcatalog/internal/version"
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

	logger.Info("Starting catalog daemon",
		version.Field(),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("commit_mode", cfg.Commit.Mode),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
		Timeout:  time.Duration(cfg.Database.CommandTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register catalog metrics explicitly (no init())
	metrics.Register()

	reg, err := cfg.Registry()
	if err != nil {
		logger.Fatal("Invalid schemas", zap.Error(err))
	}

	catalog, err := app.Build(ctx, store, app.Config{
		Registry:         reg,
		Settings:         cfg.Settings(logger),
		KeyPrefix:        cfg.Storage.KeyPrefix,
		GeometryMaxParts: cfg.Catalog.GeometryMaxParts,
		SourceID:         cfg.Catalog.SourceID,
		DefaultPageSize:  cfg.Query.DefaultPageSize,
		FetchChunk:       cfg.Query.FetchChunk,
		QueryTimeout:     cfg.QueryTimeout(),
		CommitBatch:      cfg.Commit.BatchSize,
		BatchLimit:       cfg.Ingest.BatchLimit,
		RatePerSec:       cfg.Ingest.RatePerSec,
		RateBurst:        cfg.Ingest.RateBurst,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to build catalog", zap.Error(err))
	}
	defer catalog.Close()
	logger.Info("Catalog ready",
		zap.String("index", catalog.Layout.IndexName()),
		zap.Int("attributes", len(reg.Attributes())),
	)

	go catalog.RunAutoCommit(ctx, cfg.CommitInterval())

	server := chiTransport.NewServer(catalog.Health, catalog.Ingest, catalog.ContentTypes, catalog.Settings, logger).
		WithReindexer(catalog.Index)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(cfg.Auth.APIKeys),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	// Flush what deferred mode still holds back.
	if n, err := catalog.Ingest.Commit(shutdownCtx); err != nil {
		logger.Error("Final commit failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("Final commit", zap.Int("records", n))
	}

	logger.Info("Server stopped gracefully")
}
