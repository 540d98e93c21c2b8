package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"docdex/internal/app"
	"docdex/internal/config"
	"docdex/internal/document"
	"docdex/internal/logger"
	"docdex/internal/pipeline"
	"docdex/internal/text"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Initialize structured logger
	handler := logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(slog.New(handler))

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	// 2. Run context: one id per invocation, cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithRunID(ctx, uuid.NewString())

	slog.InfoContext(ctx, "starting indexing run", "manifest", cfg.ManifestPath, "embed_backend", cfg.EmbedBackend)

	// 3. Wire dependencies
	deps, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.ErrorContext(ctx, "bootstrap failed", "error", err)
		return 1
	}
	defer deps.Close()

	// 4. Intake
	docs, err := document.LoadManifest(ctx, cfg.ManifestPath, deps.Fetcher)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load manifest", "error", err)
		return 1
	}

	// 5. Pipeline
	loader := document.NewLoader(deps.Fetcher)
	chunker := text.NewChunker(text.Config{
		ChunkSize:         cfg.ChunkSize,
		Overlap:           cfg.ChunkOverlap,
		BoundaryTolerance: cfg.BoundaryTolerance,
	})

	orch := pipeline.NewOrchestrator(loader, chunker, deps.Embedder, deps.Writer, deps.Tracker, pipeline.Options{
		DocConcurrency:   cfg.DocConcurrency,
		BatchConcurrency: cfg.BatchConcurrency,
		EmbedBatchSize:   cfg.EmbedBatchSize,
		EmbedMaxAttempts: cfg.EmbedMaxAttempts,
		EmbedRetryBase:   time.Duration(cfg.EmbedRetryBaseMS) * time.Millisecond,
		IndexMaxAttempts: cfg.IndexMaxAttempts,
		IndexRetryBase:   time.Duration(cfg.IndexRetryBaseMS) * time.Millisecond,
	})
	if deps.NSQProducer != nil {
		orch.SetPublisher(deps.NSQProducer, cfg.ResultTopic)
	}

	report, runErr := orch.Run(ctx, docs)
	if report != nil {
		report.Log(ctx)
	}
	if runErr != nil {
		slog.WarnContext(ctx, "run interrupted", "error", runErr)
		return 1
	}
	if !report.AllDone() {
		return 1
	}
	return 0
}
