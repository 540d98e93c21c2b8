package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"docdex/internal/adapter/gemini"
	"docdex/internal/adapter/openai"
	s3fetch "docdex/internal/adapter/s3"
	wstore "docdex/internal/adapter/weaviate"
	"docdex/internal/config"
	"docdex/internal/document"
	"docdex/internal/pipeline"
	"docdex/internal/progress"
)

// Dependencies holds everything the run needs, wired and verified.
type Dependencies struct {
	Writer      *wstore.Writer
	Embedder    pipeline.Embedder
	Tracker     pipeline.ProgressTracker
	Fetcher     document.Fetcher
	NSQProducer *nsq.Producer

	DB     *sql.DB
	badger *progress.BadgerStore
	closer func() error
}

func Bootstrap(ctx context.Context, cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{}
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	// Progress store
	switch cfg.ProgressBackend {
	case config.ProgressBackendPostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		deps.DB = db

		// Retry loop
		for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
			if err := db.Ping(); err == nil {
				break
			}
			slog.Warn("failed to ping db, retrying...", "attempt", i+1)
			time.Sleep(retryDelay)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping db: %w", err)
		}

		// Migrations
		driver, err := postgres.WithInstance(db, &postgres.Config{})
		if err != nil {
			return nil, fmt.Errorf("migration driver error: %w", err)
		}
		m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
		if err != nil {
			return nil, fmt.Errorf("migration instance error: %w", err)
		}
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			return nil, fmt.Errorf("migration up error: %w", err)
		}
		deps.Tracker = progress.NewPostgresStore(db)

	case config.ProgressBackendBadger:
		store, err := progress.OpenBadger(cfg.ProgressPath)
		if err != nil {
			return nil, fmt.Errorf("progress store error: %w", err)
		}
		deps.badger = store
		deps.Tracker = store
	default:
		return nil, fmt.Errorf("unknown progress backend %q", cfg.ProgressBackend)
	}

	// Weaviate
	wCfg := weaviate.Config{Host: cfg.WeaviateHost, Scheme: cfg.WeaviateScheme}
	wClient, err := weaviate.NewClient(wCfg)
	if err != nil {
		return nil, fmt.Errorf("weaviate client error: %w", err)
	}
	deps.Writer = wstore.NewWriter(wClient, cfg.IndexClass, cfg.VectorDim)

	// Ensure Schema Retry
	if err := EnsureSchemaWithRetry(ctx, deps.Writer, cfg.BootstrapRetryAttempts, retryDelay); err != nil {
		return nil, fmt.Errorf("weaviate schema error: %w", err)
	}

	// Embedding backend
	switch cfg.EmbedBackend {
	case config.EmbedBackendGemini:
		embedder, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
		if err != nil {
			return nil, fmt.Errorf("gemini embedder error: %w", err)
		}
		deps.Embedder = embedder
		deps.closer = embedder.Close
	case config.EmbedBackendLocal:
		embedder, err := openai.NewEmbedder(cfg.LocalEmbedHost, cfg.EmbedModel)
		if err != nil {
			return nil, fmt.Errorf("local embedder error: %w", err)
		}
		deps.Embedder = embedder
	default:
		return nil, fmt.Errorf("unknown embed backend %q", cfg.EmbedBackend)
	}

	// Remote intake
	fetcher, err := s3fetch.NewFetcher(ctx)
	if err != nil {
		// Local-only manifests work fine without AWS credentials.
		slog.Warn("s3 fetcher unavailable, remote sources will fail", "error", err)
	} else {
		deps.Fetcher = fetcher
	}

	// NSQ Producer (optional)
	if cfg.NSQDHost != "" {
		nsqCfg := nsq.NewConfig()
		producer, err := nsq.NewProducer(cfg.NSQDHost, nsqCfg)
		if err != nil {
			return nil, fmt.Errorf("nsq producer error: %w", err)
		}
		deps.NSQProducer = producer

		createTopic(cfg.NSQDHost, cfg.ResultTopic)
	}

	return deps, nil
}

// createTopic pre-creates the result topic so consumers querying
// lookupd do not 404 before the first publish. NSQ's HTTP API listens
// one port above the TCP port.
func createTopic(nsqdHost, topic string) {
	host, _, err := net.SplitHostPort(nsqdHost)
	if err != nil {
		host = nsqdHost
	}
	url := fmt.Sprintf("http://%s:4151/topic/create?topic=%s", host, topic)

	go func() {
		time.Sleep(2 * time.Second)
		resp, err := http.Post(url, "application/json", nil) // #nosec G107 -- URL is built from internal NSQ config, not user input
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}()
}

// EnsureSchemaWithRetry keeps trying until the engine answers; a batch
// job racing its docker-compose dependencies needs the grace period.
func EnsureSchemaWithRetry(ctx context.Context, writer pipeline.IndexWriter, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = writer.EnsureSchema(ctx); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return err
}

// Close releases clients and flushes the progress store.
func (d *Dependencies) Close() {
	if d.NSQProducer != nil {
		d.NSQProducer.Stop()
	}
	if d.closer != nil {
		if err := d.closer(); err != nil {
			slog.Warn("failed to close embedder", "error", err)
		}
	}
	if d.badger != nil {
		if err := d.badger.Close(); err != nil {
			slog.Warn("failed to close progress store", "error", err)
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			slog.Warn("failed to close db", "error", err)
		}
	}
}
