package config

import (
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

const (
	EmbedBackendGemini = "gemini"
	EmbedBackendLocal  = "local"

	ProgressBackendBadger   = "badger"
	ProgressBackendPostgres = "postgres"
)

type Config struct {
	// Intake: path to the document manifest, local file or s3:// URI.
	ManifestPath string `envconfig:"MANIFEST_PATH"`

	// Search engine
	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`
	IndexClass     string `envconfig:"INDEX_CLASS" default:"DocumentChunk"`
	VectorDim      int    `envconfig:"VECTOR_DIM" default:"768"`

	// Embedding backend
	EmbedBackend     string `envconfig:"EMBED_BACKEND" default:"gemini"`
	EmbedModel       string `envconfig:"EMBED_MODEL" default:"gemini-embedding-001"`
	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY"`
	LocalEmbedHost   string `envconfig:"LOCAL_EMBED_HOST" default:"http://localhost:11434/v1"`
	EmbedBatchSize   int    `envconfig:"EMBED_BATCH_SIZE" default:"16"`
	EmbedMaxAttempts int    `envconfig:"EMBED_MAX_ATTEMPTS" default:"5"`
	EmbedRetryBaseMS int    `envconfig:"EMBED_RETRY_BASE_MS" default:"500"`

	// Index writes
	IndexMaxAttempts int `envconfig:"INDEX_MAX_ATTEMPTS" default:"4"`
	IndexRetryBaseMS int `envconfig:"INDEX_RETRY_BASE_MS" default:"250"`

	// Chunking
	ChunkSize         int `envconfig:"CHUNK_SIZE" default:"2000"`
	ChunkOverlap      int `envconfig:"CHUNK_OVERLAP" default:"200"`
	BoundaryTolerance int `envconfig:"CHUNK_BOUNDARY_TOLERANCE" default:"200"`

	// Concurrency
	DocConcurrency   int `envconfig:"DOC_CONCURRENCY" default:"4"`
	BatchConcurrency int `envconfig:"BATCH_CONCURRENCY" default:"2"`

	// Progress store
	ProgressBackend string `envconfig:"PROGRESS_BACKEND" default:"badger"`
	ProgressPath    string `envconfig:"PROGRESS_PATH" default:"data/progress"`

	DBHost        string `envconfig:"DB_HOST" default:"postgres"`
	DBPort        int    `envconfig:"DB_PORT" default:"5432"`
	DBUser        string `envconfig:"DB_USER" default:"docdex"`
	DBPass        string `envconfig:"DB_PASS" default:"password"`
	DBName        string `envconfig:"DB_NAME" default:"docdex"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	// Optional completion events for downstream consumers.
	NSQDHost    string `envconfig:"NSQD_HOST"`
	ResultTopic string `envconfig:"RESULT_TOPIC" default:"index.result"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may be set in the task definition instead; ignore a missing .env.
	_ = godotenv.Load(".env")

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.ManifestPath == "" {
		return fmt.Errorf("%w: MANIFEST_PATH", ErrMissingRequired)
	}
	if c.EmbedModel == "" {
		return fmt.Errorf("%w: EMBED_MODEL", ErrMissingRequired)
	}
	if c.IndexClass == "" {
		return fmt.Errorf("%w: INDEX_CLASS", ErrMissingRequired)
	}
	if c.VectorDim <= 0 {
		return fmt.Errorf("VECTOR_DIM must be positive, got %d", c.VectorDim)
	}

	switch c.EmbedBackend {
	case EmbedBackendGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY (required for gemini backend)", ErrMissingRequired)
		}
	case EmbedBackendLocal:
		if c.LocalEmbedHost == "" {
			return fmt.Errorf("%w: LOCAL_EMBED_HOST (required for local backend)", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("unknown EMBED_BACKEND %q (want %q or %q)", c.EmbedBackend, EmbedBackendGemini, EmbedBackendLocal)
	}

	switch c.ProgressBackend {
	case ProgressBackendBadger:
		if c.ProgressPath == "" {
			return fmt.Errorf("%w: PROGRESS_PATH", ErrMissingRequired)
		}
	case ProgressBackendPostgres:
		if c.DBHost == "" || c.DBUser == "" || c.DBName == "" {
			return fmt.Errorf("%w: DB_HOST/DB_USER/DB_NAME (required for postgres backend)", ErrMissingRequired)
		}
	default:
		return fmt.Errorf("unknown PROGRESS_BACKEND %q (want %q or %q)", c.ProgressBackend, ProgressBackendBadger, ProgressBackendPostgres)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap)
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("EMBED_BATCH_SIZE must be positive, got %d", c.EmbedBatchSize)
	}
	if c.DocConcurrency <= 0 || c.BatchConcurrency <= 0 {
		return fmt.Errorf("DOC_CONCURRENCY and BATCH_CONCURRENCY must be positive")
	}

	return nil
}
