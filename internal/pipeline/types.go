package pipeline

import (
	"context"
	"time"

	"docdex/internal/document"
	"docdex/internal/text"
)

// Record is the unit persisted to the search engine: one chunk with its
// vector and enough metadata to serve retrieval.
type Record struct {
	ChunkID      string
	DocumentID   string
	Seq          int
	Source       string
	Text         string
	Vector       []float32
	ModelVersion string
}

// RecordStatus is the per-record outcome of a bulk upsert.
type RecordStatus int

const (
	RecordOK RecordStatus = iota
	RecordRetry
	RecordFatal
)

type RecordResult struct {
	ChunkID string
	Status  RecordStatus
	Reason  string
}

// Chunk completion outcomes as persisted by the progress tracker.
const (
	OutcomeDone   = "done"
	OutcomeFailed = "failed"
)

// Terminal document states.
const (
	StatusDone            = "done"
	StatusPartiallyFailed = "partially_failed"
	StatusFailed          = "failed"
)

// Marker is the durable completion record for one chunk. Markers are
// appended or overwritten per (document, chunk) key and never deleted
// by the pipeline.
type Marker struct {
	DocumentID string
	ChunkID    string
	Outcome    string
	Reason     string
	UpdatedAt  time.Time
}

type Loader interface {
	Load(ctx context.Context, doc document.Document) ([]document.Segment, []document.PageError, error)
}

type Splitter interface {
	Split(docID, text string) []text.Chunk
}

// Embedder converts a batch of chunk texts into vectors, one per input
// and in input order. Implementations classify failures via BackendError.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelVersion() string
}

// IndexWriter bulk-upserts records into the search engine. UpsertBatch
// returns one result per record; the error return is reserved for
// whole-batch transport failures.
type IndexWriter interface {
	EnsureSchema(ctx context.Context) error
	UpsertBatch(ctx context.Context, records []Record) ([]RecordResult, error)
}

// ProgressTracker is the durable record of completed work. It must
// tolerate concurrent per-key writes from multiple in-flight chunks.
type ProgressTracker interface {
	IsComplete(ctx context.Context, docID, chunkID string) (bool, error)
	MarkComplete(ctx context.Context, marker Marker) error
	Pending(ctx context.Context, docID string, chunkIDs []string) ([]string, error)
	SetDocumentStatus(ctx context.Context, docID, status string) error
}

// Publisher emits completion events for downstream consumers. A nil
// publisher disables events. *nsq.Producer satisfies this.
type Publisher interface {
	Publish(topic string, body []byte) error
}
