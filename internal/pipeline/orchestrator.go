package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"docdex/internal/document"
	"docdex/internal/logger"
	"docdex/internal/text"
)

type Options struct {
	DocConcurrency   int
	BatchConcurrency int
	EmbedBatchSize   int
	EmbedMaxAttempts int
	EmbedRetryBase   time.Duration
	IndexMaxAttempts int
	IndexRetryBase   time.Duration
}

func (o Options) withDefaults() Options {
	if o.DocConcurrency < 1 {
		o.DocConcurrency = 4
	}
	if o.BatchConcurrency < 1 {
		o.BatchConcurrency = 2
	}
	if o.EmbedBatchSize < 1 {
		o.EmbedBatchSize = 16
	}
	if o.EmbedMaxAttempts < 1 {
		o.EmbedMaxAttempts = 5
	}
	if o.EmbedRetryBase <= 0 {
		o.EmbedRetryBase = 500 * time.Millisecond
	}
	if o.IndexMaxAttempts < 1 {
		o.IndexMaxAttempts = 4
	}
	if o.IndexRetryBase <= 0 {
		o.IndexRetryBase = 250 * time.Millisecond
	}
	return o
}

// Orchestrator drives the indexing pipeline: documents run on a bounded
// worker pool, and within a document chunk batches flow through
// embed then write with their own concurrency cap.
type Orchestrator struct {
	loader   Loader
	splitter Splitter
	embedder Embedder
	writer   IndexWriter
	tracker  ProgressTracker

	publisher   Publisher
	resultTopic string

	opts Options
}

func NewOrchestrator(loader Loader, splitter Splitter, embedder Embedder, writer IndexWriter, tracker ProgressTracker, opts Options) *Orchestrator {
	return &Orchestrator{
		loader:   loader,
		splitter: splitter,
		embedder: embedder,
		writer:   writer,
		tracker:  tracker,
		opts:     opts.withDefaults(),
	}
}

// SetPublisher enables per-document completion events on the given topic.
func (o *Orchestrator) SetPublisher(p Publisher, topic string) {
	o.publisher = p
	o.resultTopic = topic
}

// Run processes every document in the intake list and returns the run
// report. Cancellation stops scheduling new work; in-flight batches
// finish or are abandoned with their progress exactly as last persisted,
// so the next run resumes cleanly.
func (o *Orchestrator) Run(ctx context.Context, docs []document.Document) (*Report, error) {
	if err := o.writer.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure index schema: %w", err)
	}

	report := NewReport(logger.RunID(ctx))
	if len(docs) == 0 {
		slog.InfoContext(ctx, "intake is empty, nothing to do")
		return report, nil
	}

	pool, err := ants.NewPool(o.opts.DocConcurrency)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	slog.InfoContext(ctx, "run started", "documents", len(docs), "doc_concurrency", o.opts.DocConcurrency)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, d := range docs {
		if ctx.Err() != nil {
			break
		}
		doc := d
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			summary := o.processDocument(ctx, doc)
			mu.Lock()
			report.Add(summary)
			mu.Unlock()
			o.publish(ctx, summary)
		}); err != nil {
			wg.Done()
			slog.ErrorContext(ctx, "failed to schedule document", "doc_id", doc.ID, "error", err)
		}
	}
	wg.Wait()

	return report, ctx.Err()
}

func (o *Orchestrator) processDocument(ctx context.Context, doc document.Document) Summary {
	ctx = logger.WithDocumentID(ctx, doc.ID)
	summary := Summary{DocumentID: doc.ID, Source: doc.Source}

	slog.InfoContext(ctx, "extracting", "source", doc.Source, "media_type", doc.MediaType)
	segments, pageErrs, err := o.loader.Load(ctx, doc)
	summary.PageErrors = len(pageErrs)
	if err != nil {
		slog.ErrorContext(ctx, "extraction failed", "error", err)
		summary.Status = StatusFailed
		summary.Reason = err.Error()
		o.setStatus(ctx, doc.ID, StatusFailed)
		return summary
	}

	chunks := o.splitter.Split(doc.ID, document.Concat(segments))
	summary.Chunks = len(chunks)
	if len(chunks) == 0 {
		summary.Status = StatusDone
		o.setStatus(ctx, doc.ID, StatusDone)
		return summary
	}
	slog.InfoContext(ctx, "chunked", "chunks", len(chunks))

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	pendingIDs, err := o.tracker.Pending(ctx, doc.ID, ids)
	if err != nil {
		// Upserts are idempotent, so redoing completed chunks is safe.
		slog.WarnContext(ctx, "pending lookup failed, reprocessing all chunks", "error", err)
		pendingIDs = ids
	}
	pendingSet := make(map[string]bool, len(pendingIDs))
	for _, id := range pendingIDs {
		pendingSet[id] = true
	}
	var work []text.Chunk
	for _, c := range chunks {
		if pendingSet[c.ID] {
			work = append(work, c)
		}
	}
	summary.Skipped = len(chunks) - len(work)
	if summary.Skipped > 0 {
		slog.InfoContext(ctx, "resuming", "skipped", summary.Skipped, "pending", len(work))
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	sem := make(chan struct{}, o.opts.BatchConcurrency)
	for start := 0; start < len(work); start += o.opts.EmbedBatchSize {
		if ctx.Err() != nil {
			break
		}
		end := min(start+o.opts.EmbedBatchSize, len(work))
		batch := work[start:end]

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			done, failures := o.processBatch(ctx, doc, batch)
			mu.Lock()
			summary.Succeeded += done
			summary.Failed += len(failures)
			summary.Failures = append(summary.Failures, failures...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		// Not a terminal state: nothing is recorded, so the next run
		// picks up the chunks that were never marked complete.
		summary.Status = StatusFailed
		summary.Reason = "run cancelled before completion"
		return summary
	}

	switch {
	case summary.Failed == 0:
		summary.Status = StatusDone
	case summary.Succeeded+summary.Skipped > 0:
		summary.Status = StatusPartiallyFailed
	default:
		summary.Status = StatusFailed
	}
	o.setStatus(ctx, doc.ID, summary.Status)
	return summary
}

// processBatch embeds one chunk batch and writes the resulting records.
// Failures are demoted to per-chunk markers; the document carries on
// with its remaining batches either way.
func (o *Orchestrator) processBatch(ctx context.Context, doc document.Document, batch []text.Chunk) (succeeded int, failures []ChunkFailure) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	var vectors [][]float32
	err := withRetry(ctx, o.opts.EmbedMaxAttempts, o.opts.EmbedRetryBase, func() error {
		v, embedErr := o.embedder.EmbedBatch(ctx, texts)
		if embedErr != nil {
			return embedErr
		}
		vectors = v
		return nil
	})
	if err == nil && len(vectors) != len(batch) {
		err = fmt.Errorf("embedding count mismatch: want %d, got %d", len(batch), len(vectors))
	}
	if err != nil {
		if ctx.Err() != nil {
			// Cancelled mid-embed: leave the chunks unmarked for resume.
			return 0, nil
		}
		slog.ErrorContext(ctx, "embedding batch failed", "chunks", len(batch), "error", err)
		for _, c := range batch {
			failures = append(failures, o.failChunk(ctx, doc.ID, c.ID, "embed", err.Error()))
		}
		return 0, failures
	}

	version := o.embedder.ModelVersion()
	records := make([]Record, len(batch))
	for i, c := range batch {
		records[i] = Record{
			ChunkID:      c.ID,
			DocumentID:   doc.ID,
			Seq:          c.Seq,
			Source:       doc.Source,
			Text:         c.Text,
			Vector:       vectors[i],
			ModelVersion: version,
		}
	}

	return o.writeRecords(ctx, doc.ID, records)
}

// writeRecords bulk-upserts records, re-queueing retryable per-record
// failures up to the attempt ceiling and recording the rest as fatal.
func (o *Orchestrator) writeRecords(ctx context.Context, docID string, records []Record) (succeeded int, failures []ChunkFailure) {
	byID := make(map[string]Record, len(records))
	for _, r := range records {
		byID[r.ChunkID] = r
	}

	pending := records
	delay := o.opts.IndexRetryBase
	for attempt := 1; len(pending) > 0; attempt++ {
		results, err := o.writer.UpsertBatch(ctx, pending)
		if err != nil {
			if IsRetryable(err) && attempt < o.opts.IndexMaxAttempts && ctx.Err() == nil {
				sleepJittered(ctx, delay)
				delay *= 2
				continue
			}
			if ctx.Err() != nil {
				return succeeded, failures
			}
			slog.ErrorContext(ctx, "bulk upsert failed", "records", len(pending), "error", err)
			for _, r := range pending {
				failures = append(failures, o.failChunk(ctx, docID, r.ChunkID, "index", err.Error()))
			}
			return succeeded, failures
		}

		var requeue []Record
		for _, res := range results {
			switch res.Status {
			case RecordOK:
				o.markDone(ctx, docID, res.ChunkID)
				succeeded++
			case RecordRetry:
				if attempt < o.opts.IndexMaxAttempts {
					requeue = append(requeue, byID[res.ChunkID])
				} else {
					failures = append(failures, o.failChunk(ctx, docID, res.ChunkID, "index", res.Reason))
				}
			default:
				failures = append(failures, o.failChunk(ctx, docID, res.ChunkID, "index", res.Reason))
			}
		}

		pending = requeue
		if len(pending) > 0 {
			if ctx.Err() != nil {
				return succeeded, failures
			}
			slog.WarnContext(ctx, "re-queueing throttled records", "records", len(pending), "attempt", attempt)
			sleepJittered(ctx, delay)
			delay *= 2
		}
	}
	return succeeded, failures
}

func (o *Orchestrator) markDone(ctx context.Context, docID, chunkID string) {
	marker := Marker{DocumentID: docID, ChunkID: chunkID, Outcome: OutcomeDone, UpdatedAt: time.Now().UTC()}
	if err := o.tracker.MarkComplete(ctx, marker); err != nil {
		// The chunk is in the index; a lost marker only means the next
		// run re-upserts the same record.
		slog.WarnContext(ctx, "failed to persist completion marker", "chunk_id", chunkID, "error", err)
	}
}

func (o *Orchestrator) failChunk(ctx context.Context, docID, chunkID, stage, reason string) ChunkFailure {
	marker := Marker{DocumentID: docID, ChunkID: chunkID, Outcome: OutcomeFailed, Reason: reason, UpdatedAt: time.Now().UTC()}
	if err := o.tracker.MarkComplete(ctx, marker); err != nil {
		slog.WarnContext(ctx, "failed to persist failure marker", "chunk_id", chunkID, "error", err)
	}
	return ChunkFailure{ChunkID: chunkID, Stage: stage, Reason: reason}
}

func (o *Orchestrator) setStatus(ctx context.Context, docID, status string) {
	if err := o.tracker.SetDocumentStatus(ctx, docID, status); err != nil {
		slog.WarnContext(ctx, "failed to persist document status", "status", status, "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, s Summary) {
	if o.publisher == nil || o.resultTopic == "" {
		return
	}
	body, err := json.Marshal(s)
	if err != nil {
		slog.WarnContext(ctx, "failed to encode result event", "doc_id", s.DocumentID, "error", err)
		return
	}
	if err := o.publisher.Publish(o.resultTopic, body); err != nil {
		slog.WarnContext(ctx, "failed to publish result event", "doc_id", s.DocumentID, "error", err)
	}
}

func sleepJittered(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	jittered := d/2 + rand.N(d/2+1)
	t := time.NewTimer(jittered)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
