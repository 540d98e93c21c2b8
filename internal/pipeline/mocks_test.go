package pipeline

import (
	"context"
	"errors"
	"sync"

	"docdex/internal/document"
)

// Stateful fakes for orchestrator tests. The chunker is used for real:
// its determinism is part of what the tests assert.

type fakeLoader struct {
	segments map[string][]document.Segment
	pageErrs map[string][]document.PageError
	fail     map[string]error
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		segments: make(map[string][]document.Segment),
		pageErrs: make(map[string][]document.PageError),
		fail:     make(map[string]error),
	}
}

func (l *fakeLoader) Load(_ context.Context, doc document.Document) ([]document.Segment, []document.PageError, error) {
	if err := l.fail[doc.ID]; err != nil {
		return nil, l.pageErrs[doc.ID], err
	}
	return l.segments[doc.ID], l.pageErrs[doc.ID], nil
}

type fakeEmbedder struct {
	mu           sync.Mutex
	calls        int
	failuresLeft int
	failWith     error
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.failuresLeft > 0 {
		e.failuresLeft--
		return nil, e.failWith
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = embedText(t)
	}
	return vectors, nil
}

func (e *fakeEmbedder) ModelVersion() string { return "fake-embed-001" }

// embedText is a stand-in embedding: deterministic per input text.
func embedText(t string) []float32 {
	var sum float32
	for _, r := range t {
		sum += float32(r)
	}
	return []float32{float32(len(t)), sum}
}

type fakeWriter struct {
	mu       sync.Mutex
	store    map[string]Record
	calls    int
	schemaOK bool
	// outcome overrides the default all-OK response for a chunk id.
	// It is consulted once per upsert call and can be mutated between
	// calls to simulate throttling that clears up.
	outcome map[string]RecordResult
	failAll error
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{
		store:   make(map[string]Record),
		outcome: make(map[string]RecordResult),
	}
}

func (w *fakeWriter) EnsureSchema(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.schemaOK = true
	return nil
}

func (w *fakeWriter) UpsertBatch(_ context.Context, records []Record) ([]RecordResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.failAll != nil {
		return nil, w.failAll
	}
	results := make([]RecordResult, 0, len(records))
	for _, r := range records {
		if res, ok := w.outcome[r.ChunkID]; ok {
			if res.Status == RecordRetry {
				// Throttling clears after one rejection.
				delete(w.outcome, r.ChunkID)
			}
			results = append(results, RecordResult{ChunkID: r.ChunkID, Status: res.Status, Reason: res.Reason})
			if res.Status != RecordOK {
				continue
			}
		} else {
			results = append(results, RecordResult{ChunkID: r.ChunkID, Status: RecordOK})
		}
		w.store[r.ChunkID] = r
	}
	return results, nil
}

func (w *fakeWriter) stored() map[string]Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]Record, len(w.store))
	for k, v := range w.store {
		out[k] = v
	}
	return out
}

type fakeTracker struct {
	mu       sync.Mutex
	markers  map[string]Marker
	statuses map[string]string
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		markers:  make(map[string]Marker),
		statuses: make(map[string]string),
	}
}

func trackerKey(docID, chunkID string) string { return docID + "/" + chunkID }

func (t *fakeTracker) IsComplete(_ context.Context, docID, chunkID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.markers[trackerKey(docID, chunkID)]
	return ok && m.Outcome == OutcomeDone, nil
}

func (t *fakeTracker) MarkComplete(_ context.Context, marker Marker) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.markers[trackerKey(marker.DocumentID, marker.ChunkID)] = marker
	return nil
}

func (t *fakeTracker) Pending(_ context.Context, docID string, chunkIDs []string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var pending []string
	for _, id := range chunkIDs {
		m, ok := t.markers[trackerKey(docID, id)]
		if !ok || m.Outcome != OutcomeDone {
			pending = append(pending, id)
		}
	}
	return pending, nil
}

func (t *fakeTracker) SetDocumentStatus(_ context.Context, docID, status string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statuses[docID] = status
	return nil
}

func (t *fakeTracker) status(docID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statuses[docID]
}

var errBoom = errors.New("boom")
