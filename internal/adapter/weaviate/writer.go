package weaviate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	"github.com/weaviate/weaviate/entities/models"

	"docdex/internal/pipeline"
	"docdex/internal/vector"
)

// Writer bulk-upserts chunk records into a Weaviate class. Records are
// stored under their deterministic chunk id, so re-writing the same
// chunk replaces the object instead of duplicating it.
type Writer struct {
	client    *weaviate.Client
	className string
	vectorDim int
}

// NewWriter builds a writer for the given class. vectorDim is the
// dimension every record's vector must have; records that do not match
// are rejected as fatal before they reach the engine. Zero disables
// the check.
func NewWriter(client *weaviate.Client, className string, vectorDim int) *Writer {
	return &Writer{client: client, className: className, vectorDim: vectorDim}
}

func (w *Writer) EnsureSchema(ctx context.Context) error {
	adapter := vector.NewClientAdapter(w.client)
	if err := vector.EnsureSchema(ctx, adapter, w.className); err != nil {
		return classify(err)
	}
	return nil
}

// UpsertBatch writes all records in one batch call and decomposes the
// response into per-record outcomes, in input order.
func (w *Writer) UpsertBatch(ctx context.Context, records []pipeline.Record) ([]pipeline.RecordResult, error) {
	if len(records) == 0 {
		return nil, nil
	}

	// A wrong-sized vector would corrupt the index's fixed-dimension
	// mapping; reject it here instead of round-tripping to the engine.
	rejected := make(map[string]pipeline.RecordResult)
	objects := make([]*models.Object, 0, len(records))
	for _, r := range records {
		if w.vectorDim > 0 && len(r.Vector) != w.vectorDim {
			rejected[r.ChunkID] = pipeline.RecordResult{
				ChunkID: r.ChunkID,
				Status:  pipeline.RecordFatal,
				Reason:  fmt.Sprintf("vector dimension mismatch: got %d, want %d", len(r.Vector), w.vectorDim),
			}
			continue
		}
		objects = append(objects, &models.Object{
			Class: w.className,
			ID:    strfmt.UUID(r.ChunkID),
			Properties: map[string]interface{}{
				"content":      r.Text,
				"documentId":   r.DocumentID,
				"source":       r.Source,
				"chunkIndex":   r.Seq,
				"modelVersion": r.ModelVersion,
			},
			Vector: r.Vector,
		})
	}

	var responses []models.ObjectsGetResponse
	if len(objects) > 0 {
		var err error
		responses, err = w.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
		if err != nil {
			return nil, classify(err)
		}
		if len(responses) != len(objects) {
			slog.WarnContext(ctx, "batch response count mismatch", "sent", len(objects), "received", len(responses))
		}
	}

	// Map responses back by object id; any record the engine did not
	// answer for is treated as retryable rather than lost.
	byID := make(map[string]pipeline.RecordResult, len(responses))
	for _, res := range responses {
		id := string(res.ID)
		if reason := objectError(res); reason != "" {
			byID[id] = pipeline.RecordResult{ChunkID: id, Status: recordStatus(reason), Reason: reason}
			continue
		}
		byID[id] = pipeline.RecordResult{ChunkID: id, Status: pipeline.RecordOK}
	}

	results := make([]pipeline.RecordResult, len(records))
	for i, r := range records {
		if res, ok := rejected[r.ChunkID]; ok {
			results[i] = res
		} else if res, ok := byID[r.ChunkID]; ok {
			results[i] = res
		} else {
			results[i] = pipeline.RecordResult{
				ChunkID: r.ChunkID,
				Status:  pipeline.RecordRetry,
				Reason:  "no response for object in batch result",
			}
		}
	}
	return results, nil
}

func objectError(res models.ObjectsGetResponse) string {
	if res.Result == nil || res.Result.Errors == nil {
		return ""
	}
	var msgs []string
	for _, item := range res.Result.Errors.Error {
		if item != nil && item.Message != "" {
			msgs = append(msgs, item.Message)
		}
	}
	return strings.Join(msgs, "; ")
}

// recordStatus decides whether a per-object failure is worth another
// attempt. Overload and timeout phrasing points at transient engine
// pressure; anything else (validation, vector length) will fail again.
func recordStatus(reason string) pipeline.RecordStatus {
	lower := strings.ToLower(reason)
	for _, marker := range []string{"timeout", "timed out", "overload", "too many", "unavailable", "connection refused", "429", "503"} {
		if strings.Contains(lower, marker) {
			return pipeline.RecordRetry
		}
	}
	return pipeline.RecordFatal
}

// classify maps whole-call failures onto the retry policy using the
// client's status code. Code 0 means the request never got a response.
func classify(err error) error {
	var cerr *fault.WeaviateClientError
	if errors.As(err, &cerr) {
		retryable := cerr.StatusCode == 0 || cerr.StatusCode == 429 || cerr.StatusCode >= 500
		return &pipeline.BackendError{Op: "index", Retryable: retryable, Err: err}
	}
	return &pipeline.BackendError{Op: "index", Retryable: true, Err: err}
}
