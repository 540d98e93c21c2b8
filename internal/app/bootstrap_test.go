package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docdex/internal/pipeline"
)

type flakySchemaWriter struct {
	failures int
	calls    int
}

func (w *flakySchemaWriter) EnsureSchema(context.Context) error {
	w.calls++
	if w.calls <= w.failures {
		return assert.AnError
	}
	return nil
}

func (w *flakySchemaWriter) UpsertBatch(context.Context, []pipeline.Record) ([]pipeline.RecordResult, error) {
	return nil, nil
}

func TestEnsureSchemaWithRetry(t *testing.T) {
	w := &flakySchemaWriter{failures: 2}
	err := EnsureSchemaWithRetry(context.Background(), w, 5, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, w.calls)
}

func TestEnsureSchemaWithRetryExhausted(t *testing.T) {
	w := &flakySchemaWriter{failures: 10}
	err := EnsureSchemaWithRetry(context.Background(), w, 3, time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, 3, w.calls)
}
