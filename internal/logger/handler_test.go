package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewContextHandler(slog.NewJSONHandler(&buf, nil))
	log := slog.New(h)

	ctx := WithRunID(context.Background(), "run-1")
	ctx = WithDocumentID(ctx, "doc-42")

	log.InfoContext(ctx, "processing")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "run-1", rec["run_id"])
	assert.Equal(t, "doc-42", rec["doc_id"])
}

func TestContextHandlerWithoutIDs(t *testing.T) {
	var buf bytes.Buffer
	h := NewContextHandler(slog.NewJSONHandler(&buf, nil))
	log := slog.New(h)

	log.InfoContext(context.Background(), "no correlation")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	_, hasRun := rec["run_id"]
	_, hasDoc := rec["doc_id"]
	assert.False(t, hasRun)
	assert.False(t, hasDoc)
}
