package logger

import (
	"context"
	"log/slog"
)

// ContextHandler decorates records with the run and document identifiers
// carried in the context, so every log line of a worker is attributable
// to the document it was processing.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := RunID(ctx); id != "" {
		r.AddAttrs(slog.String("run_id", id))
	}
	if id := DocumentID(ctx); id != "" {
		r.AddAttrs(slog.String("doc_id", id))
	}
	return h.Handler.Handle(ctx, r)
}
