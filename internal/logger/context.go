package logger

import "context"

type key int

const (
	runKey key = iota
	docKey
)

func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runKey, id)
}

func RunID(ctx context.Context) string {
	if id, ok := ctx.Value(runKey).(string); ok {
		return id
	}
	return ""
}

func WithDocumentID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, docKey, id)
}

func DocumentID(ctx context.Context) string {
	if id, ok := ctx.Value(docKey).(string); ok {
		return id
	}
	return ""
}
