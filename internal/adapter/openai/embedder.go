// Package openai embeds against any OpenAI-compatible endpoint, which
// covers local runtimes like Ollama and LM Studio.
package openai

import (
	"context"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"docdex/internal/pipeline"
)

type Embedder struct {
	embedder embeddings.Embedder
	model    string
}

// NewEmbedder builds an embedder against host. The token is a
// placeholder: local services accept any value.
func NewEmbedder(host, model string) (*Embedder, error) {
	client, err := openai.New(
		openai.WithBaseURL(host),
		openai.WithToken("none"),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}
	return &Embedder{embedder: embedder, model: model}, nil
}

func (e *Embedder) ModelVersion() string { return e.model }

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	slog.DebugContext(ctx, "embedding batch", "model", e.model, "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		// Local endpoints fail mostly on connectivity; the attempt
		// ceiling bounds how long a dead endpoint is retried.
		return nil, &pipeline.BackendError{Op: "embed", Retryable: true, Err: err}
	}
	return vectors, nil
}
