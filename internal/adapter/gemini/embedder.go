package gemini

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"docdex/internal/pipeline"
)

type Embedder struct {
	client *genai.Client
	model  string
}

func NewEmbedder(ctx context.Context, apiKey, model string) (*Embedder, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	return &Embedder{client: client, model: model}, nil
}

func (e *Embedder) Close() error { return e.client.Close() }

func (e *Embedder) ModelVersion() string { return e.model }

// EmbedBatch embeds all texts in one request, preserving input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	slog.DebugContext(ctx, "embedding batch", "model", e.model, "count", len(texts))

	em := e.client.EmbeddingModel(e.model)
	b := em.NewBatch()
	for _, t := range texts {
		b.AddContent(genai.Text(t))
	}
	res, err := em.BatchEmbedContents(ctx, b)
	if err != nil {
		return nil, classify(err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, &pipeline.BackendError{
			Op:        "embed",
			Retryable: false,
			Err:       errors.New("response embedding count does not match request"),
		}
	}

	vectors := make([][]float32, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		if emb == nil {
			return nil, &pipeline.BackendError{
				Op:        "embed",
				Retryable: false,
				Err:       errors.New("response contains a nil embedding"),
			}
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// classify maps API errors onto the retry policy: bad requests, auth
// failures and missing models never recover by retrying, while rate
// limits and server errors do.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 400, 401, 403, 404:
			return &pipeline.BackendError{Op: "embed", Retryable: false, Err: err}
		default:
			return &pipeline.BackendError{Op: "embed", Retryable: true, Err: err}
		}
	}
	// Transport-level failures carry no status code; retry them.
	return &pipeline.BackendError{Op: "embed", Retryable: true, Err: err}
}
