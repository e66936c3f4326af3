package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/nikhilbhutani/pdfmate/internal/config"
)

// LangchainEmbedder embeds via langchaingo against any OpenAI-compatible
// endpoint (self-hosted embedding servers included).
type LangchainEmbedder struct {
	embedder   embeddings.Embedder
	dimensions int
}

func NewLangchainEmbedder(cfg config.EmbeddingConfig) (*LangchainEmbedder, error) {
	opts := []openai.Option{openai.WithEmbeddingModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	token := cfg.APIKey
	if token == "" {
		token = "none"
	}
	opts = append(opts, openai.WithToken(token))

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}
	return newLangchainEmbedder(client, cfg.Dimensions)
}

func newLangchainEmbedder(client embeddings.EmbedderClient, dimensions int) (*LangchainEmbedder, error) {
	e, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(batchSize),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &LangchainEmbedder{embedder: e, dimensions: dimensions}, nil
}

func (e *LangchainEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embed documents: got %d vectors for %d inputs", len(vecs), len(texts))
	}
	return vecs, checkDimensions(vecs, e.dimensions)
}

func (e *LangchainEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := checkDimensions([][]float32{vec}, e.dimensions); err != nil {
		return nil, err
	}
	return vec, nil
}
