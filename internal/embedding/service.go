package embedding

import (
	"context"
	"fmt"

	"github.com/nikhilbhutani/pdfmate/internal/config"
	"github.com/nikhilbhutani/pdfmate/internal/llm"
)

// Embedder turns page text into vectors.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// batchSize is the OpenAI per-request input cap we stay under.
const batchSize = 100

// Service embeds through the LLM gateway's OpenAI provider.
type Service struct {
	gateway    llm.Gateway
	model      string
	dimensions int
}

func NewService(gw llm.Gateway, model string, dimensions int) *Service {
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &Service{gateway: gw, model: model, dimensions: dimensions}
}

// New picks the backend named by cfg.Backend.
func New(cfg config.EmbeddingConfig, gw llm.Gateway) (Embedder, error) {
	switch cfg.Backend {
	case "", "gateway":
		return NewService(gw, cfg.Model, cfg.Dimensions), nil
	case "langchain":
		return NewLangchainEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", cfg.Backend)
	}
}

func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += batchSize {
		end := min(i+batchSize, len(texts))

		resp, err := s.gateway.Embed(ctx, llm.EmbeddingRequest{
			Provider: "openai",
			Model:    s.model,
			Input:    texts[i:end],
		})
		if err != nil {
			return nil, fmt.Errorf("embed batch %d: %w", i/batchSize, err)
		}
		if len(resp.Embeddings) != end-i {
			return nil, fmt.Errorf("embed batch %d: got %d vectors for %d inputs", i/batchSize, len(resp.Embeddings), end-i)
		}
		out = append(out, resp.Embeddings...)
	}

	return out, checkDimensions(out, s.dimensions)
}

func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// checkDimensions rejects vectors the index column cannot hold.
func checkDimensions(vecs [][]float32, want int) error {
	if want <= 0 {
		return nil
	}
	for i, v := range vecs {
		if len(v) != want {
			return fmt.Errorf("vector %d has %d dimensions, want %d", i, len(v), want)
		}
	}
	return nil
}
