// Package llm holds the embedding and chat model connectors.
package llm

import (
	"context"
	"fmt"

	"github.com/futig/doctalk-backend/internal/config"
	"github.com/futig/doctalk-backend/internal/entity"
	"go.uber.org/zap"
)

// Provider embeds texts and completes grounded prompts
type Provider interface {
	Name() string
	// Dimension is the length of every vector returned by Embed
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Complete(ctx context.Context, req *entity.CompletionRequest) (string, error)
}

// NewProvider builds the provider selected by LLM_PROVIDER and
// EMBEDDING_PROVIDER. When they differ, embeddings and chat go to different
// backends.
func NewProvider(cfg *config.Config, logger *zap.Logger) (Provider, error) {
	chat, err := newNamed(cfg.LLMProvider, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.EmbeddingProvider == cfg.LLMProvider {
		return chat, nil
	}

	embedder, err := newNamed(cfg.EmbeddingProvider, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Composite{embedder: embedder, completer: chat}, nil
}

func newNamed(name string, cfg *config.Config, logger *zap.Logger) (Provider, error) {
	switch name {
	case config.ProviderOpenAI:
		return NewOpenAIConnector(config.ProviderOpenAI, cfg.OpenAICfg, logger), nil
	case config.ProviderPerplexity:
		return NewOpenAIConnector(config.ProviderPerplexity, cfg.OpenAICfg, logger), nil
	case config.ProviderOllama:
		return NewOllamaConnector(cfg.OllamaCfg, logger), nil
	case config.ProviderGemini:
		return NewGeminiConnector(cfg.GeminiCfg, logger), nil
	case config.ProviderMock:
		return NewMockConnector(cfg.MockCfg.EmbeddingDimension, logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", entity.ErrInvalidParameter, name)
	}
}

// Composite sends embeddings to one provider and completions to another
type Composite struct {
	embedder  Provider
	completer Provider
}

func (c *Composite) Name() string {
	return c.embedder.Name() + "+" + c.completer.Name()
}

func (c *Composite) Dimension() int {
	return c.embedder.Dimension()
}

func (c *Composite) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embedder.Embed(ctx, texts)
}

func (c *Composite) Complete(ctx context.Context, req *entity.CompletionRequest) (string, error) {
	return c.completer.Complete(ctx, req)
}

// checkEmbeddings rejects responses that do not line up with the input
func checkEmbeddings(provider string, texts []string, vectors [][]float32, dimension int) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("%w: %s returned %d embeddings for %d texts",
			entity.ErrEmbeddingProvider, provider, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) == 0 || (dimension > 0 && len(v) != dimension) {
			return fmt.Errorf("%w: %s embedding %d has %d dimensions, expected %d",
				entity.ErrEmbeddingProvider, provider, i, len(v), dimension)
		}
	}
	return nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func embeddingErr(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", entity.ErrEmbeddingProvider, provider, err)
}

func generationErr(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", entity.ErrGeneration, provider, err)
}
