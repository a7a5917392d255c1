package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/futig/doctalk-backend/internal/config"
	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/futig/doctalk-backend/internal/integration/common"
	pkghttp "github.com/futig/doctalk-backend/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	ollamaEmbeddingsEndpoint = "/api/embeddings"
	ollamaChatEndpoint       = "/api/chat"
)

// OllamaConnector talks to a local Ollama server
type OllamaConnector struct {
	config    config.OllamaConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewOllamaConnector(cfg config.OllamaConfig, logger *zap.Logger) *OllamaConnector {
	return &OllamaConnector{
		config:    cfg,
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		logger:    logger,
	}
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

func (c *OllamaConnector) Name() string {
	return config.ProviderOllama
}

func (c *OllamaConnector) Dimension() int {
	return c.config.EmbeddingDimension
}

// Embed calls the embeddings endpoint once per text, the API takes one prompt
func (c *OllamaConnector) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, embeddingErr(c.Name(), err)
		}

		var resp ollamaEmbeddingResponse
		req := &ollamaEmbeddingRequest{Model: c.config.EmbeddingModel, Prompt: text}
		if err := c.connector.DoRequest(ctx, http.MethodPost, ollamaEmbeddingsEndpoint, req, &resp); err != nil {
			return nil, embeddingErr(c.Name(), fmt.Errorf("text %d: %w", i, err))
		}
		vectors = append(vectors, toFloat32(resp.Embedding))
	}

	ctxzap.Debug(ctx, "texts embedded", zap.String("provider", c.Name()), zap.Int("count", len(texts)))

	if err := checkEmbeddings(c.Name(), texts, vectors, c.config.EmbeddingDimension); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (c *OllamaConnector) Complete(ctx context.Context, req *entity.CompletionRequest) (string, error) {
	messages := make([]ollamaMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, ollamaMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, ollamaMessage{Role: "user", Content: req.UserPrompt})

	body := &ollamaChatRequest{
		Model:    c.config.ChatModel,
		Messages: messages,
		Stream:   false,
		Options:  map[string]any{"temperature": 0},
	}

	var resp ollamaChatResponse
	if err := c.connector.DoRequest(ctx, http.MethodPost, ollamaChatEndpoint, body, &resp); err != nil {
		return "", generationErr(c.Name(), err)
	}

	content := strings.TrimSpace(resp.Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: ollama returned an empty message", entity.ErrGeneration)
	}
	return content, nil
}
