package llm

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/futig/doctalk-backend/internal/config"
	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/futig/doctalk-backend/internal/integration/common"
	pkghttp "github.com/futig/doctalk-backend/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// OpenAIConnector talks to OpenAI-compatible APIs. Perplexity uses it with a
// different base URL and a separate embeddings service.
type OpenAIConnector struct {
	name      string
	config    config.OpenAIConfig
	chat      *pkghttp.Connector
	embedding *pkghttp.Connector
	logger    *zap.Logger
}

func NewOpenAIConnector(name string, cfg config.OpenAIConfig, logger *zap.Logger) *OpenAIConnector {
	chat := common.NewBaseConnector(cfg.HTTPClientConfig, logger)

	embedding := chat
	if cfg.EmbeddingURL != "" {
		embCfg := cfg.HTTPClientConfig
		embCfg.Url = cfg.EmbeddingURL
		if cfg.EmbeddingToken != "" {
			embCfg.Token = cfg.EmbeddingToken
		}
		embedding = common.NewBaseConnector(embCfg, logger)
	}

	return &OpenAIConnector{
		name:      name,
		config:    cfg,
		chat:      chat,
		embedding: embedding,
		logger:    logger,
	}
}

type openAIEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIConnector) Name() string {
	return c.name
}

func (c *OpenAIConnector) Dimension() int {
	return c.config.EmbeddingDimension
}

// Embed sends all texts in one request, results are reordered by index
func (c *OpenAIConnector) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	ctxzap.Debug(ctx, "embedding texts", zap.String("provider", c.name), zap.Int("count", len(texts)))

	req := &openAIEmbeddingRequest{Model: c.config.EmbeddingModel, Input: texts}
	var resp openAIEmbeddingResponse
	if err := c.embedding.DoRequest(ctx, http.MethodPost, c.config.EmbeddingPath, req, &resp); err != nil {
		return nil, embeddingErr(c.name, err)
	}

	sort.SliceStable(resp.Data, func(i, j int) bool {
		return resp.Data[i].Index < resp.Data[j].Index
	})

	vectors := make([][]float32, 0, len(resp.Data))
	for _, d := range resp.Data {
		vectors = append(vectors, toFloat32(d.Embedding))
	}

	if err := checkEmbeddings(c.name, texts, vectors, c.config.EmbeddingDimension); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (c *OpenAIConnector) Complete(ctx context.Context, req *entity.CompletionRequest) (string, error) {
	ctxzap.Debug(ctx, "requesting completion", zap.String("provider", c.name), zap.String("model", c.config.ChatModel))

	messages := make([]openAIMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.UserPrompt})

	body := &openAIChatRequest{
		Model:       c.config.ChatModel,
		Messages:    messages,
		Temperature: c.config.Temperature,
	}

	var resp openAIChatResponse
	if err := c.chat.DoRequest(ctx, http.MethodPost, c.config.ChatPath, body, &resp); err != nil {
		return "", generationErr(c.name, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: %s returned no choices", entity.ErrGeneration, c.name)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
