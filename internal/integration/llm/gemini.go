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

const geminiAPIKeyHeader = "x-goog-api-key"

// GeminiConnector talks to the Generative Language REST API
type GeminiConnector struct {
	config    config.GeminiConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewGeminiConnector(cfg config.GeminiConfig, logger *zap.Logger) *GeminiConnector {
	return &GeminiConnector{
		config: cfg,
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger,
			pkghttp.WithStaticHeader(geminiAPIKeyHeader, cfg.APIKey)),
		logger: logger,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiEmbedRequest struct {
	Model   string        `json:"model"`
	Content geminiContent `json:"content"`
}

type geminiBatchEmbedRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

type geminiBatchEmbedResponse struct {
	Embeddings []struct {
		Values []float64 `json:"values"`
	} `json:"embeddings"`
}

type geminiGenerateRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  map[string]any  `json:"generationConfig,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (c *GeminiConnector) Name() string {
	return config.ProviderGemini
}

func (c *GeminiConnector) Dimension() int {
	return c.config.EmbeddingDimension
}

func (c *GeminiConnector) endpoint(model, method string) string {
	return fmt.Sprintf("/v1beta/models/%s:%s", model, method)
}

func (c *GeminiConnector) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	model := "models/" + c.config.EmbeddingModel
	body := &geminiBatchEmbedRequest{Requests: make([]geminiEmbedRequest, 0, len(texts))}
	for _, text := range texts {
		body.Requests = append(body.Requests, geminiEmbedRequest{
			Model:   model,
			Content: geminiContent{Parts: []geminiPart{{Text: text}}},
		})
	}

	var resp geminiBatchEmbedResponse
	err := c.connector.DoRequest(ctx, http.MethodPost, c.endpoint(c.config.EmbeddingModel, "batchEmbedContents"), body, &resp)
	if err != nil {
		return nil, embeddingErr(c.Name(), err)
	}

	vectors := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		vectors = append(vectors, toFloat32(e.Values))
	}

	ctxzap.Debug(ctx, "texts embedded", zap.String("provider", c.Name()), zap.Int("count", len(texts)))

	if err := checkEmbeddings(c.Name(), texts, vectors, c.config.EmbeddingDimension); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (c *GeminiConnector) Complete(ctx context.Context, req *entity.CompletionRequest) (string, error) {
	body := &geminiGenerateRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: req.UserPrompt}},
		}},
		GenerationConfig: map[string]any{"temperature": 0},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}

	var resp geminiGenerateResponse
	err := c.connector.DoRequest(ctx, http.MethodPost, c.endpoint(c.config.ChatModel, "generateContent"), body, &resp)
	if err != nil {
		return "", generationErr(c.Name(), err)
	}

	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: gemini returned no candidates", entity.ErrGeneration)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String()), nil
}
