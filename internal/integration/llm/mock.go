package llm

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/futig/doctalk-backend/internal/config"
	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/futig/doctalk-backend/internal/rag/terms"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const defaultMockDimension = 256

// InsufficientInformation is the reply a grounded model gives when the
// context does not answer the question
const InsufficientInformation = "INSUFFICIENT_INFORMATION"

// MockConnector is a deterministic offline provider. Embeddings hash
// keywords into buckets, completions echo the first context passage.
type MockConnector struct {
	dimension int
	logger    *zap.Logger
}

func NewMockConnector(dimension int, logger *zap.Logger) *MockConnector {
	if dimension <= 0 {
		dimension = defaultMockDimension
	}
	return &MockConnector{
		dimension: dimension,
		logger:    logger,
	}
}

func (m *MockConnector) Name() string {
	return config.ProviderMock
}

func (m *MockConnector) Dimension() int {
	return m.dimension
}

func (m *MockConnector) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, embeddingErr(m.Name(), err)
	}

	ctxzap.Debug(ctx, "[MOCK] embedding texts", zap.Int("count", len(texts)))

	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vectors = append(vectors, m.vector(text))
	}
	return vectors, nil
}

func (m *MockConnector) vector(text string) []float32 {
	v := make([]float32, m.dimension)
	for _, token := range terms.Keywords(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		v[h.Sum32()%uint32(m.dimension)]++
	}

	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
	return v
}

// Complete answers with the first passage, which the composer places
// according to authority
func (m *MockConnector) Complete(ctx context.Context, req *entity.CompletionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", generationErr(m.Name(), err)
	}

	ctxzap.Debug(ctx, "[MOCK] completing prompt", zap.Int("passages", len(req.Passages)))

	if len(req.Passages) == 0 {
		return InsufficientInformation, nil
	}
	return "According to the uploaded documents: " + strings.TrimSpace(req.Passages[0]), nil
}
