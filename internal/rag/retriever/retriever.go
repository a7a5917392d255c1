// Package retriever finds the passages of a session that are closest to a
// query.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// EmbedFunc embeds texts, retries are the caller's concern
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

type Index interface {
	Search(sessionID string, query []float32, k int) (entity.RetrievalResult, error)
}

type Annotator interface {
	Annotate(result entity.RetrievalResult) entity.RetrievalResult
}

type Retriever struct {
	embed     EmbedFunc
	index     Index
	annotator Annotator
	topK      int
}

func New(embed EmbedFunc, index Index, annotator Annotator, topK int) *Retriever {
	return &Retriever{
		embed:     embed,
		index:     index,
		annotator: annotator,
		topK:      topK,
	}
}

// Retrieve embeds query and returns the top K passages of the session with
// sensitivity flags asserted from their documents
func (r *Retriever) Retrieve(ctx context.Context, sessionID, query string) (entity.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return entity.RetrievalResult{}, entity.ErrEmptyQuery
	}

	vectors, err := r.embed(ctx, []string{query})
	if err != nil {
		return entity.RetrievalResult{}, err
	}
	if len(vectors) != 1 {
		return entity.RetrievalResult{}, fmt.Errorf("%w: expected 1 query embedding, got %d",
			entity.ErrEmbeddingProvider, len(vectors))
	}

	result, err := r.index.Search(sessionID, vectors[0], r.topK)
	if err != nil {
		return entity.RetrievalResult{}, err
	}

	result = r.annotator.Annotate(result)

	ctxzap.Debug(ctx, "passages retrieved", zap.Int("count", result.Len()), zap.Int("top_k", r.topK))

	return result, nil
}
