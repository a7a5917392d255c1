package session

import (
	"context"

	"github.com/futig/doctalk-backend/internal/entity"
)

// Provider is the model backend used for embeddings and answers
type Provider interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Complete(ctx context.Context, req *entity.CompletionRequest) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, content []byte, filename, contentType string) (string, error)
}

type Chunker interface {
	Chunk(doc *entity.Document) ([]entity.Chunk, error)
}

type Classifier interface {
	ClassifyDocument(doc *entity.Document)
	Annotate(result entity.RetrievalResult) entity.RetrievalResult
}

type Resolver interface {
	Resolve(result entity.RetrievalResult) []entity.RankedPassage
}

type Index interface {
	Search(sessionID string, query []float32, k int) (entity.RetrievalResult, error)
}

type EventSink interface {
	Emit(ctx context.Context, event entity.Event)
}
