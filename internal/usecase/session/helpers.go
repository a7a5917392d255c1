package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/futig/doctalk-backend/internal/pkg/events"
	pkgRetry "github.com/futig/doctalk-backend/internal/pkg/retry"
	"github.com/futig/doctalk-backend/internal/rag/terms"
)

// embedBatchSize bounds the number of texts sent in one embedding request
const embedBatchSize = 64

const maxSessionIDLength = 128

// embed embeds texts in batches, retrying transient provider failures
func (uc *SessionUsecase) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		batch := texts[start:end]

		began := time.Now()
		out, err := pkgRetry.Do(ctx, uc.config.Retry, func(ctx context.Context) ([][]float32, error) {
			return uc.provider.Embed(ctx, batch)
		})
		uc.providerLatency(ctx, "embed", began, len(batch), err)

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !errors.Is(err, entity.ErrEmbeddingProvider) {
				err = fmt.Errorf("%w: %w", entity.ErrEmbeddingProvider, err)
			}
			return nil, err
		}
		if len(out) != len(batch) {
			return nil, fmt.Errorf("%w: expected %d vectors, got %d", entity.ErrEmbeddingProvider, len(batch), len(out))
		}

		vectors = append(vectors, out...)
	}

	return vectors, nil
}

// complete runs one generation call, retrying transient provider failures
func (uc *SessionUsecase) complete(ctx context.Context, req *entity.CompletionRequest) (string, error) {
	began := time.Now()
	out, err := pkgRetry.Do(ctx, uc.config.Retry, func(ctx context.Context) (string, error) {
		return uc.provider.Complete(ctx, req)
	})
	uc.providerLatency(ctx, "complete", began, len(req.Passages), err)

	return out, err
}

func (uc *SessionUsecase) providerLatency(ctx context.Context, operation string, began time.Time, items int, err error) {
	sessionID, _ := ctx.Value(sessionKey{}).(string)
	uc.sink.Emit(ctx, events.New(entity.EventProviderLatency, sessionID, map[string]any{
		"provider":   uc.provider.Name(),
		"operation":  operation,
		"items":      items,
		"ok":         err == nil,
		"latency_ms": time.Since(began).Milliseconds(),
	}))
}

type sessionKey struct{}

func withSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

func validateSessionID(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session id", entity.ErrMissingField)
	}
	if len(sessionID) > maxSessionIDLength {
		return fmt.Errorf("%w: session id longer than %d bytes", entity.ErrInvalidParameter, maxSessionIDLength)
	}
	return nil
}

// inferDocumentType guesses the document type from its name and first line
func inferDocumentType(filename, text string) entity.DocumentType {
	head := text
	if i := strings.IndexByte(head, '\n'); i >= 0 {
		head = head[:i]
	}
	sample := " " + strings.Join(terms.Tokens(filename+" "+head), " ") + " "

	switch {
	case containsAny(sample, " update ", " updates ", " status ", " changelog ", " release notes ", " addendum "):
		return entity.DocumentTypeUpdate
	case containsAny(sample, " requirement ", " requirements ", " spec ", " specification ", " prd ", " brd "):
		return entity.DocumentTypeRequirements
	case containsAny(sample, " memo ", " memorandum "):
		return entity.DocumentTypeMemo
	default:
		return entity.DocumentTypeGeneral
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// errorKind is the coarse error class reported in events
func errorKind(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, entity.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, entity.ErrExtraction):
		return "extraction"
	case errors.Is(err, entity.ErrEmptyDocument):
		return "empty_document"
	case errors.Is(err, entity.ErrIngestion):
		return "ingestion"
	case errors.Is(err, entity.ErrEmbeddingProvider):
		return "embedding_provider"
	case errors.Is(err, entity.ErrSessionEnded):
		return "session_ended"
	case errors.Is(err, entity.ErrMissingField), errors.Is(err, entity.ErrInvalidParameter):
		return "validation"
	default:
		return "internal"
	}
}
