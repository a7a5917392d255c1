package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/futig/doctalk-backend/internal/pkg/events"
	"github.com/futig/doctalk-backend/internal/pkg/logger"
	pkgRetry "github.com/futig/doctalk-backend/internal/pkg/retry"
	"github.com/futig/doctalk-backend/internal/pkg/tokens"
	"github.com/futig/doctalk-backend/internal/pkg/validator"
	"github.com/futig/doctalk-backend/internal/rag/composer"
	"github.com/futig/doctalk-backend/internal/rag/retriever"
	"github.com/futig/doctalk-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Config holds the retrieval and generation parameters fixed at start
type Config struct {
	Retry            pkgRetry.RetryConfig
	TopK             int
	MinRelevance     float64
	MaxContextTokens int
}

// SessionUsecase implements document ingestion and question answering
type SessionUsecase struct {
	sessions   repository.SessionRepository
	provider   Provider
	extractor  Extractor
	chunker    Chunker
	classifier Classifier
	resolver   Resolver
	retriever  *retriever.Retriever
	composer   *composer.Composer
	sink       EventSink
	config     Config
	logger     *zap.Logger
}

// NewUsecase creates a new session use case
func NewUsecase(
	sessions repository.SessionRepository,
	index Index,
	provider Provider,
	extractor Extractor,
	chunker Chunker,
	classifier Classifier,
	resolver Resolver,
	sink EventSink,
	cfg Config,
	logger *zap.Logger,
) *SessionUsecase {
	uc := &SessionUsecase{
		sessions:   sessions,
		provider:   provider,
		extractor:  extractor,
		chunker:    chunker,
		classifier: classifier,
		resolver:   resolver,
		sink:       sink,
		config:     cfg,
		logger:     logger,
	}

	uc.retriever = retriever.New(uc.embed, index, classifier, cfg.TopK)
	uc.composer = composer.New(uc.complete, tokens.DefaultOrEstimate(), composer.Config{
		MinRelevance:     cfg.MinRelevance,
		MaxContextTokens: cfg.MaxContextTokens,
	})

	sessions.OnEnd(uc.sessionEnded)

	return uc
}

// Ingest extracts, classifies, chunks and embeds one file and indexes it in
// the session. Either every chunk of the document is indexed or none is.
func (uc *SessionUsecase) Ingest(ctx context.Context, sessionID string, req *entity.IngestRequest) (*entity.Document, error) {
	ctx = withSessionID(logger.WithSession(logger.WithAction(ctx, "ingest"), sessionID), sessionID)
	start := time.Now()

	doc, err := uc.ingest(ctx, sessionID, req)
	if err != nil {
		ctxzap.Warn(ctx, "ingestion failed", zap.String("filename", req.Filename), zap.Error(err))
		uc.sink.Emit(ctx, events.New(entity.EventIngestionFailed, sessionID, map[string]any{
			"filename":   req.Filename,
			"error_kind": errorKind(err),
			"latency_ms": time.Since(start).Milliseconds(),
		}))
		return nil, err
	}

	ctxzap.Info(ctx, "document ingested",
		zap.String("document_id", doc.ID),
		zap.String("filename", doc.Filename),
		zap.Int("chunks", doc.ChunkCount),
	)
	uc.sink.Emit(ctx, events.New(entity.EventIngestionCompleted, sessionID, map[string]any{
		"document_id":   doc.ID,
		"filename":      doc.Filename,
		"document_type": string(doc.Type),
		"sensitivity":   string(doc.Sensitivity),
		"seq":           doc.Seq,
		"bytes":         doc.Size,
		"chunks":        doc.ChunkCount,
		"latency_ms":    time.Since(start).Milliseconds(),
	}))

	return doc, nil
}

func (uc *SessionUsecase) ingest(ctx context.Context, sessionID string, req *entity.IngestRequest) (*entity.Document, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Filename) == "" {
		return nil, fmt.Errorf("%w: filename", entity.ErrMissingField)
	}

	session, created := uc.sessions.GetOrCreate(sessionID)
	if created {
		ctxzap.Debug(ctx, "session created")
	}

	text, err := uc.extractor.Extract(ctx, req.Content, req.Filename, req.ContentType)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", req.Filename, err)
	}

	doc := &entity.Document{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Filename:    validator.SanitizeFilename(req.Filename),
		ContentType: req.ContentType,
		Text:        text,
		Size:        int64(len(req.Content)),
		Type:        req.DocumentType,
		Sensitivity: entity.SensitivityPublic,
	}
	if doc.Type == "" {
		doc.Type = inferDocumentType(req.Filename, text)
	}
	if req.Confidential {
		doc.Sensitivity = entity.SensitivityConfidential
	}
	uc.classifier.ClassifyDocument(doc)

	chunks, err := uc.chunker.Chunk(doc)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", doc.Filename, err)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := uc.embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].Vector = vectors[i]
	}

	// past this point the insert runs to completion
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := uc.sessions.AddDocument(session, doc, chunks); err != nil {
		return nil, fmt.Errorf("index %s: %w", doc.Filename, err)
	}

	return doc, nil
}

// IngestBatch ingests files in order and stops at the first failure. Files
// ingested before the failure stay in the session.
func (uc *SessionUsecase) IngestBatch(
	ctx context.Context, sessionID string, reqs []*entity.IngestRequest,
) (*entity.IngestSummary, error) {
	summary := &entity.IngestSummary{Documents: []entity.DocumentRef{}}

	for _, req := range reqs {
		doc, err := uc.Ingest(ctx, sessionID, req)
		if err != nil {
			return summary, fmt.Errorf("file %s: %w", req.Filename, err)
		}
		summary.Documents = append(summary.Documents, doc.Ref())
		summary.FilesProcessed++
		summary.ChunksProcessed += doc.ChunkCount
	}

	return summary, nil
}

// AnswerQuery answers from the session documents only. Refusals are returned
// as answers, errors mean the question could not be processed.
func (uc *SessionUsecase) AnswerQuery(ctx context.Context, sessionID, query string) (*entity.Answer, error) {
	ctx = withSessionID(logger.WithSession(logger.WithAction(ctx, "answer_query"), sessionID), sessionID)

	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, entity.ErrEmptyQuery
	}

	session, _ := uc.sessions.GetOrCreate(sessionID)
	start := time.Now()

	result, err := uc.retriever.Retrieve(ctx, session.IndexKey, query)
	if err != nil {
		return nil, err
	}

	ranked := uc.resolver.Resolve(result)

	answer, err := uc.composer.Compose(ctx, query, ranked)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start)

	if err := session.AppendTranscript(entity.TranscriptEntry{
		Question:  query,
		Answer:    *answer,
		AskedAt:   start.UTC(),
		LatencyMs: latency.Milliseconds(),
	}); err != nil {
		ctxzap.Debug(ctx, "session ended before the answer was recorded")
	}

	data := map[string]any{
		"passages":          result.Len(),
		"citations":         len(answer.Citations),
		"prompt_tokens":     answer.Usage.PromptTokens,
		"completion_tokens": answer.Usage.CompletionTokens,
		"latency_ms":        latency.Milliseconds(),
	}
	if answer.Refused {
		data["reason"] = string(answer.RefusalReason)
		uc.sink.Emit(ctx, events.New(entity.EventRefusalIssued, sessionID, data))
	} else {
		uc.sink.Emit(ctx, events.New(entity.EventQueryAnswered, sessionID, data))
	}

	return answer, nil
}

// EndSession drops the session index and metadata, ending an unknown session
// is a no-op
func (uc *SessionUsecase) EndSession(ctx context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	if uc.sessions.End(sessionID) {
		ctxzap.Info(logger.WithSession(ctx, sessionID), "session ended by request")
	}
	return nil
}

func (uc *SessionUsecase) GetSession(ctx context.Context, sessionID string) (*entity.SessionInfo, error) {
	session, err := uc.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	info := session.Info()
	return &info, nil
}

func (uc *SessionUsecase) GetTranscript(ctx context.Context, sessionID string) ([]entity.TranscriptEntry, error) {
	session, err := uc.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Transcript(), nil
}

// SessionCount returns the number of cached sessions
func (uc *SessionUsecase) SessionCount() int {
	return uc.sessions.Count()
}

// sessionEnded runs for every ended session, whatever ended it
func (uc *SessionUsecase) sessionEnded(info entity.SessionInfo) {
	ctx := ctxzap.ToContext(context.Background(), uc.logger)
	uc.sink.Emit(ctx, events.New(entity.EventSessionEnded, info.ID, map[string]any{
		"documents":   len(info.Documents),
		"chunks":      info.ChunkCount,
		"questions":   info.Questions,
		"lifetime_ms": time.Since(info.CreatedAt).Milliseconds(),
		"idle_ms":     time.Since(info.LastAccessAt).Milliseconds(),
	}))
}
