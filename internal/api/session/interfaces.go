package session

import (
	"context"

	"github.com/futig/doctalk-backend/internal/entity"
)

type SessionUsecase interface {
	IngestBatch(ctx context.Context, sessionID string, reqs []*entity.IngestRequest) (*entity.IngestSummary, error)
	AnswerQuery(ctx context.Context, sessionID, query string) (*entity.Answer, error)
	EndSession(ctx context.Context, sessionID string) error
	GetSession(ctx context.Context, sessionID string) (*entity.SessionInfo, error)
	GetTranscript(ctx context.Context, sessionID string) ([]entity.TranscriptEntry, error)
}
