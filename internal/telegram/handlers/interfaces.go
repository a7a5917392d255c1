package handlers

import (
	"context"

	"github.com/futig/doctalk-backend/internal/entity"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SessionUsecase defines the session operations used by the Telegram bot
type SessionUsecase interface {
	Ingest(ctx context.Context, sessionID string, req *entity.IngestRequest) (*entity.Document, error)
	AnswerQuery(ctx context.Context, sessionID, query string) (*entity.Answer, error)
	EndSession(ctx context.Context, sessionID string) error
	GetSession(ctx context.Context, sessionID string) (*entity.SessionInfo, error)
	GetTranscript(ctx context.Context, sessionID string) ([]entity.TranscriptEntry, error)
}

// BotAPI is the part of *tgbotapi.BotAPI the handlers call
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Downloader fetches uploaded files from Telegram servers
type Downloader interface {
	Download(ctx context.Context, url string, maxBytes int64) ([]byte, error)
}

// FileValidator checks an upload before it is downloaded
type FileValidator interface {
	ValidateFile(filename string, size int64) error
}
