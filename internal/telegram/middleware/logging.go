package middleware

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// LoggingMiddleware logs all incoming updates
type LoggingMiddleware struct {
	logger *zap.Logger
}

// NewLoggingMiddleware creates a new logging middleware
func NewLoggingMiddleware(logger *zap.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{
		logger: logger,
	}
}

// Handle logs the update kind and timing. Message text and file names are
// never logged, they may come from confidential documents.
func (m *LoggingMiddleware) Handle(update tgbotapi.Update, next func(tgbotapi.Update)) {
	start := time.Now()
	userID, chatID, _ := updateIDs(update)

	l := m.logger.With(
		zap.Int("update_id", update.UpdateID),
		zap.Int64("user_id", userID),
		zap.Int64("chat_id", chatID),
		zap.String("type", updateType(update)),
	)
	l.Debug("telegram update received")

	next(update)

	l.Info("telegram update processed", zap.Duration("duration", time.Since(start)))
}

func updateType(update tgbotapi.Update) string {
	switch {
	case update.CallbackQuery != nil:
		return "callback"
	case update.Message == nil:
		return "other"
	case update.Message.Document != nil:
		return "document"
	case update.Message.IsCommand():
		return "command"
	case update.Message.Text != "":
		return "text"
	default:
		return "other"
	}
}
