package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	pkgRetry "github.com/futig/doctalk-backend/internal/pkg/retry"
	pkghttp "github.com/futig/doctalk-backend/pkg/http"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// MessageSender provides centralized message sending functionality
type MessageSender struct {
	bot    BotAPI
	retry  pkgRetry.RetryConfig
	logger *zap.Logger
}

// NewMessageSender creates a new MessageSender
func NewMessageSender(bot BotAPI, retry pkgRetry.RetryConfig, logger *zap.Logger) *MessageSender {
	return &MessageSender{
		bot:    bot,
		retry:  retry,
		logger: logger,
	}
}

// Send sends a message to the specified chat
func (s *MessageSender) Send(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}

	_, err := s.bot.Send(msg)
	if err != nil {
		s.logger.Error("failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
		)
		return err
	}

	return nil
}

// SendCritical retries the send, it is used for answers the user waited for
func (s *MessageSender) SendCritical(ctx context.Context, chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	return s.sendWithRetry(ctx, chatID, msg)
}

// SendDocument uploads an in-memory file to the chat
func (s *MessageSender) SendDocument(ctx context.Context, chatID int64, filename string, data []byte) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  filename,
		Bytes: data,
	})
	return s.sendWithRetry(ctx, chatID, doc)
}

func (s *MessageSender) sendWithRetry(ctx context.Context, chatID int64, c tgbotapi.Chattable) error {
	_, err := pkgRetry.Do(ctx, s.retry, func(ctx context.Context) (tgbotapi.Message, error) {
		sent, err := s.bot.Send(c)
		return sent, classifySendError(err)
	})
	if err != nil {
		s.logger.Error("failed to send message after retries",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
		)
		return fmt.Errorf("send to chat %d: %w", chatID, err)
	}
	return nil
}

// classifySendError maps bot API failures onto the retryable error types.
// Transport failures come back as plain errors, API replies as *tgbotapi.Error.
func classifySendError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError {
			return &pkghttp.HTTPError{StatusCode: apiErr.Code, Message: apiErr.Message}
		}
		return err
	}

	return pkghttp.NewNetworkError(err)
}
