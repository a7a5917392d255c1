package handlers

import (
	"context"
	"errors"

	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/futig/doctalk-backend/internal/telegram/render"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// userErrors are caused by what the user sent and only logged as warnings
var userErrors = []error{
	entity.ErrSessionNotFound,
	entity.ErrSessionEnded,
	entity.ErrExtraction,
	entity.ErrEmptyDocument,
	entity.ErrUnparseableText,
	entity.ErrInvalidFile,
	entity.ErrInvalidExtension,
	entity.ErrFileTooLarge,
	entity.ErrTotalSizeTooLarge,
	entity.ErrTooManyFiles,
	entity.ErrInvalidParameter,
	entity.ErrMissingField,
	entity.ErrInvalidFormat,
	entity.ErrFormatNotEnabled,
}

// failure is a classified handler error
type failure struct {
	level   zapcore.Level
	logMsg  string
	userMsg string
}

func classifyFailure(err error) failure {
	f := failure{
		level:   zapcore.ErrorLevel,
		logMsg:  "handler error",
		userMsg: render.ClassifyError(err),
	}

	switch {
	case isUserError(err):
		f.level, f.logMsg = zapcore.WarnLevel, "request rejected"
	case errors.Is(err, entity.ErrEmbeddingProvider), errors.Is(err, entity.ErrGeneration):
		f.logMsg = "model provider unavailable"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		f.logMsg = "operation timed out"
	}
	return f
}

func isUserError(err error) bool {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// HandleError logs err at the level its cause deserves and tells the user
// what went wrong without internal details
func (h *BaseHandler) HandleError(ctx context.Context, chatID int64, err error) {
	if err == nil {
		return
	}

	f := classifyFailure(err)
	if ce := ctxzap.Extract(ctx).Check(f.level, f.logMsg); ce != nil {
		ce.Write(zap.Error(err), zap.Int64("chat_id", chatID))
	}

	if h.messageSender != nil {
		h.messageSender.Send(chatID, f.userMsg, nil)
	}
}
