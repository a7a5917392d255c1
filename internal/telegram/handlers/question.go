package handlers

import (
	"context"

	"github.com/futig/doctalk-backend/internal/pkg/logger"
	"github.com/futig/doctalk-backend/internal/telegram/render"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// QuestionHandler answers plain text messages from the session documents
type QuestionHandler struct {
	BaseHandler
	api       BotAPI
	sessionUC SessionUsecase
	logger    *zap.Logger
}

func NewQuestionHandler(api BotAPI, sender *MessageSender, sessionUC SessionUsecase, logger *zap.Logger) *QuestionHandler {
	return &QuestionHandler{
		BaseHandler: BaseHandler{
			kind:          HandlerKindText,
			messageSender: sender,
		},
		api:       api,
		sessionUC: sessionUC,
		logger:    logger,
	}
}

// Handle implements Handler
func (h *QuestionHandler) Handle(ctx context.Context, msg *Message) error {
	sessionID := SessionID(msg.ChatID)
	ctx = logger.WithSession(logger.WithAction(ctx, "telegram_question"), sessionID)

	stopTyping := showChatAction(ctx, h.api, msg.ChatID, tgbotapi.ChatTyping, h.logger)

	answer, err := h.sessionUC.AnswerQuery(ctx, sessionID, msg.Text)
	stopTyping()
	if err != nil {
		h.HandleError(ctx, msg.ChatID, err)
		return nil
	}

	ctxzap.Debug(ctx, "question answered",
		zap.Bool("refused", answer.Refused),
		zap.String("refusal_reason", string(answer.RefusalReason)),
	)

	if h.messageSender != nil {
		return h.messageSender.SendCritical(ctx, msg.ChatID, render.RenderAnswer(answer), nil)
	}
	return nil
}
