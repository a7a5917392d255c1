package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/futig/doctalk-backend/internal/pkg/formatter"
	"github.com/futig/doctalk-backend/internal/pkg/logger"
	"github.com/futig/doctalk-backend/internal/telegram/keyboard"
	"github.com/futig/doctalk-backend/internal/telegram/render"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// CallbackHandler handles inline keyboard buttons
type CallbackHandler struct {
	BaseHandler
	api        BotAPI
	sessionUC  SessionUsecase
	formatters *formatter.Factory
	logger     *zap.Logger
}

func NewCallbackHandler(api BotAPI, sender *MessageSender, sessionUC SessionUsecase, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{
		BaseHandler: BaseHandler{
			kind:          HandlerKindCallback,
			messageSender: sender,
		},
		api:        api,
		sessionUC:  sessionUC,
		formatters: formatter.NewFactory(),
		logger:     logger,
	}
}

// Handle implements Handler
func (h *CallbackHandler) Handle(ctx context.Context, msg *Message) error {
	data, err := keyboard.ParseCallback(msg.CallbackData)
	if err != nil {
		return err
	}

	ctx = logger.WithAction(ctx, "telegram_callback_"+data.Action)

	switch data.Action {
	case keyboard.ActionExport:
		return h.handleExport(ctx, msg, entity.ResultFormat(data.Value))
	case keyboard.ActionConfirm:
		return h.handleConfirm(ctx, msg, data.Value)
	default:
		ctxzap.Warn(ctx, "unknown callback action", zap.String("action", data.Action))
		return nil
	}
}

func (h *CallbackHandler) handleExport(ctx context.Context, msg *Message, format entity.ResultFormat) error {
	f, err := h.formatters.Create(format)
	if err != nil {
		h.HandleError(ctx, msg.ChatID, err)
		return nil
	}

	sessionID := SessionID(msg.ChatID)
	entries, err := h.sessionUC.GetTranscript(ctx, sessionID)
	if err != nil {
		h.HandleError(ctx, msg.ChatID, err)
		return nil
	}
	if len(entries) == 0 {
		h.sendMessage(msg.ChatID, render.MsgNoTranscript, nil)
		return nil
	}

	stopAction := showChatAction(ctx, h.api, msg.ChatID, tgbotapi.ChatUploadDocument, h.logger)
	defer stopAction()

	data, err := f.Format(&formatter.Transcript{
		SessionID:  sessionID,
		ExportedAt: time.Now().UTC(),
		Entries:    entries,
	})
	if err != nil {
		return fmt.Errorf("format transcript: %w", err)
	}

	if h.messageSender == nil {
		return nil
	}
	return h.messageSender.SendDocument(ctx, msg.ChatID, formatter.Filename(sessionID, f), data)
}

func (h *CallbackHandler) handleConfirm(ctx context.Context, msg *Message, value string) error {
	switch value {
	case keyboard.ConfirmEnd:
		sessionID := SessionID(msg.ChatID)
		if err := h.sessionUC.EndSession(ctx, sessionID); err != nil {
			h.HandleError(ctx, msg.ChatID, err)
			return nil
		}
		ctxzap.Info(ctx, "session ended by user", zap.String("session_id", sessionID))
		h.sendMessage(msg.ChatID, render.MsgSessionFinished, nil)
	case keyboard.ConfirmContinue:
		h.sendMessage(msg.ChatID, render.MsgContinue, nil)
	default:
		ctxzap.Warn(ctx, "unknown confirm value", zap.String("value", value))
	}
	return nil
}
