package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/futig/doctalk-backend/internal/pkg/logger"
	pkgRetry "github.com/futig/doctalk-backend/internal/pkg/retry"
	"github.com/futig/doctalk-backend/internal/telegram/render"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// DocumentHandler downloads uploaded files and adds them to the chat session
type DocumentHandler struct {
	BaseHandler
	api         BotAPI
	sessionUC   SessionUsecase
	downloader  Downloader
	validator   FileValidator
	retry       pkgRetry.RetryConfig
	maxFileSize int64
	logger      *zap.Logger
}

func NewDocumentHandler(
	api BotAPI,
	sender *MessageSender,
	sessionUC SessionUsecase,
	downloader Downloader,
	validator FileValidator,
	retry pkgRetry.RetryConfig,
	maxFileSize int64,
	logger *zap.Logger,
) *DocumentHandler {
	return &DocumentHandler{
		BaseHandler: BaseHandler{
			kind:          HandlerKindDocument,
			messageSender: sender,
		},
		api:         api,
		sessionUC:   sessionUC,
		downloader:  downloader,
		validator:   validator,
		retry:       retry,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// Handle implements Handler
func (h *DocumentHandler) Handle(ctx context.Context, msg *Message) error {
	if msg.Document == nil {
		return fmt.Errorf("%w: document", entity.ErrMissingField)
	}

	doc := msg.Document
	sessionID := SessionID(msg.ChatID)
	ctx = logger.AddFields(logger.WithSession(logger.WithAction(ctx, "telegram_upload"), sessionID),
		zap.String("filename", doc.FileName),
	)

	if err := h.validator.ValidateFile(doc.FileName, int64(doc.FileSize)); err != nil {
		h.HandleError(ctx, msg.ChatID, err)
		return nil
	}

	docType, confidential := ParseCaption(msg.Caption)

	stopAction := showChatAction(ctx, h.api, msg.ChatID, tgbotapi.ChatUploadDocument, h.logger)
	defer stopAction()

	content, err := h.download(ctx, doc.FileID)
	if err != nil {
		ctxzap.Error(ctx, "failed to download document", zap.Error(err))
		h.HandleError(ctx, msg.ChatID, err)
		return nil
	}

	ingested, err := h.sessionUC.Ingest(ctx, sessionID, &entity.IngestRequest{
		Filename:     doc.FileName,
		ContentType:  doc.MimeType,
		Content:      content,
		DocumentType: docType,
		Confidential: confidential,
	})
	if err != nil {
		h.HandleError(ctx, msg.ChatID, err)
		return nil
	}

	ctxzap.Info(ctx, "document indexed",
		zap.String("document_id", ingested.ID),
		zap.Int("chunks", ingested.ChunkCount),
	)
	h.sendMessage(msg.ChatID, render.RenderIngested(ingested), nil)

	return nil
}

func (h *DocumentHandler) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := h.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file url: %w", err)
	}
	if !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("%w: refusing non-https file url", entity.ErrInvalidFile)
	}

	return pkgRetry.Do(ctx, h.retry, func(ctx context.Context) ([]byte, error) {
		return h.downloader.Download(ctx, url, h.maxFileSize)
	})
}

// ParseCaption reads #update, #requirements, #memo, #general and
// #confidential tags from a document caption
func ParseCaption(caption string) (entity.DocumentType, bool) {
	var (
		docType      entity.DocumentType
		confidential bool
	)

	for _, field := range strings.Fields(caption) {
		if !strings.HasPrefix(field, "#") {
			continue
		}
		tag := strings.ToLower(strings.TrimRight(strings.TrimPrefix(field, "#"), ".,;:!"))
		if tag == "confidential" || tag == "secret" {
			confidential = true
			continue
		}
		if t, ok := entity.ParseDocumentType(tag); ok && t != "" && docType == "" {
			docType = t
		}
	}

	return docType, confidential
}
