package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/futig/doctalk-backend/internal/api/middleware"
	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/futig/doctalk-backend/internal/pkg/formatter"
	"github.com/futig/doctalk-backend/internal/pkg/logger"
	"github.com/futig/doctalk-backend/internal/pkg/response"
	"github.com/futig/doctalk-backend/internal/pkg/validator"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// multipartMemory is the part of a multipart form kept in memory, the rest
// spills to temporary files
const multipartMemory = 32 << 20

type Handler struct {
	usecase       SessionUsecase
	validator     *validator.Validator
	formatters    *formatter.Factory
	maxUploadSize int64
}

func NewHandler(
	usecase SessionUsecase,
	validator *validator.Validator,
	maxUploadSize int64,
) *Handler {
	return &Handler{
		usecase:       usecase,
		validator:     validator,
		formatters:    formatter.NewFactory(),
		maxUploadSize: maxUploadSize,
	}
}

// Upload handles POST /upload - ingest documents into the session
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Upload")
	sessionID := middleware.SessionID(ctx)

	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(ctx, w, http.StatusRequestEntityTooLarge, "upload is too large", err)
			return
		}
		h.respondError(ctx, w, http.StatusBadRequest, "invalid multipart form", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if err := h.validator.ValidateUpload(files); err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	docType, err := validator.ValidateDocumentType(r.FormValue("document_type"))
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	confidential := false
	if v := r.FormValue("confidential"); v != "" {
		if confidential, err = strconv.ParseBool(v); err != nil {
			h.handleUsecaseError(ctx, w, fmt.Errorf("%w: confidential must be a boolean", entity.ErrInvalidParameter))
			return
		}
	}

	reqs, err := readFiles(files, docType, confidential)
	if err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "failed to read uploaded files", err)
		return
	}

	ctxzap.Info(ctx, "ingesting uploaded files",
		zap.Int("files", len(reqs)),
		zap.String("document_type", string(docType)),
		zap.Bool("confidential", confidential),
	)

	summary, err := h.usecase.IngestBatch(ctx, sessionID, reqs)
	if err != nil {
		if summary == nil || summary.FilesProcessed == 0 {
			h.handleUsecaseError(ctx, w, err)
			return
		}
		// earlier files stay in the session, tell the client which ones
		status, message := errorStatus(err)
		ctxzap.Warn(ctx, "upload stopped after partial ingestion",
			zap.Int("files_processed", summary.FilesProcessed),
			zap.Error(err),
		)
		h.respondJSON(w, status, toUploadErrorResponse(sessionID, status, message, summary))
		return
	}

	h.respondJSON(w, http.StatusOK, toUploadResponse(sessionID, summary))
}

// Chat handles POST /chat - answer a question from the session documents
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "Chat")
	sessionID := middleware.SessionID(ctx)

	var req entity.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := h.validator.ValidateChat(&req); err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	answer, err := h.usecase.AnswerQuery(ctx, sessionID, req.Message)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	ctxzap.Info(ctx, "question answered",
		zap.Bool("refused", answer.Refused),
		zap.Int("citations", len(answer.Sources)),
	)

	h.respondJSON(w, http.StatusOK, toChatResponse(sessionID, answer))
}

// GetSession handles GET /session - session metadata
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "GetSession")

	info, err := h.usecase.GetSession(ctx, middleware.SessionID(ctx))
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, info)
}

// EndSession handles DELETE /session - drop the session and its index
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "EndSession")

	if err := h.usecase.EndSession(ctx, middleware.SessionID(ctx)); err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	response.NoContent(w)
}

// GetTranscript handles GET /session/transcript - export the conversation
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "GetTranscript")
	sessionID := middleware.SessionID(ctx)

	formatParam := r.URL.Query().Get("format")
	if formatParam == "" {
		formatParam = string(entity.FormatMarkdown)
	}

	format := entity.ResultFormat(formatParam)
	if !format.IsValid() {
		h.respondError(ctx, w, http.StatusBadRequest, "invalid format parameter",
			fmt.Errorf("%w: format must be one of: markdown, json, docx, pdf", entity.ErrInvalidFormat))
		return
	}

	entries, err := h.usecase.GetTranscript(ctx, sessionID)
	if err != nil {
		h.handleUsecaseError(ctx, w, err)
		return
	}

	fmtr, err := h.formatters.Create(format)
	if err != nil {
		h.respondError(ctx, w, http.StatusNotImplemented, "format not enabled on this server", err)
		return
	}

	body, err := fmtr.Format(&formatter.Transcript{
		SessionID:  sessionID,
		ExportedAt: time.Now().UTC(),
		Entries:    entries,
	})
	if err != nil {
		h.respondError(ctx, w, http.StatusInternalServerError, "failed to format transcript", err)
		return
	}

	w.Header().Set("Content-Type", fmtr.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", formatter.Filename(sessionID, fmtr)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func readFiles(files []*multipart.FileHeader, docType entity.DocumentType, confidential bool) ([]*entity.IngestRequest, error) {
	reqs := make([]*entity.IngestRequest, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}

		reqs = append(reqs, &entity.IngestRequest{
			Filename:     fh.Filename,
			ContentType:  fh.Header.Get("Content-Type"),
			Content:      content,
			DocumentType: docType,
			Confidential: confidential,
		})
	}
	return reqs, nil
}

// Helper methods
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	response.JSON(w, status, data)
}

func (h *Handler) respondError(ctx context.Context, w http.ResponseWriter, status int, message string, err error) {
	if status >= http.StatusInternalServerError {
		ctxzap.Error(ctx, message, zap.Error(err))
	} else {
		ctxzap.Warn(ctx, message, zap.Error(err))
	}
	response.Error(w, status, message)
}

// handleUsecaseError maps domain errors to HTTP statuses
func (h *Handler) handleUsecaseError(ctx context.Context, w http.ResponseWriter, err error) {
	status, message := errorStatus(err)
	h.respondError(ctx, w, status, message, err)
}

// errorStatus picks the status and client message for a domain error. Client
// errors carry the error text, provider and internal failures stay in the logs.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrSessionNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, entity.ErrSessionEnded):
		return http.StatusConflict, "session has ended"
	case errors.Is(err, entity.ErrInvalidParameter),
		errors.Is(err, entity.ErrInvalidFormat),
		errors.Is(err, entity.ErrMissingField),
		errors.Is(err, entity.ErrInvalidExtension),
		errors.Is(err, entity.ErrInvalidFile),
		errors.Is(err, entity.ErrTooManyFiles):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, entity.ErrFileTooLarge), errors.Is(err, entity.ErrTotalSizeTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, entity.ErrExtraction), errors.Is(err, entity.ErrIngestion):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, entity.ErrEmbeddingProvider), errors.Is(err, entity.ErrGeneration):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request timed out"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
