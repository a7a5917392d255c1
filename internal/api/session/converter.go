package session

import (
	"fmt"
	"net/http"

	"github.com/futig/doctalk-backend/internal/entity"
)

func toUploadResponse(sessionID string, summary *entity.IngestSummary) *entity.UploadResponse {
	return &entity.UploadResponse{
		Message:         fmt.Sprintf("Processed %d file(s) into %d chunk(s)", summary.FilesProcessed, summary.ChunksProcessed),
		SessionID:       sessionID,
		FilesProcessed:  summary.FilesProcessed,
		ChunksProcessed: summary.ChunksProcessed,
		Documents:       summary.Documents,
	}
}

func toUploadErrorResponse(sessionID string, status int, message string, summary *entity.IngestSummary) *entity.UploadErrorResponse {
	return &entity.UploadErrorResponse{
		ErrorResponse: entity.ErrorResponse{
			Error:   http.StatusText(status),
			Message: message,
		},
		SessionID:       sessionID,
		FilesProcessed:  summary.FilesProcessed,
		ChunksProcessed: summary.ChunksProcessed,
		Documents:       summary.Documents,
	}
}

func toChatResponse(sessionID string, answer *entity.Answer) *entity.ChatResponse {
	citations := answer.Sources
	if citations == nil {
		citations = []entity.Citation{}
	}
	return &entity.ChatResponse{
		SessionID:     sessionID,
		Answer:        answer.Text,
		Citations:     citations,
		Refused:       answer.Refused,
		RefusalReason: answer.RefusalReason,
		Usage:         answer.Usage,
	}
}
