package render

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/futig/doctalk-backend/internal/entity"
)

const (
	// Welcome messages
	MsgWelcome = `👋 Hi! Send me documents and ask questions about them.

I can:
• Read TXT, Markdown, DOCX and PDF files
• Answer questions using only what you uploaded
• Prefer newer updates over older requirements
• Keep confidential documents out of my answers`

	MsgHelp = `🤖 Commands:

/start - Show the welcome message
/help - Show this help
/session - Show uploaded documents
/transcript - Download the conversation
/end - End the session and forget all documents

How it works:
1. Send one or more documents
2. Add #update, #requirements, #memo or #confidential to the caption if needed
3. Ask questions in plain text`

	MsgIngested = `✅ %s indexed (%s, %d chunks).`

	MsgIngestedConfidential = `🔒 %s indexed (%s, %d chunks). It is marked confidential and will not be quoted.`

	MsgNoDocuments = `📭 No documents yet. Send a file to start.`

	MsgSessionDocuments = `📚 Documents in this session:

%s
Questions asked: %d`

	MsgChooseFormat = `📥 Choose a transcript format:`

	MsgNoTranscript = `📭 Nothing to export yet. Ask a question first.`

	MsgConfirmEnd = `⚠️ End the session? All uploaded documents will be forgotten.`

	MsgContinue = `👌 Session continues.`

	MsgSessionFinished = `👋 Session ended. Send a new document to start again.`

	MsgSources = `Sources:`

	// Errors
	ErrGeneric            = `❌ Something went wrong. Please try again.`
	ErrUnknownCommand     = `❌ Unknown command. See /help`
	ErrSessionNotFound    = `❌ Session not found. Send a document to start.`
	ErrSessionEnded       = `❌ This session has ended. Send a document to start a new one.`
	ErrInvalidFile        = `❌ Unsupported file. Send TXT, Markdown, DOCX or PDF.`
	ErrFileTooLarge       = `❌ The file is too large.`
	ErrEmptyDocument      = `❌ The document contains no text.`
	ErrExtraction         = `❌ Could not read the document.`
	ErrEmptyQuery         = `❌ Please send a question.`
	ErrNetworkIssue       = `❌ Connection problem. Try again later.`
	ErrServiceUnavailable = `❌ The service is temporarily unavailable. Try again in a few minutes.`
	ErrTimeout            = `❌ The operation took too long. Try again.`
	ErrInvalidInput       = `❌ Invalid input. Try again.`
	ErrFormatNotEnabled   = `❌ This export format is not available. Choose another one.`
)

// RenderIngested formats the confirmation for an indexed document
func RenderIngested(doc *entity.Document) string {
	docType := string(doc.Type)
	if docType == "" {
		docType = string(entity.DocumentTypeGeneral)
	}
	if doc.IsConfidential() {
		return fmt.Sprintf(MsgIngestedConfidential, doc.Filename, docType, doc.ChunkCount)
	}
	return fmt.Sprintf(MsgIngested, doc.Filename, docType, doc.ChunkCount)
}

// RenderAnswer formats an answer with its sources as plain text
func RenderAnswer(answer *entity.Answer) string {
	if answer == nil {
		return ErrGeneric
	}

	var sb strings.Builder
	if answer.Refused {
		sb.WriteString("🛑 ")
	}
	sb.WriteString(answer.Text)

	if len(answer.Sources) > 0 {
		sb.WriteString("\n\n")
		sb.WriteString(MsgSources)
		for _, c := range answer.Sources {
			fmt.Fprintf(&sb, "\n• %s", c.Source)
		}
	}

	return sb.String()
}

// RenderSession lists the documents of a session
func RenderSession(info *entity.SessionInfo) string {
	if info == nil || len(info.Documents) == 0 {
		return MsgNoDocuments
	}

	var sb strings.Builder
	for i, d := range info.Documents {
		lock := ""
		if d.IsConfidential() {
			lock = " 🔒"
		}
		fmt.Fprintf(&sb, "%d. %s (%s)%s\n", i+1, d.Filename, d.Type, lock)
	}

	return fmt.Sprintf(MsgSessionDocuments, sb.String(), info.Questions)
}

// ClassifyError analyzes an error and returns an appropriate user-friendly message
func ClassifyError(err error) string {
	if err == nil {
		return ErrGeneric
	}

	switch {
	case errors.Is(err, entity.ErrSessionNotFound):
		return ErrSessionNotFound
	case errors.Is(err, entity.ErrSessionEnded):
		return ErrSessionEnded
	case errors.Is(err, entity.ErrEmptyQuery):
		return ErrEmptyQuery
	case errors.Is(err, entity.ErrEmptyDocument):
		return ErrEmptyDocument
	case errors.Is(err, entity.ErrUnsupportedFormat), errors.Is(err, entity.ErrInvalidExtension):
		return ErrInvalidFile
	case errors.Is(err, entity.ErrFileTooLarge), errors.Is(err, entity.ErrTotalSizeTooLarge):
		return ErrFileTooLarge
	case errors.Is(err, entity.ErrExtraction), errors.Is(err, entity.ErrInvalidFile):
		return ErrExtraction
	case errors.Is(err, entity.ErrEmbeddingProvider), errors.Is(err, entity.ErrGeneration):
		return ErrServiceUnavailable
	case errors.Is(err, entity.ErrFormatNotEnabled):
		return ErrFormatNotEnabled
	case errors.Is(err, entity.ErrInvalidParameter), errors.Is(err, entity.ErrMissingField), errors.Is(err, entity.ErrInvalidFormat):
		return ErrInvalidInput
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
		return ErrNetworkIssue
	}

	return ErrGeneric
}
