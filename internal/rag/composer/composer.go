// Package composer builds grounded answers from ranked passages.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/futig/doctalk-backend/internal/pkg/tokens"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

const (
	// InsufficientSentinel is the exact reply the model is told to give when
	// the context does not answer the question
	InsufficientSentinel = "INSUFFICIENT_INFORMATION"

	NoKnowledgeMessage  = "I'm sorry, I don't have any knowledge about that yet. Please upload a document."
	NotFoundMessage     = "I cannot find the answer in the provided documents."
	ConfidentialMessage = "I can't answer that. The relevant documents are marked confidential."

	snippetLength = 150
)

const systemPrompt = `You are a helpful assistant discussing internal documents.
Answer the user's question based ONLY on the passages inside <context>. Do not use any outside knowledge.
If the passages do not contain the answer, reply with exactly ` + InsufficientSentinel + ` and nothing else.
When passages disagree, information from passages marked AUTHORITATIVE, from update documents or from later uploads takes precedence over earlier stated requirements. Passages marked SUPERSEDED describe the earlier state only.
Keep the answer short and mention the source file names you relied on.`

// CompleteFunc calls the language model, retries are the caller's concern
type CompleteFunc func(ctx context.Context, req *entity.CompletionRequest) (string, error)

type Config struct {
	MinRelevance     float64
	MaxContextTokens int
}

type Composer struct {
	complete CompleteFunc
	counter  tokens.Counter
	config   Config
}

func New(complete CompleteFunc, counter tokens.Counter, cfg Config) *Composer {
	if counter == nil {
		counter = tokens.DefaultOrEstimate()
	}
	return &Composer{
		complete: complete,
		counter:  counter,
		config:   cfg,
	}
}

// Compose answers query from ranked passages. Confidential passages never
// reach the model, and when they are the only relevant ones the answer is a
// refusal produced without any model call.
func (c *Composer) Compose(ctx context.Context, query string, ranked []entity.RankedPassage) (*entity.Answer, error) {
	if len(ranked) == 0 {
		return entity.NewRefusal(entity.RefusalInsufficientContext, NoKnowledgeMessage), nil
	}

	relevant := make([]entity.RankedPassage, 0, len(ranked))
	for _, p := range ranked {
		if p.Score >= c.config.MinRelevance {
			relevant = append(relevant, p)
		}
	}
	if len(relevant) == 0 {
		return entity.NewRefusal(entity.RefusalInsufficientContext, NotFoundMessage), nil
	}

	public := make([]entity.RankedPassage, 0, len(relevant))
	for _, p := range relevant {
		if p.Chunk.Sensitive || p.Document.IsConfidential() {
			continue
		}
		public = append(public, p)
	}
	if len(public) == 0 {
		ctxzap.Info(ctx, "all relevant passages are confidential, refusing", zap.Int("relevant", len(relevant)))
		return entity.NewRefusal(entity.RefusalConfidentialContent, ConfidentialMessage), nil
	}

	placed, req := c.buildPrompt(query, public)
	if len(placed) == 0 {
		ctxzap.Warn(ctx, "no passage fits the context budget", zap.Int("max_context_tokens", c.config.MaxContextTokens))
		return entity.NewRefusal(entity.RefusalInsufficientContext, NotFoundMessage), nil
	}

	ctxzap.Debug(ctx, "prompt built",
		zap.Int("passages", len(placed)),
		zap.Int("dropped_confidential", len(relevant)-len(public)),
	)

	output, err := c.complete(ctx, req)
	if err != nil {
		if !errors.Is(err, entity.ErrGeneration) {
			err = fmt.Errorf("%w: %w", entity.ErrGeneration, err)
		}
		return nil, err
	}
	output = strings.TrimSpace(output)

	usage := entity.Usage{
		PromptTokens:     c.counter.Count(req.SystemPrompt) + c.counter.Count(req.UserPrompt),
		CompletionTokens: c.counter.Count(output),
	}

	if output == "" || strings.Contains(strings.ToUpper(output), InsufficientSentinel) {
		answer := entity.NewRefusal(entity.RefusalInsufficientContext, NotFoundMessage)
		answer.Usage = usage
		return answer, nil
	}

	answer := &entity.Answer{
		Text:      output,
		Citations: []string{},
		Sources:   []entity.Citation{},
		Usage:     usage,
	}
	seen := make(map[string]bool)
	for _, p := range placed {
		if seen[p.Document.ID] {
			continue
		}
		seen[p.Document.ID] = true
		answer.Citations = append(answer.Citations, p.Document.ID)
		answer.Sources = append(answer.Sources, entity.Citation{
			DocumentID: p.Document.ID,
			Source:     p.Document.Filename,
			Text:       snippet(p.Chunk.Text),
		})
	}

	return answer, nil
}

// buildPrompt places passages in resolver order until the context token
// budget is spent. A passage that does not fit is skipped whole.
func (c *Composer) buildPrompt(query string, passages []entity.RankedPassage) ([]entity.RankedPassage, *entity.CompletionRequest) {
	question := "Question: " + strings.TrimSpace(query)
	budget := c.config.MaxContextTokens

	labels := make(map[string]int, len(passages))
	placed := make([]entity.RankedPassage, 0, len(passages))
	blocks := make([]string, 0, len(passages))
	texts := make([]string, 0, len(passages))

	for _, p := range passages {
		block := renderBlock(len(placed)+1, p, labels)
		cost := c.counter.Count(block)
		if c.config.MaxContextTokens > 0 && cost > budget {
			continue
		}
		budget -= cost

		labels[p.Chunk.ID] = len(placed) + 1
		placed = append(placed, p)
		blocks = append(blocks, block)
		texts = append(texts, p.Chunk.Text)
	}

	var user strings.Builder
	user.WriteString("<context>\n")
	user.WriteString(strings.Join(blocks, "\n\n"))
	user.WriteString("\n</context>\n\n")
	user.WriteString(question)

	return placed, &entity.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   user.String(),
		Passages:     texts,
	}
}

func renderBlock(n int, p entity.RankedPassage, labels map[string]int) string {
	header := []string{
		fmt.Sprintf("[%d] source: %s", n, p.Document.Filename),
	}
	if p.Document.Type != "" {
		header = append(header, "type: "+string(p.Document.Type))
	}
	if !p.Document.UploadedAt.IsZero() {
		header = append(header, "uploaded: "+p.Document.UploadedAt.UTC().Format(time.RFC3339))
	}
	switch {
	case p.Authoritative:
		header = append(header, "AUTHORITATIVE")
	case p.Superseded:
		if by, ok := labels[p.SupersededBy]; ok {
			header = append(header, fmt.Sprintf("SUPERSEDED by [%d]", by))
		} else {
			header = append(header, "SUPERSEDED")
		}
	}

	return strings.Join(header, " | ") + "\n" + strings.TrimSpace(p.Chunk.Text)
}

func snippet(text string) string {
	flat := strings.ReplaceAll(text, "\n", " ")
	runes := []rune(flat)
	if len(runes) > snippetLength {
		runes = runes[:snippetLength]
	}
	return string(runes) + "..."
}
