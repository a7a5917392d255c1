package composer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/futig/doctalk-backend/internal/pkg/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	calls    int
	requests []*entity.CompletionRequest
	reply    string
	err      error
}

func (f *fakeModel) Complete(_ context.Context, req *entity.CompletionRequest) (string, error) {
	f.calls++
	f.requests = append(f.requests, req)
	return f.reply, f.err
}

func newComposer(model *fakeModel) *Composer {
	return New(model.Complete, tokens.Estimate{}, Config{MinRelevance: 0.05, MaxContextTokens: 3000})
}

func ranked(chunkID, docID string, score float64, text string, confidential bool) entity.RankedPassage {
	sensitivity := entity.SensitivityPublic
	if confidential {
		sensitivity = entity.SensitivityConfidential
	}
	return entity.RankedPassage{
		Passage: entity.Passage{
			Chunk: entity.Chunk{ID: chunkID, DocumentID: docID, Text: text, Sensitive: confidential},
			Score: score,
			Document: entity.DocumentRef{
				ID:          docID,
				Filename:    docID + ".md",
				Type:        entity.DocumentTypeGeneral,
				UploadedAt:  time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
				Sensitivity: sensitivity,
			},
		},
	}
}

func TestCompose_NoPassages(t *testing.T) {
	model := &fakeModel{}
	answer, err := newComposer(model).Compose(context.Background(), "anything?", nil)
	require.NoError(t, err)

	assert.True(t, answer.Refused)
	assert.Equal(t, entity.RefusalInsufficientContext, answer.RefusalReason)
	assert.Equal(t, NoKnowledgeMessage, answer.Text)
	assert.Empty(t, answer.Citations)
	assert.Zero(t, model.calls)
}

func TestCompose_BelowRelevance(t *testing.T) {
	model := &fakeModel{}
	answer, err := newComposer(model).Compose(context.Background(), "weather?", []entity.RankedPassage{
		ranked("a-0", "a", 0.01, "Offline Mode: included in v1", false),
	})
	require.NoError(t, err)

	assert.Equal(t, entity.RefusalInsufficientContext, answer.RefusalReason)
	assert.Zero(t, model.calls)
}

func TestCompose_AllRelevantConfidential(t *testing.T) {
	model := &fakeModel{reply: "Acme Corp"}
	answer, err := newComposer(model).Compose(context.Background(), "What is the merger target?", []entity.RankedPassage{
		ranked("m-0", "memo", 0.9, "STRICTLY CONFIDENTIAL: Project Merger Target = Acme Corp", true),
		ranked("pub-0", "pub", 0.01, "Cafeteria opens at 9", false),
	})
	require.NoError(t, err)

	assert.True(t, answer.Refused)
	assert.Equal(t, entity.RefusalConfidentialContent, answer.RefusalReason)
	assert.NotContains(t, answer.Text, "Acme")
	assert.Empty(t, answer.Citations)
	assert.Zero(t, model.calls)
}

func TestCompose_ConfidentialNeverInPrompt(t *testing.T) {
	model := &fakeModel{reply: "The budget is 10k."}
	answer, err := newComposer(model).Compose(context.Background(), "What is the budget?", []entity.RankedPassage{
		ranked("m-0", "memo", 0.9, "TOP SECRET budget = 2M, Acme acquisition", true),
		ranked("p-0", "plan", 0.7, "Budget = 10k", false),
	})
	require.NoError(t, err)
	require.Equal(t, 1, model.calls)

	req := model.requests[0]
	assert.NotContains(t, req.UserPrompt, "Acme")
	assert.NotContains(t, req.UserPrompt, "memo.md")
	assert.Equal(t, []string{"Budget = 10k"}, req.Passages)

	assert.False(t, answer.Refused)
	assert.Equal(t, "The budget is 10k.", answer.Text)
	assert.Equal(t, []string{"plan"}, answer.Citations)
}

func TestCompose_AuthorityLabels(t *testing.T) {
	upd := ranked("upd-0", "upd", 0.8, "Offline Mode: pushed to v2", false)
	upd.Document.Type = entity.DocumentTypeUpdate
	upd.Authoritative = true
	upd.Rank = 1

	req := ranked("req-0", "req", 0.9, "Offline Mode: included in v1", false)
	req.Document.Type = entity.DocumentTypeRequirements
	req.Superseded = true
	req.SupersededBy = "upd-0"
	req.Rank = 2

	model := &fakeModel{reply: "No. Offline Mode was pushed to v2 (upd.md)."}
	answer, err := newComposer(model).Compose(context.Background(), "Is Offline Mode in v1?", []entity.RankedPassage{upd, req})
	require.NoError(t, err)
	require.Equal(t, 1, model.calls)

	prompt := model.requests[0]
	assert.Contains(t, prompt.SystemPrompt, "ONLY")
	assert.Contains(t, prompt.SystemPrompt, InsufficientSentinel)
	assert.Contains(t, prompt.SystemPrompt, "takes precedence over earlier stated requirements")
	assert.Contains(t, prompt.UserPrompt, "[1] source: upd.md | type: update")
	assert.Contains(t, prompt.UserPrompt, "AUTHORITATIVE\nOffline Mode: pushed to v2")
	assert.Contains(t, prompt.UserPrompt, "SUPERSEDED by [1]")
	assert.True(t, strings.HasSuffix(prompt.UserPrompt, "Question: Is Offline Mode in v1?"))
	assert.Less(t, strings.Index(prompt.UserPrompt, "upd.md"), strings.Index(prompt.UserPrompt, "req.md"))

	assert.True(t, strings.HasPrefix(answer.Text, "No"))
	assert.Equal(t, []string{"upd", "req"}, answer.Citations)
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "upd.md", answer.Sources[0].Source)
	assert.Greater(t, answer.Usage.PromptTokens, 0)
	assert.Greater(t, answer.Usage.CompletionTokens, 0)
}

func TestCompose_ModelSaysInsufficient(t *testing.T) {
	model := &fakeModel{reply: "INSUFFICIENT_INFORMATION"}
	answer, err := newComposer(model).Compose(context.Background(), "Who is the CEO?", []entity.RankedPassage{
		ranked("a-0", "a", 0.5, "Offline Mode: included in v1", false),
	})
	require.NoError(t, err)

	assert.True(t, answer.Refused)
	assert.Equal(t, entity.RefusalInsufficientContext, answer.RefusalReason)
	assert.Equal(t, NotFoundMessage, answer.Text)
	assert.Empty(t, answer.Citations)
	assert.Equal(t, 1, model.calls)
}

func TestCompose_GenerationError(t *testing.T) {
	model := &fakeModel{err: errors.New("connection reset")}
	_, err := newComposer(model).Compose(context.Background(), "q", []entity.RankedPassage{
		ranked("a-0", "a", 0.5, "text", false),
	})
	assert.ErrorIs(t, err, entity.ErrGeneration)

	wrapped := &fakeModel{err: entity.ErrGeneration}
	_, err = newComposer(wrapped).Compose(context.Background(), "q", []entity.RankedPassage{
		ranked("a-0", "a", 0.5, "text", false),
	})
	assert.Equal(t, entity.ErrGeneration, err)
}

func TestCompose_TokenBudgetDropsWholePassages(t *testing.T) {
	big := strings.Repeat("requirement text ", 100)
	small := "Owner = Alice"

	model := &fakeModel{reply: "Alice"}
	c := New(model.Complete, tokens.Estimate{}, Config{MinRelevance: 0.05, MaxContextTokens: 60})
	answer, err := c.Compose(context.Background(), "Who owns it?", []entity.RankedPassage{
		ranked("big-0", "big", 0.9, big, false),
		ranked("small-0", "small", 0.8, small, false),
	})
	require.NoError(t, err)
	require.Equal(t, 1, model.calls)

	assert.Equal(t, []string{small}, model.requests[0].Passages)
	assert.NotContains(t, model.requests[0].UserPrompt, "requirement text")
	assert.Equal(t, []string{"small"}, answer.Citations)
}

func TestCompose_NothingFitsBudget(t *testing.T) {
	model := &fakeModel{reply: "x"}
	c := New(model.Complete, tokens.Estimate{}, Config{MinRelevance: 0.05, MaxContextTokens: 5})
	answer, err := c.Compose(context.Background(), "q", []entity.RankedPassage{
		ranked("a-0", "a", 0.9, strings.Repeat("long ", 50), false),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.RefusalInsufficientContext, answer.RefusalReason)
	assert.Zero(t, model.calls)
}

func TestCompose_CitationsDeduplicated(t *testing.T) {
	model := &fakeModel{reply: "Alice leads, Bob tests."}
	answer, err := newComposer(model).Compose(context.Background(), "Who is on the team?", []entity.RankedPassage{
		ranked("team-0", "team", 0.9, "| Alice | Lead |", false),
		ranked("team-1", "team", 0.8, "| Bob | QA |", false),
		ranked("plan-0", "plan", 0.7, "The team ships v1 in May", false),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"team", "plan"}, answer.Citations)
	assert.Len(t, answer.Sources, 2)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b...", snippet("a\nb"))

	long := strings.Repeat("x", 200)
	got := snippet(long)
	assert.Equal(t, strings.Repeat("x", 150)+"...", got)
}
