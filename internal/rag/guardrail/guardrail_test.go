package guardrail

import (
	"testing"

	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/stretchr/testify/assert"
)

var testMarkers = []string{"STRICTLY CONFIDENTIAL", "Internal Only", "  ", "DO NOT DISTRIBUTE"}

func TestClassifier_ClassifyText(t *testing.T) {
	c := New(testMarkers)

	tests := []struct {
		name       string
		text       string
		want       entity.Sensitivity
		wantMarker string
	}{
		{
			name:       "exact marker",
			text:       "STRICTLY CONFIDENTIAL: Project Merger Target = Acme Corp",
			want:       entity.SensitivityConfidential,
			wantMarker: "STRICTLY CONFIDENTIAL",
		},
		{
			name:       "lower case",
			text:       "this memo is strictly confidential",
			want:       entity.SensitivityConfidential,
			wantMarker: "STRICTLY CONFIDENTIAL",
		},
		{
			name:       "marker broken across lines",
			text:       "Header\nINTERNAL\n   ONLY\nbody",
			want:       entity.SensitivityConfidential,
			wantMarker: "Internal Only",
		},
		{
			name: "partial marker",
			text: "Confidentiality is discussed in section 4.",
			want: entity.SensitivityPublic,
		},
		{
			name: "public text",
			text: "Offline Mode: included in v1",
			want: entity.SensitivityPublic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, marker := c.ClassifyText(tt.text)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantMarker, marker)
		})
	}
}

func TestClassifier_SkipsBlankMarkers(t *testing.T) {
	c := New(testMarkers)
	assert.Equal(t, []string{"STRICTLY CONFIDENTIAL", "Internal Only", "DO NOT DISTRIBUTE"}, c.Markers())

	got, _ := New(nil).ClassifyText("STRICTLY CONFIDENTIAL")
	assert.Equal(t, entity.SensitivityPublic, got)
}

func TestClassifier_ClassifyDocument(t *testing.T) {
	c := New(testMarkers)

	marked := &entity.Document{Text: "Header\n\nDO NOT DISTRIBUTE\n\nbudget"}
	c.ClassifyDocument(marked)
	assert.True(t, marked.IsConfidential())
	assert.Equal(t, "DO NOT DISTRIBUTE", marked.SensitivityMarker)

	declared := &entity.Document{Text: "plain text", Sensitivity: entity.SensitivityConfidential}
	c.ClassifyDocument(declared)
	assert.True(t, declared.IsConfidential())
	assert.Empty(t, declared.SensitivityMarker)

	public := &entity.Document{Text: "plain text"}
	c.ClassifyDocument(public)
	assert.Equal(t, entity.SensitivityPublic, public.Sensitivity)
}

func TestClassifier_ChunkFlagFollowsDocument(t *testing.T) {
	c := New(testMarkers)
	doc := &entity.Document{Text: "STRICTLY CONFIDENTIAL\n\nsecond page without marker"}
	c.ClassifyDocument(doc)

	chunk := &entity.Chunk{Text: "second page without marker"}
	assert.True(t, c.Classify(chunk, doc))
	assert.True(t, chunk.Sensitive)
}

func TestClassifier_Annotate(t *testing.T) {
	c := New(testMarkers)
	result := entity.RetrievalResult{Passages: []entity.Passage{
		{Chunk: entity.Chunk{ID: "a"}, Document: entity.DocumentRef{Sensitivity: entity.SensitivityConfidential}},
		{Chunk: entity.Chunk{ID: "b", Sensitive: true}, Document: entity.DocumentRef{Sensitivity: entity.SensitivityPublic}},
	}}

	got := c.Annotate(result)
	assert.True(t, got.Passages[0].Chunk.Sensitive)
	assert.False(t, got.Passages[1].Chunk.Sensitive)
}
