package entity

// Passage is a retrieved chunk with its similarity score and source document
type Passage struct {
	Chunk    Chunk
	Score    float64
	Document DocumentRef
}

// RetrievalResult holds passages in descending score order
type RetrievalResult struct {
	Passages []Passage
}

func (r RetrievalResult) Len() int {
	return len(r.Passages)
}

// RankedPassage is a passage after conflict resolution
type RankedPassage struct {
	Passage
	Rank          int
	Authoritative bool
	Superseded    bool
	SupersededBy  string
	Cues          []string
}
