// Package index keeps per-session vectors in process memory and answers
// exact nearest-neighbour queries.
package index

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/futig/doctalk-backend/internal/entity"
)

// Metric is the similarity function used for search
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricDot    Metric = "dot"
)

func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine, "":
		return MetricCosine, nil
	case MetricDot:
		return MetricDot, nil
	default:
		return "", fmt.Errorf("%w: unknown similarity metric %q", entity.ErrInvalidParameter, s)
	}
}

// Store is the registry of session indexes. The registry lock only guards
// the map, each session has its own lock for inserts and searches.
type Store struct {
	metric    Metric
	dimension int

	mu       sync.RWMutex
	sessions map[string]*bucket
}

type bucket struct {
	mu        sync.RWMutex
	dropped   bool
	dimension int
	entries   []entry
	documents map[string]entity.DocumentRef
}

type entry struct {
	chunk entity.Chunk
	norm  float64
}

// New creates a store. A zero dimension lets the first insert of each
// session fix the dimension.
func New(metric Metric, dimension int) *Store {
	return &Store{
		metric:    metric,
		dimension: dimension,
		sessions:  make(map[string]*bucket),
	}
}

func (s *Store) Metric() Metric { return s.metric }

// Dimension is the configured vector size, zero when each session fixes its own
func (s *Store) Dimension() int { return s.dimension }

// Insert adds all chunks of one document atomically. Nothing is indexed
// when any vector has the wrong dimension.
func (s *Store) Insert(sessionID string, doc entity.DocumentRef, chunks []entity.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for {
		b := s.getOrCreate(sessionID)

		b.mu.Lock()
		if b.dropped {
			// lost a race with Drop, the next lookup creates a fresh bucket
			b.mu.Unlock()
			continue
		}
		err := b.insert(doc, chunks)
		b.mu.Unlock()

		return err
	}
}

func (b *bucket) insert(doc entity.DocumentRef, chunks []entity.Chunk) error {
	dim := b.dimension
	if dim == 0 {
		dim = len(chunks[0].Vector)
	}
	if dim == 0 {
		return fmt.Errorf("%w: chunk %s has no vector", entity.ErrDimensionMismatch, chunks[0].ID)
	}

	prepared := make([]entry, 0, len(chunks))
	for _, ch := range chunks {
		if len(ch.Vector) != dim {
			return fmt.Errorf("%w: chunk %s has %d dimensions, index expects %d",
				entity.ErrDimensionMismatch, ch.ID, len(ch.Vector), dim)
		}
		if ch.DocumentID != doc.ID {
			return fmt.Errorf("%w: chunk %s belongs to document %s, not %s",
				entity.ErrIngestion, ch.ID, ch.DocumentID, doc.ID)
		}

		ch.Sensitive = doc.IsConfidential()
		ch.Vector = append([]float32(nil), ch.Vector...)
		prepared = append(prepared, entry{chunk: ch, norm: norm(ch.Vector)})
	}

	b.dimension = dim
	b.entries = append(b.entries, prepared...)
	b.documents[doc.ID] = doc

	return nil
}

// Search returns up to k passages ordered by descending score. Ties are
// broken by document upload order, then chunk ordinal.
func (s *Store) Search(sessionID string, query []float32, k int) (entity.RetrievalResult, error) {
	result := entity.RetrievalResult{Passages: []entity.Passage{}}
	if k <= 0 {
		return result, nil
	}

	b := s.get(sessionID)
	if b == nil {
		return result, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.entries) == 0 {
		return result, nil
	}
	if len(query) != b.dimension {
		return result, fmt.Errorf("%w: query has %d dimensions, index has %d",
			entity.ErrDimensionMismatch, len(query), b.dimension)
	}

	qnorm := norm(query)
	passages := make([]entity.Passage, 0, len(b.entries))
	for _, e := range b.entries {
		passages = append(passages, entity.Passage{
			Chunk:    e.chunk,
			Score:    s.score(query, qnorm, e),
			Document: b.documents[e.chunk.DocumentID],
		})
	}

	sort.SliceStable(passages, func(i, j int) bool {
		pi, pj := passages[i], passages[j]
		if pi.Score != pj.Score {
			return pi.Score > pj.Score
		}
		if pi.Document.Seq != pj.Document.Seq {
			return pi.Document.Seq < pj.Document.Seq
		}
		return pi.Chunk.Ordinal < pj.Chunk.Ordinal
	})

	if k < len(passages) {
		passages = passages[:k]
	}
	result.Passages = passages

	return result, nil
}

// Drop removes the session index, dropping an unknown session is a no-op
func (s *Store) Drop(sessionID string) {
	s.mu.Lock()
	b, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return
	}

	// wait for in-flight searches, then release vectors
	b.mu.Lock()
	b.dropped = true
	b.entries = nil
	b.documents = nil
	b.mu.Unlock()
}

// DropAll removes every session index
func (s *Store) DropAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Drop(id)
	}
}

// Len returns the number of chunks indexed for a session
func (s *Store) Len(sessionID string) int {
	b := s.get(sessionID)
	if b == nil {
		return 0
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Sessions returns the number of sessions with an index
func (s *Store) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) get(sessionID string) *bucket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}

func (s *Store) getOrCreate(sessionID string) *bucket {
	if b := s.get(sessionID); b != nil {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if b, ok := s.sessions[sessionID]; ok {
		return b
	}
	b := &bucket{
		dimension: s.dimension,
		documents: make(map[string]entity.DocumentRef),
	}
	s.sessions[sessionID] = b
	return b
}

func (s *Store) score(query []float32, qnorm float64, e entry) float64 {
	dot := 0.0
	for i, v := range query {
		dot += float64(v) * float64(e.chunk.Vector[i])
	}

	if s.metric == MetricDot {
		return dot
	}
	if qnorm == 0 || e.norm == 0 {
		return 0
	}
	return dot / (qnorm * e.norm)
}

func norm(v []float32) float64 {
	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
