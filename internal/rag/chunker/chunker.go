// Package chunker splits document text into overlapping windows that can be
// joined back into the original text.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/google/uuid"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// AtomicFunc reports whether a line must never be split across chunks
type AtomicFunc func(line string) bool

// TableRow matches pipe table rows such as "| Alice | Backend |"
func TableRow(line string) bool {
	t := strings.TrimSpace(line)
	return len(t) >= 2 && strings.HasPrefix(t, "|") && strings.HasSuffix(t, "|")
}

type Chunker struct {
	chunkSize int
	overlap   int
	atomic    AtomicFunc
}

type Option func(*Chunker)

// WithChunkSize sets the maximum window size in bytes
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		c.chunkSize = size
	}
}

// WithOverlap sets how many bytes consecutive windows share
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

// WithAtomic replaces the atomic line matcher, nil disables atomic lines
func WithAtomic(fn AtomicFunc) Option {
	return func(c *Chunker) {
		c.atomic = fn
	}
}

func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		atomic:    TableRow,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.chunkSize <= 0 {
		c.chunkSize = DefaultChunkSize
	}
	if c.overlap < 0 {
		c.overlap = 0
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

func (c *Chunker) ChunkSize() int { return c.chunkSize }
func (c *Chunker) Overlap() int   { return c.overlap }

// Chunk splits the document text. Vectors are left empty and the
// sensitivity flag is copied from the document.
func (c *Chunker) Chunk(doc *entity.Document) ([]entity.Chunk, error) {
	if !utf8.ValidString(doc.Text) {
		return nil, entity.ErrUnparseableText
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, entity.ErrEmptyDocument
	}

	windows := c.split(doc.Text)
	chunks := make([]entity.Chunk, 0, len(windows))
	for i, w := range windows {
		chunks = append(chunks, entity.Chunk{
			ID:         ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Ordinal:    i,
			Start:      w.start,
			End:        w.end,
			Text:       doc.Text[w.start:w.end],
			Sensitive:  doc.IsConfidential(),
		})
	}

	return chunks, nil
}

// ChunkID is stable for a document and ordinal
func ChunkID(documentID string, ordinal int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d", documentID, ordinal))).String()
}

// Reconstruct joins chunks of one document dropping the overlapping parts
func Reconstruct(chunks []entity.Chunk) string {
	var b strings.Builder
	pos := 0
	for _, ch := range chunks {
		if ch.End <= pos {
			continue
		}
		skip := pos - ch.Start
		if skip < 0 {
			skip = 0
		}
		b.WriteString(ch.Text[skip:])
		pos = ch.End
	}
	return b.String()
}

type window struct {
	start, end int
}

func (c *Chunker) split(text string) []window {
	n := len(text)
	spans := c.atomicSpans(text)

	var out []window
	start := 0
	for {
		end := start + c.chunkSize
		if end >= n {
			return append(out, window{start: start, end: n})
		}

		end = c.adjustEnd(text, spans, start, end)
		out = append(out, window{start: start, end: end})
		start = c.nextStart(text, spans, start, end)
	}
}

// adjustEnd moves a window end back to a line break, then to the start of an
// atomic line it would cut, then to whitespace
func (c *Chunker) adjustEnd(text string, spans []window, start, end int) int {
	end = runeFloor(text, start, end)

	half := start + c.chunkSize/2
	if half >= end {
		half = start
	}

	if i := strings.LastIndexByte(text[half:end], '\n'); i >= 0 && half+i+1 > start {
		return half + i + 1
	}

	if a, ok := insideSpan(spans, end); ok {
		if a > start {
			return a
		}
		// the atomic line alone exceeds the window, it has to be cut
		return end
	}

	if i := strings.LastIndexAny(text[half:end], " \t"); i >= 0 && half+i+1 > start {
		cand := half + i + 1
		if _, ok := insideSpan(spans, cand); !ok {
			return cand
		}
	}

	return end
}

func (c *Chunker) nextStart(text string, spans []window, start, end int) int {
	if c.overlap == 0 {
		return end
	}

	next := end - c.overlap
	if next <= start {
		return end
	}
	next = runeFloor(text, start, next)

	if a, ok := insideSpan(spans, next); ok {
		if a <= start {
			return end
		}
		next = a
	}

	return next
}

func (c *Chunker) atomicSpans(text string) []window {
	if c.atomic == nil {
		return nil
	}

	var spans []window
	lineStart := 0
	for lineStart < len(text) {
		lineEnd := strings.IndexByte(text[lineStart:], '\n')
		if lineEnd < 0 {
			lineEnd = len(text)
		} else {
			lineEnd += lineStart
		}

		if c.atomic(text[lineStart:lineEnd]) {
			spans = append(spans, window{start: lineStart, end: lineEnd})
		}
		lineStart = lineEnd + 1
	}

	return spans
}

// insideSpan returns the start of the span strictly containing pos
func insideSpan(spans []window, pos int) (int, bool) {
	for _, s := range spans {
		if s.start >= pos {
			break
		}
		if pos < s.end {
			return s.start, true
		}
	}
	return 0, false
}

// runeFloor moves pos back to a rune boundary without crossing floor
func runeFloor(text string, floor, pos int) int {
	for pos > floor && pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos--
	}
	if pos == floor {
		// window smaller than one rune, move forward instead
		pos++
		for pos < len(text) && !utf8.RuneStart(text[pos]) {
			pos++
		}
	}
	return pos
}
