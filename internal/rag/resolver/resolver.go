// Package resolver orders retrieved passages so that information from
// overriding documents comes first.
package resolver

import (
	"regexp"
	"sort"
	"strings"

	"github.com/futig/doctalk-backend/internal/entity"
	"github.com/futig/doctalk-backend/internal/rag/terms"
)

const (
	defaultMinSharedTerms = 2
	maxFactKeyTokens      = 6
)

// factLine matches "Key: Value", "Key = Value" and "Key - Value" lines, with
// optional list bullets or heading marks
var factLine = regexp.MustCompile(`^\s*(?:[-*•]\s+|#+\s*)?(\p{L}[^:=|]{0,58}?)\s*(?::|=|\s-\s|\s–\s)\s*(.+?)\s*$`)

type Config struct {
	OverrideCues       []string
	AuthoritativeTypes []string
	MinSharedTerms     int
}

type Resolver struct {
	cues          []cue
	authoritative map[entity.DocumentType]bool
	minShared     int
}

type cue struct {
	original string
	tokens   string
}

// features are the lexical signals of one passage
type features struct {
	terms map[string]struct{}
	facts map[string]string
	cues  []string
}

func New(cfg Config) *Resolver {
	r := &Resolver{
		authoritative: make(map[entity.DocumentType]bool),
		minShared:     cfg.MinSharedTerms,
	}
	if r.minShared <= 0 {
		r.minShared = defaultMinSharedTerms
	}

	for _, c := range cfg.OverrideCues {
		tokens := strings.Join(terms.Tokens(c), " ")
		if tokens == "" {
			continue
		}
		r.cues = append(r.cues, cue{original: strings.TrimSpace(c), tokens: tokens})
	}
	for _, t := range cfg.AuthoritativeTypes {
		if dt, ok := entity.ParseDocumentType(t); ok && dt != "" {
			r.authoritative[dt] = true
		}
	}

	return r
}

// Resolve ranks passages. Passages from different documents that assert
// conflicting facts form groups, and in each group the passages of the most
// authoritative document are moved to the front. Everything else keeps
// retrieval order. Confidential passages never join a group, so no public
// passage is marked because of them.
func (r *Resolver) Resolve(result entity.RetrievalResult) []entity.RankedPassage {
	n := len(result.Passages)
	ranked := make([]entity.RankedPassage, n)
	if n == 0 {
		return ranked
	}

	feats := make([]features, n)
	for i, p := range result.Passages {
		feats[i] = r.extract(p.Chunk.Text)
		ranked[i] = entity.RankedPassage{Passage: p, Cues: feats[i].cues}
	}

	groups := newUnionFind(n)
	inConflict := make([]bool, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if result.Passages[i].Document.ID == result.Passages[j].Document.ID {
				continue
			}
			if confidential(result.Passages[i]) || confidential(result.Passages[j]) {
				continue
			}
			if r.conflict(feats[i], feats[j]) {
				groups.union(i, j)
				inConflict[i], inConflict[j] = true, true
			}
		}
	}

	members := make(map[int][]int)
	var roots []int
	for i := 0; i < n; i++ {
		if !inConflict[i] {
			continue
		}
		root := groups.find(i)
		if _, ok := members[root]; !ok {
			roots = append(roots, root)
		}
		members[root] = append(members[root], i)
	}

	front := make([]int, 0, n)
	placed := make([]bool, n)

	// roots are appended in order of first appearance
	for _, root := range roots {
		group := members[root]
		byAuthority := append([]int(nil), group...)
		sort.SliceStable(byAuthority, func(a, b int) bool {
			return r.outranks(result.Passages[byAuthority[a]], result.Passages[byAuthority[b]])
		})

		winner := result.Passages[byAuthority[0]]
		for _, i := range group {
			if result.Passages[i].Document.ID == winner.Document.ID {
				ranked[i].Authoritative = true
				front = append(front, i)
				placed[i] = true
				continue
			}
			ranked[i].Superseded = true
			ranked[i].SupersededBy = winner.Chunk.ID
		}
	}

	order := front
	for i := 0; i < n; i++ {
		if !placed[i] {
			order = append(order, i)
		}
	}

	out := make([]entity.RankedPassage, 0, n)
	for rank, i := range order {
		rp := ranked[i]
		rp.Rank = rank + 1
		out = append(out, rp)
	}
	return out
}

func confidential(p entity.Passage) bool {
	return p.Chunk.Sensitive || p.Document.IsConfidential()
}

// outranks reports whether a is more authoritative than b. Ties keep the
// caller's order.
func (r *Resolver) outranks(a, b entity.Passage) bool {
	aAuth, bAuth := r.authoritative[a.Document.Type], r.authoritative[b.Document.Type]
	if aAuth != bAuth {
		return aAuth
	}
	if !a.Document.UploadedAt.Equal(b.Document.UploadedAt) {
		return a.Document.UploadedAt.After(b.Document.UploadedAt)
	}
	return a.Document.Seq > b.Document.Seq
}

func (r *Resolver) conflict(a, b features) bool {
	for key, av := range a.facts {
		if bv, ok := b.facts[key]; ok && bv != av {
			return true
		}
	}

	if len(a.cues) == 0 && len(b.cues) == 0 {
		return false
	}

	shared := 0
	for t := range a.terms {
		if _, ok := b.terms[t]; ok {
			shared++
			if shared >= r.minShared {
				return true
			}
		}
	}
	return false
}

func (r *Resolver) extract(text string) features {
	f := features{
		terms: terms.Content(text),
		facts: make(map[string]string),
	}

	padded := " " + strings.Join(terms.Tokens(text), " ") + " "
	for _, c := range r.cues {
		if strings.Contains(padded, " "+c.tokens+" ") {
			f.cues = append(f.cues, c.original)
		}
	}

	for _, line := range strings.Split(text, "\n") {
		key, value, ok := parseFact(line)
		if !ok {
			continue
		}
		if _, seen := f.facts[key]; !seen {
			f.facts[key] = value
		}
	}

	return f
}

func parseFact(line string) (string, string, bool) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "|") {
		return "", "", false
	}

	m := factLine.FindStringSubmatch(line)
	if m == nil || strings.HasPrefix(m[2], "//") {
		return "", "", false
	}

	keyTokens := terms.Tokens(m[1])
	if len(keyTokens) == 0 || len(keyTokens) > maxFactKeyTokens {
		return "", "", false
	}
	value := strings.Join(terms.Tokens(m[2]), " ")
	if value == "" {
		return "", "", false
	}

	return strings.Join(keyTokens, " "), value, true
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

// union keeps the smaller index as root, so roots follow retrieval order
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}
