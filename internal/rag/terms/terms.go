// Package terms tokenises text for lexical matching.
package terms

import (
	"strings"
	"unicode"
)

// MinContentLength is the shortest token counted as a content term
const MinContentLength = 3

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a about above after again against all am an and any are as at
		be because been before being below between both but by can could did do does doing down during
		each few for from further had has have having he her here hers him his how i if in into is it its
		itself just me more most my no nor not now of off on once only or other our ours out over own same
		she should so some such than that the their theirs them then there these they this those through
		to too under until up very was we were what when where which while who whom why will with would
		you your yours yes ok please tell know`) {
		stopwords[w] = struct{}{}
	}
}

func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}

// Tokens splits text into lowercase runs of letters and digits
func Tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Keywords returns tokens that are not stopwords, in text order
func Keywords(text string) []string {
	tokens := Tokens(text)
	out := tokens[:0]
	for _, t := range tokens {
		if !IsStopword(t) {
			out = append(out, t)
		}
	}
	return out
}

// Content returns the distinct content terms of text: keywords of at least
// MinContentLength runes
func Content(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range Keywords(text) {
		if len([]rune(t)) >= MinContentLength {
			out[t] = struct{}{}
		}
	}
	return out
}

// Normalize lowercases text and collapses whitespace runs into one space
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
