// Package similarity provides the token-set primitives shared by the graph
// builder and the matcher: tokenization, stop-word stripping, and Jaccard.
package similarity

import (
	"strings"
	"unicode"
)

// Set is a set of normalized tokens or labels.
type Set map[string]bool

// minTokenLen drops one-letter fragments left after punctuation splitting.
const minTokenLen = 2

// Tokens splits text into lower-cased tokens, dropping stop words and short fragments.
func Tokens(text string) Set {
	set := make(Set)
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, f := range fields {
		if len(f) < minTokenLen || stopWords[f] {
			continue
		}
		set[f] = true
	}
	return set
}

// Labels builds a set from categories or tags, lower-cased and trimmed.
func Labels(labels ...string) Set {
	set := make(Set, len(labels))
	for _, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		if l != "" {
			set[l] = true
		}
	}
	return set
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Two empty sets have similarity 0:
// absence of content is not evidence of a relationship.
func Jaccard(a, b Set) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Intersects reports whether a and b share at least one element.
func Intersects(a, b Set) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for t := range a {
		if b[t] {
			return true
		}
	}
	return false
}

// Union merges the given sets into a new set.
func Union(sets ...Set) Set {
	out := make(Set)
	for _, s := range sets {
		for t := range s {
			out[t] = true
		}
	}
	return out
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "from": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "being": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "must": true,
	"this": true, "that": true, "these": true, "those": true,
	"it": true, "its": true, "as": true, "if": true, "then": true,
	"not": true, "no": true, "so": true, "than": true, "too": true,
	"can": true, "into": true, "about": true, "how": true, "what": true,
	"when": true, "where": true, "which": true, "who": true, "why": true,
	"you": true, "your": true, "we": true, "our": true, "they": true,
}

// IsStopWord reports whether word is ignored by Tokens.
func IsStopWord(word string) bool {
	return stopWords[word]
}
