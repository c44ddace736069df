// Package document defines the corpus's unit of work — Document — and
// the deterministic derivations (canonical search text, token set) the
// rest of the engine relies on being pure functions of a document's
// fields.
package document

import (
	"sort"
	"strings"
	"time"

	"github.com/corvidsearch/retrieval/core"
)

// Document is a single retrievable item: a stable id, free-form content,
// and a bag of filterable attributes plus an explicit skills/tags list
// that feeds the token set used by LSH and BM25 alongside the content
// itself.
type Document struct {
	ID core.DocID

	// Content is the body text search is performed over (e.g. a résumé
	// or email body). Required for a non-trivial token set / BM25
	// signal, but a document with empty Content is still valid — it
	// simply scores 0 lexically and contributes no tokens from this
	// field.
	Content string

	// Skills and Tags are salient, already-segmented terms (e.g.
	// "python", "aws") folded into the token set verbatim (after
	// normalization) rather than split further.
	Skills []string
	Tags   []string

	// Seniority is a single categorical attribute, e.g. "senior".
	Seniority string

	// ExperienceYears backs the min_experience filter.
	ExperienceYears int

	// PostedAt backs the date_range filter.
	PostedAt time.Time

	// Metadata carries any additional hydration fields the caller wants
	// echoed back on SearchResult; it is opaque to filtering.
	Metadata map[string]string
}

// CanonicalText returns the deterministic search text for the document:
// content, skills, tags and seniority, joined by single spaces and
// lowercased.
// Two documents with identical fields always produce the same canonical
// text.
func (d Document) CanonicalText() string {
	parts := make([]string, 0, 2+len(d.Skills)+len(d.Tags))
	if d.Content != "" {
		parts = append(parts, d.Content)
	}
	parts = append(parts, d.Skills...)
	parts = append(parts, d.Tags...)
	if d.Seniority != "" {
		parts = append(parts, d.Seniority)
	}

	return strings.ToLower(strings.Join(parts, " "))
}

// TokenSet returns the deduplicated, normalized set of tokens drawn from
// the document's content, skills, and tags, as required by §3's "Token
// set" definition.
func (d Document) TokenSet() map[string]struct{} {
	set := make(map[string]struct{})

	for _, tok := range Tokenize(d.Content) {
		set[tok] = struct{}{}
	}
	for _, s := range d.Skills {
		if tok := normalizeTerm(s); tok != "" {
			set[tok] = struct{}{}
		}
	}
	for _, t := range d.Tags {
		if tok := normalizeTerm(t); tok != "" {
			set[tok] = struct{}{}
		}
	}

	return set
}

// SortedTokens returns TokenSet's contents as a sorted slice, useful for
// deterministic test assertions and fingerprinting.
func (d Document) SortedTokens() []string {
	set := d.TokenSet()
	out := make([]string, 0, len(set))
	for tok := range set {
		out = append(out, tok)
	}
	sort.Strings(out)

	return out
}

// Tokenize lowercases s, splits on anything that is not a letter or
// digit, and drops empty tokens. It is the single tokenization function
// shared by document derivation and query-time tokenization so that the
// two sides of a match always agree on what a "token" is.
func Tokenize(s string) []string {
	s = strings.ToLower(s)

	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}

	for _, r := range s {
		if isTokenRune(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

func isTokenRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	default:
		return false
	}
}

func normalizeTerm(s string) string {
	toks := Tokenize(s)
	if len(toks) == 0 {
		return ""
	}

	return strings.Join(toks, "")
}
