// Package reranker re-scores documentation search results against the
// query, improving precision over raw vector similarity alone.
package reranker

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// ErrNilContext is returned when a nil context is passed to Rerank.
var ErrNilContext = errors.New("context cannot be nil")

// Candidate is a document going into reranking, carrying its vector
// similarity score.
type Candidate struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]string
}

// RankedDocument is a candidate after reranking.
type RankedDocument struct {
	Candidate

	// Relevance is the combined score the ranking is sorted by, in [0, 1].
	Relevance float32

	// OriginalRank is the candidate's position before reranking.
	OriginalRank int
}

// Reranker re-orders search candidates by relevance to the query.
type Reranker interface {
	// Rerank returns the topK candidates sorted by descending Relevance.
	// topK <= 0 means all candidates.
	Rerank(ctx context.Context, query string, candidates []Candidate, topK int) ([]RankedDocument, error)

	// Close releases resources held by the reranker.
	Close() error
}

// Weights for combining vector similarity with lexical overlap. Keeping
// half the weight on the vector score preserves semantic matches that
// share no surface terms with the query.
const (
	vectorWeight  = 0.5
	lexicalWeight = 0.5
)

// LexicalReranker scores candidates by the fraction of query terms they
// contain, blended with the vector similarity score.
//
// It needs no model downloads or network calls, which keeps the search
// path dependency-free. Swap in a cross-encoder behind the Reranker
// interface if precision requirements grow.
type LexicalReranker struct{}

// NewLexicalReranker creates a LexicalReranker.
func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{}
}

// Rerank blends lexical term overlap with the original vector score and
// sorts descending. A query with no meaningful terms (all stopwords)
// falls back to the original vector ranking.
func (r *LexicalReranker) Rerank(ctx context.Context, query string, candidates []Candidate, topK int) ([]RankedDocument, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if topK <= 0 {
		topK = len(candidates)
	}
	if len(candidates) == 0 {
		return []RankedDocument{}, nil
	}

	queryTerms := tokenize(query)

	ranked := make([]RankedDocument, len(candidates))
	for i, c := range candidates {
		relevance := c.Score
		if len(queryTerms) > 0 {
			overlap := termOverlap(queryTerms, tokenize(c.Content))
			relevance = vectorWeight*c.Score + lexicalWeight*overlap
		}
		ranked[i] = RankedDocument{
			Candidate:    c,
			Relevance:    relevance,
			OriginalRank: i,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Relevance > ranked[j].Relevance
	})

	if topK < len(ranked) {
		ranked = ranked[:topK]
	}
	return ranked, nil
}

// Close is a no-op; the lexical reranker holds no resources.
func (r *LexicalReranker) Close() error {
	return nil
}

// stopwords excluded from term matching.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "from": {}, "as": {}, "is": {}, "was": {},
	"are": {}, "be": {}, "been": {}, "being": {}, "have": {}, "has": {},
	"had": {}, "do": {}, "does": {}, "did": {}, "will": {}, "would": {},
	"could": {}, "should": {}, "may": {}, "might": {}, "can": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "i": {}, "you": {},
	"he": {}, "she": {}, "it": {}, "we": {}, "they": {}, "what": {},
	"which": {}, "who": {}, "when": {}, "where": {}, "why": {}, "how": {},
}

// tokenize lowercases text, splits on non-identifier runes, and drops
// stopwords and very short tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
		return !alnum
	})

	terms := fields[:0]
	for _, f := range fields {
		if len(f) <= 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

// termOverlap returns the fraction of unique query terms present in the
// document, in [0, 1].
func termOverlap(queryTerms, docTerms []string) float32 {
	if len(queryTerms) == 0 {
		return 0
	}

	docSet := make(map[string]struct{}, len(docTerms))
	for _, t := range docTerms {
		docSet[t] = struct{}{}
	}

	seen := make(map[string]struct{}, len(queryTerms))
	unique := 0
	matched := 0
	for _, t := range queryTerms {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		unique++
		if _, ok := docSet[t]; ok {
			matched++
		}
	}
	return float32(matched) / float32(unique)
}
