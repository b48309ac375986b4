// Package tfidf implements the in-process TF-IDF scoring source. The scorer
// is fit once on a catalogue snapshot and then serves read-only cosine
// similarity queries, so it is safe for concurrent use after New.
package tfidf

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/skillmatch/assessment-recommender/internal/domain"
)

// maxFeatures bounds the vocabulary to the most frequent terms so the dense
// document matrix stays small for a catalogue of a few hundred items.
const maxFeatures = 1000

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "in": {}, "is": {}, "it": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "to": {}, "with": {},
	"this": {}, "will": {}, "you": {}, "your": {},
}

// Scorer holds the fitted vocabulary, IDF values, and L2-normalized document
// vectors for the catalogue.
type Scorer struct {
	items []domain.Assessment
	vocab map[string]int
	idf   []float64
	docs  [][]float64
}

// New fits a TF-IDF scorer on the catalogue. Fitting an empty catalogue is an
// error; the caller should have rejected that earlier as an empty catalogue.
func New(items []domain.Assessment) (*Scorer, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("op=tfidf.new: %w", domain.ErrEmptyCatalogue)
	}
	s := &Scorer{items: items}
	tokenized := make([][]string, len(items))
	df := map[string]int{}
	for i, it := range items {
		toks := tokenize(assessmentDocument(it))
		tokenized[i] = toks
		seen := map[string]struct{}{}
		for _, t := range toks {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				df[t]++
			}
		}
	}
	s.vocab = buildVocabulary(df, maxFeatures)
	s.idf = make([]float64, len(s.vocab))
	n := float64(len(items))
	for term, idx := range s.vocab {
		// smoothed idf, as scikit-style vectorizers compute it
		s.idf[idx] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	s.docs = make([][]float64, len(items))
	for i, toks := range tokenized {
		s.docs[i] = s.vectorize(toks)
	}
	return s, nil
}

// Score returns cosine similarities between the query text and every
// catalogue document that shares at least one term, raw scores in [0,1].
func (s *Scorer) Score(_ domain.Context, text string) ([]domain.ScoredCandidate, error) {
	q := s.vectorize(tokenize(text))
	var out []domain.ScoredCandidate
	for i, doc := range s.docs {
		sim := dot(q, doc)
		if sim <= 0 {
			continue
		}
		out = append(out, domain.ScoredCandidate{
			ItemID:   s.items[i].ID,
			RawScore: sim,
			Source:   domain.SourceNLP,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RawScore != out[j].RawScore {
			return out[i].RawScore > out[j].RawScore
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out, nil
}

// Vectorize exposes the fitted vector space so the clustering scorer can
// reuse the same features instead of fitting its own vocabulary.
func (s *Scorer) Vectorize(text string) []float64 { return s.vectorize(tokenize(text)) }

// DocumentVectors returns the fitted catalogue vectors aligned with Items.
func (s *Scorer) DocumentVectors() [][]float64 { return s.docs }

// Items returns the catalogue snapshot this scorer was fit on.
func (s *Scorer) Items() []domain.Assessment { return s.items }

// vectorize builds a sublinear-TF, IDF-weighted, L2-normalized vector.
func (s *Scorer) vectorize(tokens []string) []float64 {
	v := make([]float64, len(s.vocab))
	for _, t := range tokens {
		if idx, ok := s.vocab[t]; ok {
			v[idx]++
		}
	}
	norm := 0.0
	for i := range v {
		if v[i] > 0 {
			v[i] = (1 + math.Log(v[i])) * s.idf[i]
			norm += v[i] * v[i]
		}
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range v {
			v[i] /= norm
		}
	}
	return v
}

// assessmentDocument flattens an assessment into one text document, in the
// same field order the catalogue ingestion uses.
func assessmentDocument(a domain.Assessment) string {
	parts := []string{a.Name, a.JobFamily, a.JobLevel, a.Description}
	parts = append(parts, a.TestTypes...)
	parts = append(parts, a.Languages...)
	return strings.Join(parts, " ")
}

// tokenize lowercases, splits on non-alphanumerics, drops stop words and
// single characters, and appends bigrams.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	uni := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		uni = append(uni, f)
	}
	out := make([]string, 0, len(uni)*2)
	out = append(out, uni...)
	for i := 0; i+1 < len(uni); i++ {
		out = append(out, uni[i]+" "+uni[i+1])
	}
	return out
}

// buildVocabulary keeps the limit most frequent terms, breaking frequency
// ties lexicographically so fitting is deterministic.
func buildVocabulary(df map[string]int, limit int) map[string]int {
	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if df[terms[i]] != df[terms[j]] {
			return df[terms[i]] > df[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}
	// index terms in sorted order for stable vector layouts
	sort.Strings(terms)
	vocab := make(map[string]int, len(terms))
	for i, t := range terms {
		vocab[t] = i
	}
	return vocab
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
