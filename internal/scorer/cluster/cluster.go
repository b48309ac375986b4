// Package cluster implements the clustering-based scoring source: catalogue
// documents are grouped with k-means over the shared TF-IDF feature space, and
// a query is scored against the members of its nearest cluster by inverse
// distance. Like the TF-IDF scorer it is fit once and then read-only.
package cluster

import (
	"fmt"
	"math"
	"sort"

	"github.com/skillmatch/assessment-recommender/internal/domain"
	"github.com/skillmatch/assessment-recommender/internal/scorer/tfidf"
)

const maxIterations = 50

// Scorer assigns catalogue items to k-means clusters in the TF-IDF space.
type Scorer struct {
	features  *tfidf.Scorer
	centroids [][]float64
	labels    []int
}

// New fits k clusters over the catalogue vectors of the given TF-IDF scorer.
// k is clamped to the number of documents. Centroid seeding is deterministic
// (evenly spaced documents), so fitting the same catalogue always yields the
// same clustering.
func New(features *tfidf.Scorer, k int) (*Scorer, error) {
	if features == nil {
		return nil, fmt.Errorf("op=cluster.new: nil feature scorer: %w", domain.ErrInvalidArgument)
	}
	docs := features.DocumentVectors()
	if len(docs) == 0 {
		return nil, fmt.Errorf("op=cluster.new: %w", domain.ErrEmptyCatalogue)
	}
	if k < 1 {
		k = 1
	}
	if k > len(docs) {
		k = len(docs)
	}

	centroids := make([][]float64, k)
	for i := 0; i < k; i++ {
		// evenly spaced seeds across the document list
		seed := docs[i*len(docs)/k]
		centroids[i] = append([]float64(nil), seed...)
	}
	labels := make([]int, len(docs))
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for d, vec := range docs {
			best := nearest(centroids, vec)
			if labels[d] != best {
				labels[d] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}
		recomputeCentroids(centroids, docs, labels)
	}
	return &Scorer{features: features, centroids: centroids, labels: labels}, nil
}

// Score assigns the query to its nearest centroid and scores that cluster's
// members by inverse Euclidean distance, 1/(1+d), so raw scores are positive
// and larger means closer.
func (s *Scorer) Score(_ domain.Context, text string) ([]domain.ScoredCandidate, error) {
	q := s.features.Vectorize(text)
	cl := nearest(s.centroids, q)
	items := s.features.Items()
	var out []domain.ScoredCandidate
	for d, label := range s.labels {
		if label != cl {
			continue
		}
		d2 := distance(q, s.features.DocumentVectors()[d])
		out = append(out, domain.ScoredCandidate{
			ItemID:   items[d].ID,
			RawScore: 1.0 / (1.0 + d2),
			Source:   domain.SourceClustering,
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

// Clusters returns the number of fitted clusters.
func (s *Scorer) Clusters() int { return len(s.centroids) }

func nearest(centroids [][]float64, vec []float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, c := range centroids {
		if d := distance(c, vec); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func distance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func recomputeCentroids(centroids [][]float64, docs [][]float64, labels []int) {
	dims := len(docs[0])
	counts := make([]int, len(centroids))
	next := make([][]float64, len(centroids))
	for i := range next {
		next[i] = make([]float64, dims)
	}
	for d, vec := range docs {
		l := labels[d]
		counts[l]++
		for i, x := range vec {
			next[l][i] += x
		}
	}
	for i := range centroids {
		if counts[i] == 0 {
			// empty cluster keeps its previous centroid
			continue
		}
		for j := range next[i] {
			next[i][j] /= float64(counts[i])
		}
		centroids[i] = next[i]
	}
}
