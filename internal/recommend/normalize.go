// Package recommend implements the score normalization, weighted merge, and
// hard-filter stages that combine per-source candidate lists into one ranked
// recommendation list. Everything here is pure and request-scoped.
package recommend

import (
	"math"

	"github.com/skillmatch/assessment-recommender/internal/domain"
)

// Normalize rescales a single source's raw scores onto [0,1] with linear
// min-max rescaling, preserving relative order. A uniform list (including a
// single element) normalizes to 1.0 everywhere. Non-finite raw scores are
// excluded from the min/max computation and normalized to 0.
func Normalize(list []domain.ScoredCandidate) []domain.NormalizedCandidate {
	if len(list) == 0 {
		return nil
	}
	minV := math.Inf(1)
	maxV := math.Inf(-1)
	finite := 0
	for _, c := range list {
		if !isFinite(c.RawScore) {
			continue
		}
		finite++
		if c.RawScore < minV {
			minV = c.RawScore
		}
		if c.RawScore > maxV {
			maxV = c.RawScore
		}
	}
	out := make([]domain.NormalizedCandidate, 0, len(list))
	for _, c := range list {
		n := domain.NormalizedCandidate{ScoredCandidate: c}
		switch {
		case !isFinite(c.RawScore):
			n.NormalizedScore = 0
		case finite == 0 || maxV == minV:
			// Uniform scores carry no ordering information; treat the whole
			// list as uniformly maximally relevant instead of dividing by zero.
			n.NormalizedScore = 1.0
		default:
			n.NormalizedScore = (c.RawScore - minV) / (maxV - minV)
		}
		out = append(out, n)
	}
	return out
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
