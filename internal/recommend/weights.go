package recommend

import (
	"fmt"

	"github.com/skillmatch/assessment-recommender/internal/domain"
)

// Weights maps each scoring source to its non-negative blend weight.
type Weights map[domain.Source]float64

// DefaultWeights returns the tuned hybrid blend. The values are an empirical
// default, not a validated optimum; deployments override them via config.
func DefaultWeights() Weights {
	return Weights{
		domain.SourceRAG:        0.4,
		domain.SourceGemini:     0.3,
		domain.SourceNLP:        0.2,
		domain.SourceClustering: 0.1,
	}
}

// Normalized returns a copy scaled so the weights sum to 1.0. Only relative
// weights matter for ranking, so any positive scaling of the input yields the
// same result. A negative weight, an unknown source, or an all-zero sum is a
// configuration error.
func (w Weights) Normalized() (Weights, error) {
	if len(w) == 0 {
		return nil, fmt.Errorf("op=weights.normalize: empty: %w", domain.ErrInvalidWeights)
	}
	known := map[domain.Source]bool{}
	for _, s := range domain.Sources() {
		known[s] = true
	}
	sum := 0.0
	for src, v := range w {
		if !known[src] {
			return nil, fmt.Errorf("op=weights.normalize: unknown source %q: %w", src, domain.ErrInvalidWeights)
		}
		if v < 0 {
			return nil, fmt.Errorf("op=weights.normalize: negative weight for %q: %w", src, domain.ErrInvalidWeights)
		}
		sum += v
	}
	if sum == 0 {
		return nil, fmt.Errorf("op=weights.normalize: weights sum to zero: %w", domain.ErrInvalidWeights)
	}
	out := make(Weights, len(w))
	for src, v := range w {
		out[src] = v / sum
	}
	return out, nil
}

// ActiveSources returns the sources with a strictly positive weight, in the
// fixed domain ordering.
func (w Weights) ActiveSources() []domain.Source {
	var out []domain.Source
	for _, s := range domain.Sources() {
		if w[s] > 0 {
			out = append(out, s)
		}
	}
	return out
}

// PresetFor returns the weight preset for an engine selection: hybrid blends
// all sources with the configured hybrid weights; a single-engine selection is
// the degenerate preset with that source's weight at 1 and the rest at 0.
func PresetFor(engine domain.Engine, hybrid Weights) (Weights, error) {
	single := func(s domain.Source) Weights { return Weights{s: 1.0} }
	switch engine {
	case domain.EngineHybrid:
		return hybrid.Normalized()
	case domain.EngineRAG:
		return single(domain.SourceRAG), nil
	case domain.EngineGemini:
		return single(domain.SourceGemini), nil
	case domain.EngineNLP:
		return single(domain.SourceNLP), nil
	case domain.EngineClustering:
		return single(domain.SourceClustering), nil
	}
	return nil, fmt.Errorf("op=weights.preset: unknown engine %q: %w", engine, domain.ErrInvalidArgument)
}
