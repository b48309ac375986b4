// Package config provides configuration loading utilities for source weights.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/skillmatch/assessment-recommender/internal/domain"
	"github.com/skillmatch/assessment-recommender/internal/recommend"
)

// weightsYAML represents the structure of a weights override file. Pointer
// fields distinguish an explicit 0 from an absent key: the file replaces all
// four weights at once, so a partial file is a configuration error rather
// than a silent zero-fill.
type weightsYAML struct {
	RAG        *float64 `yaml:"rag"`
	Gemini     *float64 `yaml:"gemini"`
	NLP        *float64 `yaml:"nlp"`
	Clustering *float64 `yaml:"clustering"`
}

// HybridWeights resolves the hybrid blend weights: the WEIGHTS_FILE override
// when set, otherwise the WEIGHT_* environment values. The result is validated
// (non-negative, non-zero sum) so a bad deployment fails at startup rather
// than per request.
func (c Config) HybridWeights() (recommend.Weights, error) {
	w := recommend.Weights{
		domain.SourceRAG:        c.WeightRAG,
		domain.SourceGemini:     c.WeightGemini,
		domain.SourceNLP:        c.WeightNLP,
		domain.SourceClustering: c.WeightClustering,
	}
	if c.WeightsFile != "" {
		loaded, err := loadWeightsFile(c.WeightsFile)
		if err != nil {
			return nil, err
		}
		w = loaded
	}
	if _, err := w.Normalized(); err != nil {
		return nil, err
	}
	return w, nil
}

func loadWeightsFile(path string) (recommend.Weights, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("op=config.weights: resolve %s: %w", path, err)
	}
	data, err := os.ReadFile(absPath) //nolint:gosec // path comes from deployment config, not user input
	if err != nil {
		return nil, fmt.Errorf("op=config.weights: read %s: %w", absPath, err)
	}
	var y weightsYAML
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("op=config.weights: parse %s: %w", absPath, err)
	}
	for key, v := range map[string]*float64{
		"rag": y.RAG, "gemini": y.Gemini, "nlp": y.NLP, "clustering": y.Clustering,
	} {
		if v == nil {
			return nil, fmt.Errorf("op=config.weights: %s missing key %q: %w", absPath, key, domain.ErrInvalidWeights)
		}
	}
	return recommend.Weights{
		domain.SourceRAG:        *y.RAG,
		domain.SourceGemini:     *y.Gemini,
		domain.SourceNLP:        *y.NLP,
		domain.SourceClustering: *y.Clustering,
	}, nil
}
