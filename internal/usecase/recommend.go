// Package usecase contains application business logic services.
package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skillmatch/assessment-recommender/internal/adapter/observability"
	"github.com/skillmatch/assessment-recommender/internal/domain"
	obsctx "github.com/skillmatch/assessment-recommender/internal/observability"
	"github.com/skillmatch/assessment-recommender/internal/recommend"
)

// RecommendService orchestrates one recommendation request: fan out to the
// scoring sources selected by the engine, normalize, merge, filter, record.
type RecommendService struct {
	Catalogue domain.CatalogueRepository
	History   domain.HistoryRepository
	Embedder  domain.Embedder
	Vectors   domain.VectorStore
	LLM       domain.LLMScorer
	Scorers   map[domain.Source]domain.TextScorer
	Cache     domain.ResponseCache
	Events    domain.EventPublisher

	HybridWeights recommend.Weights
	SourceTimeout time.Duration
	VectorTopK    int
	CacheTTL      time.Duration
}

// RecommendedItem is one entry of the final response, a ranked assessment
// enriched with catalogue metadata.
type RecommendedItem struct {
	Rank            int                       `json:"rank"`
	ID              string                    `json:"id"`
	Name            string                    `json:"name"`
	URL             string                    `json:"url"`
	TestTypes       []string                  `json:"test_types"`
	DurationMinutes int                       `json:"duration_minutes"`
	RemoteCapable   bool                      `json:"remote_capable"`
	Adaptive        bool                      `json:"adaptive"`
	Languages       []string                  `json:"languages"`
	Score           float64                   `json:"score"`
	PerSourceScores map[domain.Source]float64 `json:"per_source_scores"`
	Explanation     string                    `json:"explanation,omitempty"`
}

// RecommendResult is the service-level response for one request.
type RecommendResult struct {
	Engine    domain.Engine     `json:"engine"`
	Items     []RecommendedItem `json:"items"`
	FromCache bool              `json:"-"`
}

// sourceOutcome is one source's contribution after the fan-out.
type sourceOutcome struct {
	source     domain.Source
	candidates []domain.ScoredCandidate
	err        error
}

// Recommend runs the full pipeline for an already-resolved query text.
func (s RecommendService) Recommend(ctx domain.Context, q domain.RecommendQuery) (RecommendResult, error) {
	lg := obsctx.LoggerFromContext(ctx)
	if q.Text == "" {
		return RecommendResult{}, fmt.Errorf("%w: query text required", domain.ErrInvalidArgument)
	}
	if err := recommend.ValidateConstraints(q.Constraints); err != nil {
		return RecommendResult{}, err
	}
	q.Constraints.RequestedCount = recommend.ClampCount(q.Constraints.RequestedCount)

	weights, err := recommend.PresetFor(q.Engine, s.HybridWeights)
	if err != nil {
		return RecommendResult{}, err
	}

	key := fingerprint(q)
	if s.Cache != nil {
		if body, ok, err := s.Cache.Get(ctx, key); err != nil {
			observability.CacheHitsTotal.WithLabelValues("error").Inc()
			lg.Warn("response cache lookup failed", slog.Any("error", err))
		} else if ok {
			var cached RecommendResult
			if err := json.Unmarshal(body, &cached); err == nil {
				observability.CacheHitsTotal.WithLabelValues("hit").Inc()
				cached.FromCache = true
				return cached, nil
			}
			lg.Warn("response cache entry corrupt, treating as miss", slog.String("key", key))
		} else {
			observability.CacheHitsTotal.WithLabelValues("miss").Inc()
		}
	}

	catalogue, err := s.Catalogue.GetAll(ctx)
	if err != nil {
		return RecommendResult{}, fmt.Errorf("op=recommend.catalogue: %w", err)
	}
	if len(catalogue) == 0 {
		return RecommendResult{}, domain.ErrEmptyCatalogue
	}

	bySource, ok := s.fanOut(ctx, q.Text, catalogue, weights.ActiveSources())
	if !ok {
		return RecommendResult{}, domain.ErrNoSourcesAvailable
	}

	normalized := make(map[domain.Source][]domain.NormalizedCandidate, len(bySource))
	union := 0
	for src, list := range bySource {
		normalized[src] = recommend.Normalize(list)
		union += len(list)
	}
	observability.MergedCandidates.Observe(float64(union))

	merged, err := recommend.Merge(normalized, weights)
	if err != nil {
		return RecommendResult{}, err
	}

	byID := make(map[string]domain.Assessment, len(catalogue))
	for _, a := range catalogue {
		byID[a.ID] = a
	}
	filtered, err := recommend.Filter(merged, byID, q.Constraints)
	if err != nil {
		return RecommendResult{}, err
	}

	explanations := explanationIndex(bySource[domain.SourceGemini])
	items := make([]RecommendedItem, 0, len(filtered))
	for _, m := range filtered {
		a := byID[m.ItemID]
		items = append(items, RecommendedItem{
			Rank:            m.Rank,
			ID:              a.ID,
			Name:            a.Name,
			URL:             a.URL,
			TestTypes:       a.TestTypes,
			DurationMinutes: a.DurationMinutes,
			RemoteCapable:   a.RemoteCapable,
			Adaptive:        a.Adaptive,
			Languages:       a.Languages,
			Score:           m.FinalScore,
			PerSourceScores: m.PerSourceScores,
			Explanation:     explanations[m.ItemID],
		})
	}
	res := RecommendResult{Engine: q.Engine, Items: items}
	observability.RecommendationsTotal.WithLabelValues(string(q.Engine)).Inc()

	s.record(ctx, q, res)
	if s.Cache != nil {
		if body, err := json.Marshal(res); err == nil {
			if err := s.Cache.Set(ctx, key, body, s.CacheTTL); err != nil {
				lg.Warn("response cache write failed", slog.Any("error", err))
			}
		}
	}
	return res, nil
}

// fanOut queries every active source concurrently with a per-source timeout.
// A failed or timed-out source contributes an empty list; ok is false only
// when every source failed.
func (s RecommendService) fanOut(ctx domain.Context, text string, catalogue []domain.Assessment, sources []domain.Source) (map[domain.Source][]domain.ScoredCandidate, bool) {
	lg := obsctx.LoggerFromContext(ctx)
	outcomes := make(chan sourceOutcome, len(sources))
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src domain.Source) {
			defer wg.Done()
			srcCtx, cancel := context.WithTimeout(ctx, s.SourceTimeout)
			defer cancel()
			start := time.Now()
			list, err := s.scoreSource(srcCtx, src, text, catalogue)
			observability.ObserveSource(string(src), time.Since(start), err)
			outcomes <- sourceOutcome{source: src, candidates: list, err: err}
		}(src)
	}
	wg.Wait()
	close(outcomes)

	bySource := make(map[domain.Source][]domain.ScoredCandidate, len(sources))
	succeeded := 0
	for out := range outcomes {
		if out.err != nil {
			lg.Warn("scoring source failed",
				slog.String("source", string(out.source)),
				slog.Any("error", out.err))
			bySource[out.source] = nil
			continue
		}
		bySource[out.source] = out.candidates
		succeeded++
	}
	return bySource, succeeded > 0
}

func (s RecommendService) scoreSource(ctx domain.Context, src domain.Source, text string, catalogue []domain.Assessment) ([]domain.ScoredCandidate, error) {
	switch src {
	case domain.SourceRAG:
		vecs, err := s.Embedder.Embed(ctx, []string{text}, true)
		if err != nil {
			return nil, fmt.Errorf("op=recommend.embed: %w", err)
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("op=recommend.embed: no vector returned")
		}
		return s.Vectors.Search(ctx, vecs[0], s.VectorTopK)
	case domain.SourceGemini:
		return s.LLM.Score(ctx, text, catalogue)
	case domain.SourceNLP, domain.SourceClustering:
		scorer, ok := s.Scorers[src]
		if !ok {
			return nil, fmt.Errorf("op=recommend.score: no scorer for source %s", src)
		}
		return scorer.Score(ctx, text)
	}
	return nil, fmt.Errorf("%w: unknown source %q", domain.ErrInvalidArgument, src)
}

// record persists history and publishes the analytics event. Both are
// best-effort: failures are logged, never surfaced to the caller.
func (s RecommendService) record(ctx domain.Context, q domain.RecommendQuery, res RecommendResult) {
	lg := obsctx.LoggerFromContext(ctx)
	itemIDs := make([]string, len(res.Items))
	scores := make([]float64, len(res.Items))
	for i, it := range res.Items {
		itemIDs[i] = it.ID
		scores[i] = it.Score
	}
	rec := domain.Recommendation{
		QueryText:   q.Text,
		Engine:      q.Engine,
		ItemIDs:     itemIDs,
		FinalScores: scores,
		ServedAt:    time.Now().UTC(),
		RequestID:   obsctx.RequestIDFromContext(ctx),
	}
	if s.History != nil {
		id, err := s.History.Save(ctx, rec)
		if err != nil {
			lg.Warn("history save failed", slog.Any("error", err))
		} else {
			rec.ID = id
		}
	}
	if s.Events != nil {
		if err := s.Events.PublishRecommendation(ctx, rec); err != nil {
			lg.Warn("event publish failed", slog.Any("error", err))
		}
	}
}

// explanationIndex maps item ids to the LLM's one-line explanations.
func explanationIndex(list []domain.ScoredCandidate) map[string]string {
	if len(list) == 0 {
		return nil
	}
	m := make(map[string]string, len(list))
	for _, c := range list {
		if c.Explanation != "" {
			m[c.ItemID] = c.Explanation
		}
	}
	return m
}

// fingerprint derives the response cache key from everything that affects
// the response.
func fingerprint(q domain.RecommendQuery) string {
	payload := struct {
		Text        string                   `json:"text"`
		Engine      domain.Engine            `json:"engine"`
		Constraints domain.FilterConstraints `json:"constraints"`
	}{q.Text, q.Engine, q.Constraints}
	b, _ := json.Marshal(payload)
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
