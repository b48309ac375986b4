package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrRateLimited        = errors.New("rate limited")
	ErrUpstreamTimeout    = errors.New("upstream timeout")
	ErrUpstreamRateLimit  = errors.New("upstream rate limit")
	ErrInvalidWeights     = errors.New("invalid weight configuration")
	ErrNoSourcesAvailable = errors.New("no recommendation sources available")
	ErrEmptyCatalogue     = errors.New("catalogue is empty")
	ErrInternal           = errors.New("internal error")
)

// Source identifies one scoring source contributing a candidate list.
type Source string

const (
	SourceRAG        Source = "rag"
	SourceGemini     Source = "gemini"
	SourceNLP        Source = "nlp"
	SourceClustering Source = "clustering"
)

// Sources lists every known scoring source in a fixed order.
func Sources() []Source {
	return []Source{SourceRAG, SourceGemini, SourceNLP, SourceClustering}
}

// Engine selects which source subset drives a recommendation request.
type Engine string

const (
	EngineHybrid     Engine = "hybrid"
	EngineGemini     Engine = "gemini"
	EngineRAG        Engine = "rag"
	EngineNLP        Engine = "nlp"
	EngineClustering Engine = "clustering"
)

// ParseEngine maps a request string onto an Engine. An empty string selects
// hybrid; anything else unknown is an invalid argument.
func ParseEngine(s string) (Engine, error) {
	switch Engine(s) {
	case EngineHybrid, EngineGemini, EngineRAG, EngineNLP, EngineClustering:
		return Engine(s), nil
	case "":
		return EngineHybrid, nil
	}
	return "", ErrInvalidArgument
}

// Assessment is one catalogue product. IDs are stable across all sources;
// merge correctness depends on that.
type Assessment struct {
	ID              string
	Name            string
	URL             string
	TestTypes       []string
	DurationMinutes int // 0 means unknown
	RemoteCapable   bool
	Adaptive        bool
	Languages       []string
	JobFamily       string
	JobLevel        string
	Description     string
}

// SupportsLanguage reports whether lang is in the assessment's language set.
func (a Assessment) SupportsLanguage(lang string) bool {
	for _, l := range a.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// ScoredCandidate is one (item, score) observation from a single source.
// RawScore semantics are source-specific and must not be compared across
// sources before normalization.
type ScoredCandidate struct {
	ItemID      string
	RawScore    float64
	Source      Source
	Explanation string
}

// NormalizedCandidate is a ScoredCandidate rescaled onto [0,1] where 1.0 is
// most relevant. Within one source's list the normalized score is monotonic
// with the raw score.
type NormalizedCandidate struct {
	ScoredCandidate
	NormalizedScore float64
}

// MergedResult is one entry in the final ranked output.
type MergedResult struct {
	ItemID          string
	FinalScore      float64
	PerSourceScores map[Source]float64
	Rank            int
}

// FilterConstraints are the hard constraints applied after relevance ranking.
// Each field is independently optional; nil pointers mean "not supplied".
type FilterConstraints struct {
	MaxDurationMinutes *int
	RequireRemote      bool
	RequiredLanguage   *string
	RequestedCount     int
}

const (
	// DefaultRequestedCount is used when the request omits a count.
	DefaultRequestedCount = 5
	// MaxRequestedCount caps the result list length; larger values are clamped.
	MaxRequestedCount = 10
)

// RecommendQuery is the resolved request the ranking core consumes: Text is
// already extracted from free text, a URL, or an uploaded PDF by the caller.
type RecommendQuery struct {
	Text        string
	Engine      Engine
	Constraints FilterConstraints
}

// Recommendation is a persisted history record of one served request.
type Recommendation struct {
	ID          string
	QueryText   string
	Engine      Engine
	ItemIDs     []string
	FinalScores []float64
	ServedAt    time.Time
	RequestID   string
}

// Repositories (ports)

type CatalogueRepository interface {
	GetAll(ctx Context) ([]Assessment, error)
	GetByID(ctx Context, id string) (Assessment, error)
	List(ctx Context, offset, limit int) ([]Assessment, error)
}

type HistoryRepository interface {
	Save(ctx Context, rec Recommendation) (string, error)
}

// Embedder turns texts into query or passage vectors (384 dims).
type Embedder interface {
	Embed(ctx Context, texts []string, isQuery bool) ([][]float32, error)
}

// VectorStore performs nearest-neighbour search over catalogue embeddings.
// Raw scores are cosine similarities in [-1,1].
type VectorStore interface {
	Search(ctx Context, vector []float32, topK int) ([]ScoredCandidate, error)
}

// LLMScorer judges catalogue relevance against a job description. The raw
// score range is whatever the model returns; normalization handles it.
type LLMScorer interface {
	Score(ctx Context, jobDescription string, catalogue []Assessment) ([]ScoredCandidate, error)
}

// TextScorer scores the catalogue against free text in-process (TF-IDF,
// clustering). Implementations are fit once on a catalogue snapshot.
type TextScorer interface {
	Score(ctx Context, text string) ([]ScoredCandidate, error)
}

// ResponseCache is a side-channel response cache keyed by request fingerprint.
// Failures are soft; callers must treat errors as cache misses.
type ResponseCache interface {
	Get(ctx Context, key string) ([]byte, bool, error)
	Set(ctx Context, key string, value []byte, ttl time.Duration) error
}

// EventPublisher emits analytics events for served recommendations.
type EventPublisher interface {
	PublishRecommendation(ctx Context, rec Recommendation) error
}

// TextExtractor extracts plain text from an uploaded document at path.
type TextExtractor interface {
	ExtractPath(ctx Context, fileName, path string) (string, error)
}

// PageFetcher fetches a job posting URL and returns its readable text.
type PageFetcher interface {
	FetchText(ctx Context, url string) (string, error)
}

// Context is an alias so the domain package does not spell out std context in
// every port signature; adapters pass context.Context through unchanged.
type Context = context.Context
