// Package hf implements the embeddings port against the Hugging Face
// Inference API for sentence-transformer models.
package hf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/skillmatch/assessment-recommender/internal/config"
	"github.com/skillmatch/assessment-recommender/internal/domain"
)

// Client calls the feature-extraction pipeline of a sentence-transformers
// model. Query texts are prefixed so asymmetric models embed them differently
// from catalogue passages.
type Client struct {
	cfg config.Config
	hc  *http.Client
}

const (
	queryPrefix   = "query: "
	passagePrefix = "passage: "
)

// New constructs an embeddings client with a traced transport.
func New(cfg config.Config) *Client {
	return &Client{
		cfg: cfg,
		hc: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Embed returns one vector per input text. isQuery selects the query-side
// prefix; catalogue passages use the passage prefix.
func (c *Client) Embed(ctx domain.Context, texts []string, isQuery bool) ([][]float32, error) {
	if c.cfg.HFAPIKey == "" {
		slog.Error("Hugging Face API key missing", slog.String("provider", "huggingface"))
		return nil, fmt.Errorf("%w: HUGGINGFACE_API_KEY missing", domain.ErrInvalidArgument)
	}
	if len(texts) == 0 {
		return nil, nil
	}
	prefix := passagePrefix
	if isQuery {
		prefix = queryPrefix
	}
	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = prefix + t
	}
	body := map[string]any{
		"inputs":  inputs,
		"options": map[string]any{"wait_for_model": true},
	}
	b, _ := json.Marshal(body)

	endpoint := c.cfg.HFBaseURL + "/pipeline/feature-extraction/" + c.cfg.EmbeddingsModel
	var out [][]float32
	op := func() error {
		// Recreate request each attempt to avoid reusing consumed bodies
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
		r.Header.Set("Authorization", "Bearer "+c.cfg.HFAPIKey)
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.hc.Do(r)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode == http.StatusTooManyRequests {
			slog.Warn("embeddings provider rate limited", slog.String("provider", "huggingface"), slog.Int("status", resp.StatusCode))
			return fmt.Errorf("rate limited: 429")
		}
		if resp.StatusCode == http.StatusServiceUnavailable {
			// Model still loading on the inference backend
			slog.Warn("embeddings model loading", slog.String("provider", "huggingface"), slog.String("model", c.cfg.EmbeddingsModel))
			return fmt.Errorf("embed status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("embed status %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("embed status %d", resp.StatusCode)
		}
		out = nil
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			slog.Error("embeddings decode error", slog.String("provider", "huggingface"), slog.Any("error", err))
			return backoff.Permanent(err)
		}
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	maxElapsed, initial, maxInt, mult := c.cfg.GetAIBackoffConfig()
	expo.MaxElapsedTime = maxElapsed
	expo.InitialInterval = initial
	expo.MaxInterval = maxInt
	expo.Multiplier = mult
	if err := backoff.Retry(op, backoff.WithContext(expo, ctx)); err != nil {
		return nil, fmt.Errorf("op=hf.embed: %w", err)
	}

	if len(out) != len(texts) {
		return nil, fmt.Errorf("op=hf.embed: got %d vectors for %d texts", len(out), len(texts))
	}
	for i, v := range out {
		if c.cfg.EmbeddingDim > 0 && len(v) != c.cfg.EmbeddingDim {
			return nil, fmt.Errorf("op=hf.embed: vector %d has %d dims, want %d", i, len(v), c.cfg.EmbeddingDim)
		}
	}
	return out, nil
}
