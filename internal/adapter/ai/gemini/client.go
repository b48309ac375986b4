// Package gemini implements the LLM scoring port against the Gemini
// generateContent REST API.
package gemini

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	tiktoken "github.com/pkoukk/tiktoken-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/skillmatch/assessment-recommender/internal/config"
	"github.com/skillmatch/assessment-recommender/internal/domain"
	"github.com/skillmatch/assessment-recommender/pkg/textx"
)

// Client asks a Gemini model to rate catalogue items against a job
// description. The model must answer with a JSON object listing item ids and
// relevance scores; anything else is a scoring failure.
type Client struct {
	cfg config.Config
	hc  *http.Client
}

// New constructs a Gemini scoring client with a traced transport.
func New(cfg config.Config) *Client {
	return &Client{
		cfg: cfg,
		hc: &http.Client{
			Timeout:   45 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

const systemInstruction = `You are an assessment recommendation engine. Given a job description and a catalogue of assessment products, rate how relevant each assessment is to the role. Respond with JSON only, in this exact shape:
{"recommendations":[{"id":"<assessment id>","relevance_score":<0.0-1.0>,"explanation":"<one sentence>"}]}
Include only assessments from the catalogue. Omit assessments that are clearly irrelevant.`

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type scoredItem struct {
	ID             string  `json:"id"`
	RelevanceScore float64 `json:"relevance_score"`
	Explanation    string  `json:"explanation"`
}

// Score rates the catalogue against jobDescription and returns one candidate
// per item the model mentioned, with raw scores as returned by the model.
func (c *Client) Score(ctx domain.Context, jobDescription string, catalogue []domain.Assessment) ([]domain.ScoredCandidate, error) {
	if c.cfg.GeminiAPIKey == "" {
		slog.Error("Gemini API key missing", slog.String("provider", "gemini"))
		return nil, fmt.Errorf("%w: GEMINI_API_KEY missing", domain.ErrInvalidArgument)
	}
	if len(catalogue) == 0 {
		return nil, fmt.Errorf("op=gemini.score: %w", domain.ErrEmptyCatalogue)
	}

	prompt := c.buildPrompt(jobDescription, catalogue)
	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:      0.2,
			ResponseMimeType: "application/json",
		},
	}
	b, _ := json.Marshal(req)

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.GeminiBaseURL, c.cfg.GeminiModel)
	var out generateResponse
	op := func() error {
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("X-Goog-Api-Key", c.cfg.GeminiAPIKey)
		resp, err := c.hc.Do(r)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode == http.StatusTooManyRequests {
			slog.Warn("llm provider rate limited", slog.String("provider", "gemini"), slog.Int("status", resp.StatusCode))
			return fmt.Errorf("%w: 429", domain.ErrUpstreamRateLimit)
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("generate status %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("generate status %d", resp.StatusCode)
		}
		out = generateResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			slog.Error("llm decode error", slog.String("provider", "gemini"), slog.Any("error", err))
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
		return nil, fmt.Errorf("op=gemini.score: %w", err)
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("op=gemini.score: empty candidates in response")
	}
	text := cleanJSONResponse(out.Candidates[0].Content.Parts[0].Text)

	var parsed struct {
		Recommendations []scoredItem `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("op=gemini.score parse: %w", err)
	}

	known := make(map[string]struct{}, len(catalogue))
	for _, a := range catalogue {
		known[a.ID] = struct{}{}
	}
	var res []domain.ScoredCandidate
	for _, it := range parsed.Recommendations {
		if _, ok := known[it.ID]; !ok {
			// Hallucinated id, drop it
			slog.Debug("dropping unknown item from llm response", slog.String("item_id", it.ID))
			continue
		}
		res = append(res, domain.ScoredCandidate{
			ItemID:      it.ID,
			RawScore:    it.RelevanceScore,
			Source:      domain.SourceGemini,
			Explanation: it.Explanation,
		})
	}
	return res, nil
}

// buildPrompt assembles the instruction, job description and a catalogue
// digest, trimming catalogue lines to stay inside the prompt token budget.
func (c *Client) buildPrompt(jobDescription string, catalogue []domain.Assessment) string {
	var sb strings.Builder
	sb.WriteString(systemInstruction)
	sb.WriteString("\n\nJob description:\n")
	sb.WriteString(jobDescription)
	sb.WriteString("\n\nCatalogue:\n")

	budget := c.cfg.GeminiPromptTokenBudget
	used := countTokens(sb.String())
	for _, a := range catalogue {
		line := catalogueLine(a)
		if budget > 0 {
			n := countTokens(line)
			if used+n > budget {
				break
			}
			used += n
		}
		sb.WriteString(line)
	}
	return sb.String()
}

func catalogueLine(a domain.Assessment) string {
	desc := textx.TruncateRunes(a.Description, 200)
	return fmt.Sprintf("- id=%s name=%q types=%s duration_min=%d remote=%t languages=%s desc=%q\n",
		a.ID, a.Name, strings.Join(a.TestTypes, "/"), a.DurationMinutes, a.RemoteCapable, strings.Join(a.Languages, "/"), desc)
}

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// countTokens approximates Gemini token counts with the cl100k_base encoding.
// An exact count is not needed, the budget just keeps prompts bounded.
func countTokens(text string) int {
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Warn("tiktoken encoding unavailable, estimating tokens", slog.Any("error", err))
			return
		}
		enc = e
	})
	if enc == nil {
		// ~4 chars per token fallback
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// cleanJSONResponse strips markdown code fences some models wrap around JSON.
func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
