// Package seed ingests a catalogue file into Postgres and the embedding
// table. It is the write side of the otherwise read-only catalogue.
package seed

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/skillmatch/assessment-recommender/internal/domain"
)

// CatalogueWriter persists catalogue rows.
type CatalogueWriter interface {
	UpsertAssessment(ctx domain.Context, a domain.Assessment) error
}

// EmbeddingWriter persists one embedding per assessment.
type EmbeddingWriter interface {
	UpsertEmbedding(ctx domain.Context, assessmentID string, vector []float32) error
}

// embedBatchSize bounds one embeddings API call.
const embedBatchSize = 16

// catalogueEntry mirrors one assessment in the seed file. Field names follow
// the catalogue export format.
type catalogueEntry struct {
	ID              string   `yaml:"id" json:"id"`
	Name            string   `yaml:"name" json:"name"`
	URL             string   `yaml:"url" json:"url"`
	TestTypes       []string `yaml:"test_types" json:"test_types"`
	DurationMinutes int      `yaml:"duration_minutes" json:"duration_minutes"`
	RemoteCapable   bool     `yaml:"remote_capable" json:"remote_capable"`
	Adaptive        bool     `yaml:"adaptive" json:"adaptive"`
	Languages       []string `yaml:"languages" json:"languages"`
	JobFamily       string   `yaml:"job_family" json:"job_family"`
	JobLevel        string   `yaml:"job_level" json:"job_level"`
	Description     string   `yaml:"description" json:"description"`
}

func (e catalogueEntry) toDomain() domain.Assessment {
	return domain.Assessment{
		ID:              e.ID,
		Name:            e.Name,
		URL:             e.URL,
		TestTypes:       e.TestTypes,
		DurationMinutes: e.DurationMinutes,
		RemoteCapable:   e.RemoteCapable,
		Adaptive:        e.Adaptive,
		Languages:       e.Languages,
		JobFamily:       e.JobFamily,
		JobLevel:        e.JobLevel,
		Description:     e.Description,
	}
}

// LoadFile parses a catalogue seed file. The extension selects the format:
// .json is JSON, everything else is YAML.
func LoadFile(path string) ([]domain.Assessment, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(filepath.Clean(abs))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("seed file not found: %s", path)
		}
		return nil, err
	}
	var entries []catalogueEntry
	if strings.EqualFold(filepath.Ext(abs), ".json") {
		if err := json.Unmarshal(b, &entries); err != nil {
			return nil, fmt.Errorf("json parse: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(b, &entries); err != nil {
			return nil, fmt.Errorf("yaml parse: %w", err)
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no assessments in %s", path)
	}
	out := make([]domain.Assessment, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e.ID == "" || e.Name == "" {
			return nil, fmt.Errorf("%w: entry %d missing id or name", domain.ErrInvalidArgument, i)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", domain.ErrInvalidArgument, e.ID)
		}
		seen[e.ID] = struct{}{}
		out = append(out, e.toDomain())
	}
	return out, nil
}

// Run upserts every assessment and its embedding. Rows are written before
// vectors so a mid-run failure leaves a browsable catalogue.
func Run(ctx domain.Context, cat CatalogueWriter, vectors EmbeddingWriter, embedder domain.Embedder, items []domain.Assessment) error {
	for _, a := range items {
		if err := cat.UpsertAssessment(ctx, a); err != nil {
			return fmt.Errorf("op=seed.upsert_row id=%s: %w", a.ID, err)
		}
	}
	slog.Info("catalogue rows upserted", slog.Int("count", len(items)))

	for start := 0; start < len(items); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		texts := make([]string, len(batch))
		for i, a := range batch {
			texts[i] = PassageText(a)
		}
		vecs, err := embedder.Embed(ctx, texts, false)
		if err != nil {
			return fmt.Errorf("op=seed.embed batch=%d: %w", start/embedBatchSize, err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("op=seed.embed: got %d vectors for %d texts", len(vecs), len(batch))
		}
		for i, a := range batch {
			if err := vectors.UpsertEmbedding(ctx, a.ID, vecs[i]); err != nil {
				return fmt.Errorf("op=seed.upsert_vector id=%s: %w", a.ID, err)
			}
		}
	}
	slog.Info("catalogue embeddings upserted", slog.Int("count", len(items)))
	return nil
}

// PassageText renders the text that represents an assessment in embedding
// space. Keep this stable: changing it invalidates stored vectors.
func PassageText(a domain.Assessment) string {
	var sb strings.Builder
	sb.WriteString(a.Name)
	if len(a.TestTypes) > 0 {
		sb.WriteString(". Test types: ")
		sb.WriteString(strings.Join(a.TestTypes, ", "))
	}
	if a.JobFamily != "" {
		sb.WriteString(". Job family: ")
		sb.WriteString(a.JobFamily)
	}
	if a.JobLevel != "" {
		sb.WriteString(". Job level: ")
		sb.WriteString(a.JobLevel)
	}
	if a.DurationMinutes > 0 {
		sb.WriteString(". Duration: ")
		sb.WriteString(strconv.Itoa(a.DurationMinutes))
		sb.WriteString(" minutes")
	}
	if len(a.Languages) > 0 {
		sb.WriteString(". Languages: ")
		sb.WriteString(strings.Join(a.Languages, ", "))
	}
	if a.Description != "" {
		sb.WriteString(". ")
		sb.WriteString(a.Description)
	}
	return sb.String()
}
