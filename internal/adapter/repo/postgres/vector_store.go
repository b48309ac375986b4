package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/skillmatch/assessment-recommender/internal/domain"
)

// VectorStore runs pgvector similarity search over assessment embeddings.
type VectorStore struct{ Pool PgxPool }

// NewVectorStore constructs a VectorStore with the given pool.
func NewVectorStore(p PgxPool) *VectorStore { return &VectorStore{Pool: p} }

// Search returns the topK nearest assessments by cosine similarity. Raw
// scores are similarities (1 - cosine distance) so higher is better.
func (s *VectorStore) Search(ctx domain.Context, vector []float32, topK int) ([]domain.ScoredCandidate, error) {
	tracer := otel.Tracer("repo.vectors")
	ctx, span := tracer.Start(ctx, "vectors.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("top_k", topK))

	if len(vector) == 0 {
		return nil, fmt.Errorf("op=vectors.search: %w: empty query vector", domain.ErrInvalidArgument)
	}
	if topK <= 0 {
		topK = 20
	}
	q := `SELECT assessment_id, 1 - (embedding <=> $1::vector) AS similarity
		FROM assessment_embeddings
		ORDER BY embedding <=> $1::vector
		LIMIT $2`
	rows, err := s.Pool.Query(ctx, q, encodeVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("op=vectors.search: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoredCandidate
	for rows.Next() {
		var c domain.ScoredCandidate
		if err := rows.Scan(&c.ItemID, &c.RawScore); err != nil {
			return nil, fmt.Errorf("op=vectors.search scan: %w", err)
		}
		c.Source = domain.SourceRAG
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=vectors.search rows: %w", err)
	}
	return out, nil
}

// UpsertEmbedding writes or replaces the embedding for one assessment.
func (s *VectorStore) UpsertEmbedding(ctx domain.Context, assessmentID string, vector []float32) error {
	tracer := otel.Tracer("repo.vectors")
	ctx, span := tracer.Start(ctx, "vectors.UpsertEmbedding")
	defer span.End()

	q := `INSERT INTO assessment_embeddings (assessment_id, embedding)
		VALUES ($1, $2::vector)
		ON CONFLICT (assessment_id) DO UPDATE SET embedding = EXCLUDED.embedding`
	if _, err := s.Pool.Exec(ctx, q, assessmentID, encodeVector(vector)); err != nil {
		return fmt.Errorf("op=vectors.upsert: %w", err)
	}
	return nil
}

// encodeVector renders a float32 slice in pgvector's text format: [x,y,z].
func encodeVector(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*10 + 2)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
