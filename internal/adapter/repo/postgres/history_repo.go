package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/skillmatch/assessment-recommender/internal/domain"
)

// HistoryRepo records served recommendations for later evaluation.
type HistoryRepo struct{ Pool PgxPool }

// NewHistoryRepo constructs a HistoryRepo with the given pool.
func NewHistoryRepo(p PgxPool) *HistoryRepo { return &HistoryRepo{Pool: p} }

// Save inserts a history record and returns its id.
func (r *HistoryRepo) Save(ctx domain.Context, rec domain.Recommendation) (string, error) {
	tracer := otel.Tracer("repo.history")
	ctx, span := tracer.Start(ctx, "history.Save")
	defer span.End()
	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}
	served := rec.ServedAt
	if served.IsZero() {
		served = time.Now().UTC()
	}
	q := `INSERT INTO recommendation_history (id, query_text, engine, item_ids, final_scores, served_at, request_id) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.Pool.Exec(ctx, q, id, rec.QueryText, string(rec.Engine), rec.ItemIDs, rec.FinalScores, served, rec.RequestID)
	if err != nil {
		return "", fmt.Errorf("op=history.save: %w", err)
	}
	return id, nil
}
