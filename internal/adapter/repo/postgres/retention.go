package postgres

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/skillmatch/assessment-recommender/internal/domain"
)

// RetentionService prunes old recommendation history rows. The history table
// grows with every request, so an unbounded table eventually dominates the
// database.
type RetentionService struct {
	Pool          PgxPool
	RetentionDays int
}

// NewRetentionService constructs a RetentionService. Non-positive retention
// falls back to 90 days.
func NewRetentionService(pool PgxPool, retentionDays int) *RetentionService {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &RetentionService{Pool: pool, RetentionDays: retentionDays}
}

// PruneHistory deletes history rows served before the retention cutoff.
func (s *RetentionService) PruneHistory(ctx domain.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.RetentionDays)
	tag, err := s.Pool.Exec(ctx, `DELETE FROM recommendation_history WHERE served_at < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("op=history.prune: %w", err)
	}
	slog.Info("history pruned",
		slog.Int64("deleted", tag.RowsAffected()),
		slog.Time("cutoff", cutoff),
	)
	return nil
}

// RunPeriodic prunes on start and then on every tick until ctx is done.
func (s *RetentionService) RunPeriodic(ctx domain.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := s.PruneHistory(ctx); err != nil {
		slog.Error("initial history prune failed", slog.Any("error", err))
	}
	for {
		select {
		case <-ctx.Done():
			slog.Info("retention service stopping")
			return
		case <-ticker.C:
			if err := s.PruneHistory(ctx); err != nil {
				slog.Error("periodic history prune failed", slog.Any("error", err))
			}
		}
	}
}
