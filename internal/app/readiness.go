package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/skillmatch/assessment-recommender/internal/config"
)

// Pinger is the minimal interface for a database pool capable of Ping.
type Pinger interface{ Ping(ctx context.Context) error }

// BuildReadinessChecks returns readiness checks for db, redis and tika.
func BuildReadinessChecks(cfg config.Config, pool Pinger, cachePing func(ctx context.Context) error) (
	func(ctx context.Context) error,
	func(ctx context.Context) error,
	func(ctx context.Context) error,
) {
	dbCheck := func(ctx context.Context) error {
		if pool == nil {
			return fmt.Errorf("db not configured")
		}
		return pool.Ping(ctx)
	}
	redisCheck := func(ctx context.Context) error {
		if cachePing == nil {
			return fmt.Errorf("redis not configured")
		}
		return cachePing(ctx)
	}
	tikaCheck := func(ctx context.Context) error {
		if cfg.TikaURL == "" {
			return fmt.Errorf("tika url not configured")
		}
		client := &http.Client{Timeout: 2 * time.Second}
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, cfg.TikaURL+"/version", nil)
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		return fmt.Errorf("tika status %d", resp.StatusCode)
	}
	return dbCheck, redisCheck, tikaCheck
}
