// Command server starts the assessment recommendation HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ai "github.com/skillmatch/assessment-recommender/internal/adapter/ai"
	"github.com/skillmatch/assessment-recommender/internal/adapter/ai/gemini"
	"github.com/skillmatch/assessment-recommender/internal/adapter/ai/hf"
	"github.com/skillmatch/assessment-recommender/internal/adapter/cache"
	"github.com/skillmatch/assessment-recommender/internal/adapter/events/redpanda"
	httpserver "github.com/skillmatch/assessment-recommender/internal/adapter/httpserver"
	"github.com/skillmatch/assessment-recommender/internal/adapter/observability"
	"github.com/skillmatch/assessment-recommender/internal/adapter/repo/postgres"
	tikaext "github.com/skillmatch/assessment-recommender/internal/adapter/textextractor/tika"
	"github.com/skillmatch/assessment-recommender/internal/adapter/urlfetch"
	"github.com/skillmatch/assessment-recommender/internal/app"
	"github.com/skillmatch/assessment-recommender/internal/config"
	"github.com/skillmatch/assessment-recommender/internal/domain"
	"github.com/skillmatch/assessment-recommender/internal/scorer/cluster"
	"github.com/skillmatch/assessment-recommender/internal/scorer/tfidf"
	"github.com/skillmatch/assessment-recommender/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	// Hybrid weights fail fast on misconfiguration
	weights, err := cfg.HybridWeights()
	if err != nil {
		slog.Error("invalid hybrid weights", slog.Any("error", err))
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	catRepo := postgres.NewCatalogueRepo(pool)
	histRepo := postgres.NewHistoryRepo(pool)
	vectors := postgres.NewVectorStore(pool)

	retention := postgres.NewRetentionService(pool, cfg.HistoryRetentionDays)
	go retention.RunPeriodic(ctx, cfg.CleanupInterval)

	// In-process scorers share one TF-IDF feature space fitted on the
	// catalogue snapshot taken at startup.
	scorers := map[domain.Source]domain.TextScorer{}
	catalogue, err := catRepo.GetAll(ctx)
	if err != nil {
		slog.Error("catalogue load failed", slog.Any("error", err))
		os.Exit(1)
	}
	if len(catalogue) == 0 {
		slog.Warn("catalogue is empty, nlp and clustering sources disabled until seeding")
	} else {
		features, err := tfidf.New(catalogue)
		if err != nil {
			slog.Error("tfidf fit failed", slog.Any("error", err))
			os.Exit(1)
		}
		clusters, err := cluster.New(features, cfg.ClusterCount)
		if err != nil {
			slog.Error("cluster fit failed", slog.Any("error", err))
			os.Exit(1)
		}
		scorers[domain.SourceNLP] = features
		scorers[domain.SourceClustering] = clusters
		slog.Info("in-process scorers ready",
			slog.Int("catalogue_size", len(catalogue)),
			slog.Int("clusters", clusters.Clusters()))
	}

	embedder := ai.NewEmbedCache(hf.New(cfg), cfg.EmbedCacheSize)
	llm := gemini.New(cfg)

	var respCache domain.ResponseCache
	var cachePing func(ctx context.Context) error
	if cfg.CacheEnabled() {
		rc, err := cache.NewRedis(cfg.RedisURL)
		if err != nil {
			slog.Error("redis connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = rc.Close() }()
		respCache = rc
		cachePing = rc.Ping
	}

	var events domain.EventPublisher
	if cfg.EventsEnabled() {
		producer, err := redpanda.NewProducer(cfg.KafkaBrokers, cfg.EventsTopic)
		if err != nil {
			slog.Error("redpanda producer connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer producer.Close()
		events = producer
	}

	recSvc := usecase.RecommendService{
		Catalogue:     catRepo,
		History:       histRepo,
		Embedder:      embedder,
		Vectors:       vectors,
		LLM:           llm,
		Scorers:       scorers,
		Cache:         respCache,
		Events:        events,
		HybridWeights: weights,
		SourceTimeout: cfg.SourceTimeout,
		VectorTopK:    cfg.VectorTopK,
		CacheTTL:      cfg.CacheTTL,
	}
	catSvc := usecase.NewCatalogueService(catRepo)

	dbCheck, redisCheck, tikaCheck := app.BuildReadinessChecks(cfg, pool, cachePing)
	ext := tikaext.New(cfg.TikaURL)
	fetcher := urlfetch.New()

	srv := httpserver.NewServer(cfg, recSvc, catSvc, ext, fetcher, dbCheck, redisCheck, tikaCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
