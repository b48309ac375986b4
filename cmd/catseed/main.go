// Command catseed loads a catalogue file into Postgres and refreshes the
// stored embeddings. Run it after catalogue exports change.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/skillmatch/assessment-recommender/internal/adapter/ai/hf"
	"github.com/skillmatch/assessment-recommender/internal/adapter/repo/postgres"
	"github.com/skillmatch/assessment-recommender/internal/config"
	"github.com/skillmatch/assessment-recommender/internal/seed"
)

func main() {
	file := flag.String("file", "catalogue.yaml", "catalogue file (YAML or JSON)")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall seeding deadline")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	items, err := seed.LoadFile(*file)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	if err := seed.Run(ctx, postgres.NewCatalogueRepo(pool), postgres.NewVectorStore(pool), hf.New(cfg), items); err != nil {
		log.Fatal(err)
	}
	log.Printf("seeded %d assessments", len(items))
}
