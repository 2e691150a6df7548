package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/core4ce/h5n1-tracker/internal/db"
	"github.com/core4ce/h5n1-tracker/internal/geo"
	"github.com/core4ce/h5n1-tracker/internal/ingest"
)

func main() {
	dataset := flag.String("dataset", "", "dataset id to ingest (commercial, wild_bird, mammal)")
	all := flag.Bool("all", false, "ingest every registered dataset")
	flag.Parse()

	if *dataset == "" && !*all {
		log.Fatal("specify -dataset <id> or -all")
	}

	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	registry, err := ingest.LoadRegistry("internal/ingest/config/datasets.yaml")
	if err != nil {
		log.Fatalf("Failed to load dataset registry: %v", err)
	}
	resolver, err := geo.LoadResolver(os.Getenv("GEO_LOOKUP_FILE"))
	if err != nil {
		log.Fatalf("Failed to load geo lookup: %v", err)
	}

	pipeline := ingest.NewPipeline(registry, resolver, db.NewStore(pool), os.Getenv("PROCESSED_DIR"))

	var reports []ingest.DatasetReport
	if *all {
		reports = pipeline.IngestAll(ctx)
	} else {
		report, err := pipeline.IngestDataset(ctx, *dataset)
		if err != nil {
			log.Fatalf("Ingestion failed: %v", err)
		}
		reports = []ingest.DatasetReport{report}
	}

	out, _ := json.MarshalIndent(reports, "", "  ")
	os.Stdout.Write(append(out, '\n'))
}
