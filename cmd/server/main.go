package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/core4ce/h5n1-tracker/internal/api"
	"github.com/core4ce/h5n1-tracker/internal/db"
	"github.com/core4ce/h5n1-tracker/internal/geo"
	"github.com/core4ce/h5n1-tracker/internal/ingest"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

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

	store := db.NewStore(pool)
	pipeline := ingest.NewPipeline(registry, resolver, store, os.Getenv("PROCESSED_DIR"))

	srv := api.NewServer(pool, pipeline)
	log.Printf("Server starting on port %s...", port)
	if err := srv.Start(port); err != nil {
		log.Fatal(err)
	}
}
