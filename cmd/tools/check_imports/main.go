package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"

	"github.com/core4ce/h5n1-tracker/internal/db"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	imports, err := db.NewStore(pool).ListImports(ctx, 10)
	if err != nil {
		log.Fatal(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"File", "Status", "Total", "Inserted", "Duplicates", "Failed", "Duration", "Started At"})

	for _, imp := range imports {
		duration := "Running..."
		if imp.CompletedAt != nil {
			duration = imp.CompletedAt.Sub(imp.StartedAt).Round(time.Second).String()
		}
		t.AppendRow(table.Row{imp.Filename, imp.Status, imp.TotalRows, imp.SuccessfulRows,
			imp.DuplicateRows, imp.FailedRows, duration, imp.StartedAt.Format("15:04:05")})
	}
	t.Render()
}
