package ingest

import (
	"context"
	"fmt"
	"log"

	"github.com/core4ce/h5n1-tracker/internal/geo"
	"github.com/core4ce/h5n1-tracker/internal/validate"
)

// Pipeline wires one ingestion run end to end: CSV read, normalization,
// geocoding, validation, load. Processing is synchronous and
// single-threaded; one file runs start to finish before the next.
type Pipeline struct {
	Registry *Registry
	Resolver *geo.Resolver
	Loader   *Loader
}

func NewPipeline(reg *Registry, resolver *geo.Resolver, sink CaseSink, processedDir string) *Pipeline {
	return &Pipeline{
		Registry: reg,
		Resolver: resolver,
		Loader:   &Loader{Sink: sink, ProcessedDir: processedDir},
	}
}

// DatasetReport summarizes one dataset's run for callers (CLI, API) and the
// audit log.
type DatasetReport struct {
	Dataset     string           `json:"dataset"`
	File        string           `json:"file"`
	Parse       ParseStats       `json:"parse"`
	GeoFailures []geo.Failure    `json:"geo_failures,omitempty"`
	Issues      []validate.Issue `json:"validation_issues,omitempty"`
	Load        LoadResult       `json:"load"`
	Error       string           `json:"error,omitempty"`
}

func normalizerFor(id string) (Normalizer, error) {
	switch id {
	case "commercial":
		return CommercialNormalizer{}, nil
	case "wild_bird":
		return WildBirdNormalizer{}, nil
	case "mammal":
		return MammalNormalizer{}, nil
	default:
		return nil, fmt.Errorf("no normalizer for dataset %q", id)
	}
}

// IngestDataset runs the full pipeline for one registered dataset.
func (p *Pipeline) IngestDataset(ctx context.Context, id string) (DatasetReport, error) {
	report := DatasetReport{Dataset: id}

	cfg, err := p.Registry.Get(id)
	if err != nil {
		return report, err
	}
	report.File = cfg.File

	norm, err := normalizerFor(id)
	if err != nil {
		return report, err
	}

	log.Printf("ingest %s: reading %s", id, cfg.File)
	rows, err := ReadCSVFile(cfg.File)
	if err != nil {
		return report, fmt.Errorf("read %s: %w", cfg.File, err)
	}

	records, stats := norm.Normalize(rows)
	report.Parse = stats
	log.Printf("ingest %s: %d rows -> %d records (%d aggregated groups)",
		id, stats.RowsRead, stats.RecordsOut, stats.AggregatedGroups)

	records, geoFailed := p.Resolver.ResolveAll(records)
	report.GeoFailures = geoFailed

	accepted, issues := validate.Validate(records)
	report.Issues = issues
	if dropped := len(records) - len(accepted); dropped > 0 {
		log.Printf("ingest %s: dropped %d records with null case_date", id, dropped)
	}

	meta := map[string]any{
		"parse":              stats,
		"geocoding_failed":   len(geoFailed),
		"validation_issues":  issues,
		"records_validated":  len(accepted),
		"records_normalized": len(records),
	}
	res, err := p.Loader.Load(ctx, id, norm.Source(), accepted, cfg.File, meta)
	if err != nil {
		return report, fmt.Errorf("load %s: %w", id, err)
	}
	report.Load = res
	return report, nil
}

// IngestAll runs every registered dataset in order. A failure in one dataset
// (missing file, unreadable CSV) is recorded in its report and the remaining
// datasets still run.
func (p *Pipeline) IngestAll(ctx context.Context) []DatasetReport {
	reports := make([]DatasetReport, 0, len(p.Registry.Datasets))
	for _, cfg := range p.Registry.Datasets {
		report, err := p.IngestDataset(ctx, cfg.ID)
		if err != nil {
			report.Error = err.Error()
			log.Printf("ingest %s: %v", cfg.ID, err)
		}
		reports = append(reports, report)
	}
	return reports
}
