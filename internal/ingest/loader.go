package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/core4ce/h5n1-tracker/internal/models"
)

const (
	defaultBatchSize = 1000
	maxErrorLogLines = 100
	maxLogSamples    = 20
)

// CaseSink is the durable store the loader writes into. InsertCases is
// all-or-nothing: a uniqueness conflict anywhere in the slice must reject the
// whole call with an error matching models.ErrDuplicateKey, which triggers
// the one-at-a-time fallback.
type CaseSink interface {
	InsertCases(ctx context.Context, records []models.CaseRecord) error
	InsertCase(ctx context.Context, record models.CaseRecord) error
	HasCompletedImport(ctx context.Context, fileHash string) (bool, error)
	CreateImport(ctx context.Context, imp *models.ImportRecord) error
	FinishImport(ctx context.Context, imp *models.ImportRecord) error
}

// Loader pushes normalized records into a case sink in fixed-size batches
// and keeps the audit trail: an ImportRecord per run plus a JSON log file in
// ProcessedDir.
type Loader struct {
	Sink         CaseSink
	ProcessedDir string
	BatchSize    int
}

// LoadResult is what one Load call did, with duplicates split by where they
// were detected.
type LoadResult struct {
	Inserted       int  `json:"inserted"`
	Failed         int  `json:"failed"`
	Duplicates     int  `json:"duplicates"`
	WithinBatchDup int  `json:"within_batch_duplicates"`
	CrossBatchDup  int  `json:"cross_batch_duplicates"`
	SkippedImport  bool `json:"skipped_import"`
}

// dupSample identifies a duplicate or failed record in the audit log without
// carrying the full payload.
type dupSample struct {
	ExternalID string `json:"external_id"`
	Species    string `json:"species,omitempty"`
	CaseDate   string `json:"case_date,omitempty"`
	County     string `json:"county,omitempty"`
	State      string `json:"state,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Load persists a batch of records for one source file. Re-running on a
// byte-identical, previously completed file is a no-op: everything is
// reported as duplicate and the sink is not touched.
func (l *Loader) Load(ctx context.Context, dataset string, source models.DataSource, records []models.CaseRecord, sourcePath string, meta map[string]any) (LoadResult, error) {
	var res LoadResult

	hash, err := hashFile(sourcePath)
	if err != nil {
		return res, fmt.Errorf("hash source file: %w", err)
	}

	done, err := l.Sink.HasCompletedImport(ctx, hash)
	if err != nil {
		return res, fmt.Errorf("check completed import: %w", err)
	}
	if done {
		log.Printf("load %s: file %s already imported (hash %s), skipping %d records",
			dataset, filepath.Base(sourcePath), hash[:12], len(records))
		res.Duplicates = len(records)
		res.SkippedImport = true
		return res, nil
	}

	imp := &models.ImportRecord{
		ID:        uuid.New(),
		Source:    source,
		Filename:  filepath.Base(sourcePath),
		FileHash:  hash,
		TotalRows: len(records),
		Status:    models.ImportInProgress,
		StartedAt: time.Now(),
	}
	if err := l.Sink.CreateImport(ctx, imp); err != nil {
		return res, fmt.Errorf("create import record: %w", err)
	}

	batchSize := l.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	var errorLog []string
	var withinSamples, crossSamples, errorSamples []dupSample

	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		unique, withinDups := dedupeBatch(records[start:end])

		res.WithinBatchDup += len(withinDups)
		for _, d := range withinDups {
			if len(withinSamples) < maxLogSamples {
				withinSamples = append(withinSamples, sampleOf(d, ""))
			}
		}

		if len(unique) == 0 {
			continue
		}
		if err := l.Sink.InsertCases(ctx, unique); err == nil {
			res.Inserted += len(unique)
			continue
		}

		// Bulk path rejected the batch; retry row by row so one conflict or
		// bad record cannot sink its neighbours.
		for _, rec := range unique {
			err := l.Sink.InsertCase(ctx, rec)
			switch {
			case err == nil:
				res.Inserted++
			case errors.Is(err, models.ErrDuplicateKey):
				res.CrossBatchDup++
				if len(crossSamples) < maxLogSamples {
					crossSamples = append(crossSamples, sampleOf(rec, ""))
				}
			default:
				res.Failed++
				if len(errorSamples) < maxLogSamples {
					errorSamples = append(errorSamples, sampleOf(rec, err.Error()))
				}
				if len(errorLog) < maxErrorLogLines {
					errorLog = append(errorLog, fmt.Sprintf("external_id=%s species=%s date=%s: %v",
						rec.ExternalID, rec.AnimalSpecies, isoOrEmpty(rec.CaseDate), err))
				}
			}
		}
	}

	res.Duplicates = res.WithinBatchDup + res.CrossBatchDup

	now := time.Now()
	imp.SuccessfulRows = res.Inserted
	imp.FailedRows = res.Failed
	imp.DuplicateRows = res.Duplicates
	imp.CompletedAt = &now
	imp.DurationSeconds = now.Sub(imp.StartedAt).Seconds()
	imp.ErrorLog = strings.Join(errorLog, "\n")
	if res.Failed == 0 {
		imp.Status = models.ImportCompleted
	} else {
		imp.Status = models.ImportCompletedWithErrors
	}
	if err := l.Sink.FinishImport(ctx, imp); err != nil {
		return res, fmt.Errorf("finish import record: %w", err)
	}

	if err := l.writeRunLog(dataset, sourcePath, imp, res, meta, withinSamples, crossSamples, errorSamples); err != nil {
		// The sink already has the authoritative counts; a failed audit file
		// should not fail the run.
		log.Printf("load %s: write run log: %v", dataset, err)
	}

	log.Printf("load %s: %d inserted, %d duplicates (%d within-batch, %d cross-batch), %d failed",
		dataset, res.Inserted, res.Duplicates, res.WithinBatchDup, res.CrossBatchDup, res.Failed)
	return res, nil
}

// dedupeBatch keeps the first occurrence of each external_id and returns the
// rest separately so they can be counted as within-batch duplicates.
func dedupeBatch(batch []models.CaseRecord) (unique, dups []models.CaseRecord) {
	seen := make(map[string]bool, len(batch))
	for _, rec := range batch {
		if seen[rec.ExternalID] {
			dups = append(dups, rec)
			continue
		}
		seen[rec.ExternalID] = true
		unique = append(unique, rec)
	}
	return unique, dups
}

func sampleOf(rec models.CaseRecord, errMsg string) dupSample {
	return dupSample{
		ExternalID: rec.ExternalID,
		Species:    rec.AnimalSpecies,
		CaseDate:   isoOrEmpty(rec.CaseDate),
		County:     rec.County,
		State:      rec.StateProvince,
		Error:      errMsg,
	}
}

func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// writeRunLog emits the per-run JSON audit document to the processed-data
// directory. meta carries upstream stage stats (parsing, geocoding,
// validation) supplied by the pipeline.
func (l *Loader) writeRunLog(dataset, sourcePath string, imp *models.ImportRecord, res LoadResult, meta map[string]any, within, cross, errs []dupSample) error {
	if l.ProcessedDir == "" {
		return nil
	}
	if err := os.MkdirAll(l.ProcessedDir, 0o755); err != nil {
		return err
	}

	payload := map[string]any{
		"dataset":     dataset,
		"source_file": sourcePath,
		"import":      imp,
		"counts":      res,
		"metadata":    meta,
		"duplicate_samples": map[string]any{
			"within_batch": within,
			"cross_batch":  cross,
		},
		"error_samples": errs,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}

	name := fmt.Sprintf("%s-log_%s.json", dataset, time.Now().Format("20060102_150405"))
	return os.WriteFile(filepath.Join(l.ProcessedDir, name), data, 0o644)
}
