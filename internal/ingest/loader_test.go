package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/core4ce/h5n1-tracker/internal/models"
)

// memSink is an in-memory CaseSink with the same uniqueness semantics as the
// real store: bulk insert is all-or-nothing on a conflict.
type memSink struct {
	cases     map[string]models.CaseRecord
	completed map[string]bool
	imports   []*models.ImportRecord
}

func newMemSink() *memSink {
	return &memSink{
		cases:     make(map[string]models.CaseRecord),
		completed: make(map[string]bool),
	}
}

func (m *memSink) InsertCases(_ context.Context, records []models.CaseRecord) error {
	for _, rec := range records {
		if _, ok := m.cases[rec.ExternalID]; ok {
			return fmt.Errorf("%w: %s", models.ErrDuplicateKey, rec.ExternalID)
		}
	}
	for _, rec := range records {
		m.cases[rec.ExternalID] = rec
	}
	return nil
}

func (m *memSink) InsertCase(_ context.Context, rec models.CaseRecord) error {
	if _, ok := m.cases[rec.ExternalID]; ok {
		return fmt.Errorf("%w: %s", models.ErrDuplicateKey, rec.ExternalID)
	}
	m.cases[rec.ExternalID] = rec
	return nil
}

func (m *memSink) HasCompletedImport(_ context.Context, fileHash string) (bool, error) {
	return m.completed[fileHash], nil
}

func (m *memSink) CreateImport(_ context.Context, imp *models.ImportRecord) error {
	m.imports = append(m.imports, imp)
	return nil
}

func (m *memSink) FinishImport(_ context.Context, imp *models.ImportRecord) error {
	if imp.Status == models.ImportCompleted {
		m.completed[imp.FileHash] = true
	}
	return nil
}

func writeSourceFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "source.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testRecord(extID string) models.CaseRecord {
	d := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	return models.CaseRecord{
		ExternalID:     extID,
		CaseDate:       &d,
		Status:         models.StatusConfirmed,
		Severity:       models.SeverityLow,
		AnimalCategory: models.CategoryWildBird,
		Country:        "USA",
		DataSource:     models.SourceUSDA,
	}
}

func TestLoaderWithinBatchDedup(t *testing.T) {
	dir := t.TempDir()
	path := writeSourceFile(t, dir, "batch one")

	records := make([]models.CaseRecord, 0, 1000)
	for i := 0; i < 10; i++ {
		records = append(records, testRecord("WILD_aaaaaaaaaaaa"))
	}
	for i := 10; i < 1000; i++ {
		records = append(records, testRecord(fmt.Sprintf("WILD_%012d", i)))
	}

	sink := newMemSink()
	loader := &Loader{Sink: sink, ProcessedDir: dir}
	res, err := loader.Load(context.Background(), "wild_bird", models.SourceUSDA, records, path, nil)
	if err != nil {
		t.Fatal(err)
	}

	if res.Inserted != 991 {
		t.Errorf("inserted = %d, want 991", res.Inserted)
	}
	if res.WithinBatchDup != 9 {
		t.Errorf("within-batch duplicates = %d, want 9", res.WithinBatchDup)
	}
	if res.CrossBatchDup != 0 {
		t.Errorf("cross-batch duplicates = %d, want 0", res.CrossBatchDup)
	}
	if len(sink.cases) != 991 {
		t.Errorf("sink holds %d cases, want 991", len(sink.cases))
	}
}

func TestLoaderIdempotentReRun(t *testing.T) {
	dir := t.TempDir()
	path := writeSourceFile(t, dir, "same bytes both runs")

	records := []models.CaseRecord{testRecord("COMM_000000000001"), testRecord("COMM_000000000002")}
	sink := newMemSink()
	loader := &Loader{Sink: sink, ProcessedDir: dir}

	first, err := loader.Load(context.Background(), "commercial", models.SourceUSDA, records, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Inserted != 2 || first.Duplicates != 0 {
		t.Fatalf("first run = %+v", first)
	}

	second, err := loader.Load(context.Background(), "commercial", models.SourceUSDA, records, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if second.Inserted != 0 || second.Failed != 0 {
		t.Errorf("second run should be a no-op: %+v", second)
	}
	if second.Duplicates != len(records) {
		t.Errorf("second run duplicates = %d, want %d", second.Duplicates, len(records))
	}
	if !second.SkippedImport {
		t.Error("second run should short-circuit on the file hash")
	}
	if len(sink.cases) != 2 {
		t.Errorf("sink holds %d cases after re-run, want 2", len(sink.cases))
	}
}

func TestLoaderCrossBatchFallback(t *testing.T) {
	dir := t.TempDir()
	path := writeSourceFile(t, dir, "new file, partially seen rows")

	sink := newMemSink()
	sink.cases["COMM_000000000001"] = testRecord("COMM_000000000001")

	records := []models.CaseRecord{
		testRecord("COMM_000000000001"),
		testRecord("COMM_000000000002"),
		testRecord("COMM_000000000003"),
	}
	loader := &Loader{Sink: sink, ProcessedDir: dir}
	res, err := loader.Load(context.Background(), "commercial", models.SourceUSDA, records, path, nil)
	if err != nil {
		t.Fatal(err)
	}

	if res.Inserted != 2 {
		t.Errorf("inserted = %d, want 2", res.Inserted)
	}
	if res.CrossBatchDup != 1 {
		t.Errorf("cross-batch duplicates = %d, want 1", res.CrossBatchDup)
	}
	if res.Failed != 0 {
		t.Errorf("failed = %d, want 0", res.Failed)
	}
	if len(sink.cases) != 3 {
		t.Errorf("sink holds %d cases, want 3", len(sink.cases))
	}
}

// flakySink fails inserts for one external_id while fail is set, simulating
// a transient per-record construction error at the sink.
type flakySink struct {
	*memSink
	failID string
	fail   bool
}

func (f *flakySink) InsertCases(ctx context.Context, records []models.CaseRecord) error {
	if f.fail {
		for _, rec := range records {
			if rec.ExternalID == f.failID {
				return fmt.Errorf("enum coercion failed for %s", rec.ExternalID)
			}
		}
	}
	return f.memSink.InsertCases(ctx, records)
}

func (f *flakySink) InsertCase(ctx context.Context, rec models.CaseRecord) error {
	if f.fail && rec.ExternalID == f.failID {
		return fmt.Errorf("enum coercion failed for %s", rec.ExternalID)
	}
	return f.memSink.InsertCase(ctx, rec)
}

func TestLoaderRetriesAfterErrorCompletedRun(t *testing.T) {
	dir := t.TempDir()
	path := writeSourceFile(t, dir, "same bytes, second run retries failures")

	records := []models.CaseRecord{testRecord("COMM_000000000001"), testRecord("COMM_000000000002")}
	sink := &flakySink{memSink: newMemSink(), failID: "COMM_000000000002", fail: true}
	loader := &Loader{Sink: sink, ProcessedDir: dir}

	first, err := loader.Load(context.Background(), "commercial", models.SourceUSDA, records, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if first.Inserted != 1 || first.Failed != 1 {
		t.Fatalf("first run = %+v, want 1 inserted and 1 failed", first)
	}
	if sink.imports[0].Status != models.ImportCompletedWithErrors {
		t.Fatalf("first import status = %q", sink.imports[0].Status)
	}

	// Only a fully completed run may block re-ingestion of the same bytes;
	// a completed_with_errors run keeps its failed rows retryable.
	sink.fail = false
	second, err := loader.Load(context.Background(), "commercial", models.SourceUSDA, records, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if second.SkippedImport {
		t.Fatal("completed_with_errors run must not short-circuit the re-run")
	}
	if second.Inserted != 1 {
		t.Errorf("second run inserted = %d, want the previously failed row", second.Inserted)
	}
	if second.CrossBatchDup != 1 {
		t.Errorf("second run cross-batch duplicates = %d, want 1", second.CrossBatchDup)
	}
	if len(sink.cases) != 2 {
		t.Errorf("sink holds %d cases after retry, want 2", len(sink.cases))
	}
}

func TestLoaderCountsAccount(t *testing.T) {
	dir := t.TempDir()
	path := writeSourceFile(t, dir, "accounting check")

	records := []models.CaseRecord{
		testRecord("MAMM_000000000001"),
		testRecord("MAMM_000000000001"),
		testRecord("MAMM_000000000002"),
	}
	sink := newMemSink()
	loader := &Loader{Sink: sink, ProcessedDir: dir}
	res, err := loader.Load(context.Background(), "mammal", models.SourceUSDA, records, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Inserted + res.Failed + res.Duplicates; got != len(records) {
		t.Errorf("inserted+failed+duplicates = %d, want total %d", got, len(records))
	}

	if len(sink.imports) != 1 {
		t.Fatalf("expected 1 import record, got %d", len(sink.imports))
	}
	imp := sink.imports[0]
	if imp.Status != models.ImportCompleted {
		t.Errorf("import status = %q", imp.Status)
	}
	if imp.TotalRows != 3 || imp.SuccessfulRows != 2 || imp.DuplicateRows != 1 {
		t.Errorf("import counts = %+v", imp)
	}
	if imp.CompletedAt == nil {
		t.Error("import completed_at not set")
	}
}

func TestDedupeBatch(t *testing.T) {
	batch := []models.CaseRecord{
		testRecord("A"), testRecord("B"), testRecord("A"), testRecord("C"), testRecord("A"),
	}
	unique, dups := dedupeBatch(batch)
	if len(unique) != 3 || len(dups) != 2 {
		t.Fatalf("unique=%d dups=%d, want 3 and 2", len(unique), len(dups))
	}
	if unique[0].ExternalID != "A" || unique[1].ExternalID != "B" || unique[2].ExternalID != "C" {
		t.Errorf("unique records out of first-occurrence order")
	}
}
