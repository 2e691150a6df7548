package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicateKey is returned by a case sink when an insert hits the unique
// constraint on external_id. The loader relies on errors.Is against this to
// tell duplicates apart from real failures.
var ErrDuplicateKey = errors.New("duplicate external_id")

type ImportStatus string

const (
	ImportPending             ImportStatus = "pending"
	ImportInProgress          ImportStatus = "in_progress"
	ImportCompleted           ImportStatus = "completed"
	ImportCompletedWithErrors ImportStatus = "completed_with_errors"
)

// ImportRecord is the audit row for one ingestion attempt of one source file,
// keyed by the file's content hash. A crashed run leaves it in_progress; a
// re-run of the unchanged file short-circuits only once a run has reached
// completed.
type ImportRecord struct {
	ID              uuid.UUID    `json:"id"`
	Source          DataSource   `json:"source"`
	Filename        string       `json:"filename"`
	FileHash        string       `json:"file_hash"`
	TotalRows       int          `json:"total_rows"`
	SuccessfulRows  int          `json:"successful_rows"`
	FailedRows      int          `json:"failed_rows"`
	DuplicateRows   int          `json:"duplicate_rows"`
	Status          ImportStatus `json:"status"`
	ErrorLog        string       `json:"error_log,omitempty"`
	StartedAt       time.Time    `json:"started_at"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
	DurationSeconds float64      `json:"duration_seconds"`
}
