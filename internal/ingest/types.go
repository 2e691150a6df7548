package ingest

import (
	"github.com/core4ce/h5n1-tracker/internal/models"
)

// RawRow is one CSV row keyed by (trimmed) source header name. A missing key
// means the cell was empty or failed type coercion; downstream code never
// distinguishes the two, matching how the source exports treat blanks.
type RawRow map[string]string

// Get returns the value for col and whether it was present and non-empty.
func (r RawRow) Get(col string) (string, bool) {
	v, ok := r[col]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (r RawRow) clone() RawRow {
	out := make(RawRow, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Normalizer turns raw rows of one recognized dataset shape into canonical
// case records. Implementations own column mapping, date formats, duplicate
// aggregation and external-id generation for their dataset.
type Normalizer interface {
	// Dataset is the short name used for registry lookup and log file naming.
	Dataset() string
	Source() models.DataSource
	Normalize(rows []RawRow) ([]models.CaseRecord, ParseStats)
}

// ParseStats summarizes one normalization pass for the audit log.
type ParseStats struct {
	RowsRead         int `json:"rows_read"`
	RecordsOut       int `json:"records_out"`
	AggregatedGroups int `json:"aggregated_groups"`
	UnparseableDates int `json:"unparseable_dates"`
	NonNumericCounts int `json:"non_numeric_counts"`
}
