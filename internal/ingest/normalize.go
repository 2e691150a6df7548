package ingest

import (
	"strconv"
	"time"

	"github.com/core4ce/h5n1-tracker/internal/models"
)

// dateField reads a canonical ISO date cell written by a normalizer's
// transform step. Cells that failed parsing were already deleted, so any
// remaining value parses exactly.
func dateField(r RawRow, col string) *time.Time {
	v, ok := r.Get(col)
	if !ok {
		return nil
	}
	t, err := time.Parse(isoDate, v)
	if err != nil {
		return nil
	}
	return &t
}

// countField reads an integer cell previously coerced by parseCount.
func countField(r RawRow, col string) *int {
	v, ok := r.Get(col)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

// severityFromAffected applies the magnitude-based severity rule used for
// outbreak datasets: <=100 low, <=10000 medium, <=50000 high, else critical.
// Unknown or zero magnitude is low.
func severityFromAffected(affected *int) models.Severity {
	if affected == nil || *affected == 0 {
		return models.SeverityLow
	}
	switch {
	case *affected > 50000:
		return models.SeverityCritical
	case *affected > 10000:
		return models.SeverityHigh
	case *affected > 100:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func isoOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(isoDate)
}

func intOrEmpty(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
