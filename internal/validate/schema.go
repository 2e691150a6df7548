package validate

import (
	"fmt"
	"time"

	"github.com/core4ce/h5n1-tracker/internal/models"
)

// IssueSeverity grades a validation finding. Only IssueError on a null
// case_date drops rows; everything else is advisory.
type IssueSeverity string

const (
	SeverityWarning  IssueSeverity = "warning"
	SeverityError    IssueSeverity = "error"
	SeverityCritical IssueSeverity = "critical"
)

// Issue is one typed validation finding covering Count rows.
type Issue struct {
	Type     string        `json:"type"`
	Field    string        `json:"field"`
	Message  string        `json:"message"`
	Count    int           `json:"count"`
	Severity IssueSeverity `json:"severity"`
}

// Validate checks a normalized batch against the canonical case schema.
// It returns the records that may proceed to loading and the list of
// findings. Records are never mutated; the single hard rule is that rows
// with a null case_date are removed, since the sink cannot store them.
func Validate(records []models.CaseRecord) ([]models.CaseRecord, []Issue) {
	var issues []Issue

	requiredFieldIssues(records, &issues)

	nullCaseDate := 0
	futureCaseDate := 0
	badLat := 0
	badLon := 0
	deadExceeds := 0
	badCategory := 0
	badSource := 0
	badStatus := 0
	badSeverity := 0

	now := time.Now()
	accepted := make([]models.CaseRecord, 0, len(records))
	for _, rec := range records {
		if rec.CaseDate == nil {
			nullCaseDate++
		} else {
			accepted = append(accepted, rec)
			if rec.CaseDate.After(now) {
				futureCaseDate++
			}
		}

		if rec.AnimalCategory != "" && !rec.AnimalCategory.Valid() {
			badCategory++
		}
		if rec.DataSource != "" && !rec.DataSource.Valid() {
			badSource++
		}
		if rec.Status != "" && !rec.Status.Valid() {
			badStatus++
		}
		if rec.Severity != "" && !rec.Severity.Valid() {
			badSeverity++
		}

		if rec.Latitude != nil && (*rec.Latitude < -90 || *rec.Latitude > 90) {
			badLat++
		}
		if rec.Longitude != nil && (*rec.Longitude < -180 || *rec.Longitude > 180) {
			badLon++
		}
		if rec.AnimalsDead != nil && rec.AnimalsAffected != nil && *rec.AnimalsDead > *rec.AnimalsAffected {
			deadExceeds++
		}
	}

	add := func(n int, typ, field, msg string, sev IssueSeverity) {
		if n > 0 {
			issues = append(issues, Issue{Type: typ, Field: field, Message: msg, Count: n, Severity: sev})
		}
	}

	add(nullCaseDate, "null_value", "case_date", "case_date is null; rows dropped", SeverityError)
	add(futureCaseDate, "future_date", "case_date", "case_date is in the future", SeverityWarning)
	add(badCategory, "invalid_enum", "animal_category",
		fmt.Sprintf("value outside %v", models.AnimalCategories()), SeverityError)
	add(badSource, "invalid_enum", "data_source",
		fmt.Sprintf("value outside %v", models.DataSources()), SeverityError)
	add(badStatus, "invalid_enum", "status",
		fmt.Sprintf("value outside %v", models.CaseStatuses()), SeverityError)
	add(badSeverity, "invalid_enum", "severity",
		fmt.Sprintf("value outside %v", models.Severities()), SeverityWarning)
	add(badLat, "out_of_range", "latitude", "latitude outside [-90, 90]", SeverityError)
	add(badLon, "out_of_range", "longitude", "longitude outside [-180, 180]", SeverityError)
	add(deadExceeds, "inconsistent_counts", "animals_dead", "animals_dead exceeds animals_affected", SeverityWarning)

	return accepted, issues
}

// requiredFieldIssues reports columns that are absent from the entire batch,
// which usually means a source header rename broke the column map.
func requiredFieldIssues(records []models.CaseRecord, issues *[]Issue) {
	if len(records) == 0 {
		return
	}
	present := map[string]bool{}
	for _, rec := range records {
		if rec.CaseDate != nil {
			present["case_date"] = true
		}
		if rec.AnimalCategory != "" {
			present["animal_category"] = true
		}
		if rec.Country != "" {
			present["country"] = true
		}
		if rec.DataSource != "" {
			present["data_source"] = true
		}
		if rec.Status != "" {
			present["status"] = true
		}
	}
	for _, field := range []string{"case_date", "animal_category", "country", "data_source", "status"} {
		if !present[field] {
			*issues = append(*issues, Issue{
				Type:     "missing_column",
				Field:    field,
				Message:  "required field absent from every record in batch",
				Count:    len(records),
				Severity: SeverityCritical,
			})
		}
	}
}
