package ingest

import (
	"strings"
	"testing"

	"github.com/core4ce/h5n1-tracker/internal/models"
)

func TestCommercialNormalizeSingleRow(t *testing.T) {
	rows := []RawRow{{
		"County":        "Los Angeles",
		"State":         "CA",
		"Outbreak Date": "03-15-2024",
		"Flock Type":    "Turkey",
		"Flock Size":    "500",
	}}

	records, stats := CommercialNormalizer{}.Normalize(rows)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]

	if rec.County != "Los Angeles" {
		t.Errorf("county = %q", rec.County)
	}
	if rec.StateProvince != "Ca" {
		t.Errorf("state = %q, want title-cased abbreviation", rec.StateProvince)
	}
	if got := isoOrEmpty(rec.CaseDate); got != "2024-03-15" {
		t.Errorf("case_date = %q", got)
	}
	if rec.AnimalSpecies != "Turkey" {
		t.Errorf("species = %q", rec.AnimalSpecies)
	}
	if rec.AnimalsAffected == nil || *rec.AnimalsAffected != 500 {
		t.Errorf("animals_affected = %v", rec.AnimalsAffected)
	}
	if rec.AnimalCategory != models.CategoryPoultry {
		t.Errorf("category = %q", rec.AnimalCategory)
	}
	if rec.Severity != models.SeverityMedium {
		t.Errorf("severity = %q, want medium for 500 affected", rec.Severity)
	}
	if rec.DataSource != models.SourceUSDA {
		t.Errorf("data_source = %q", rec.DataSource)
	}
	if rec.Status != models.StatusConfirmed {
		t.Errorf("status = %q", rec.Status)
	}
	if !strings.HasPrefix(rec.ExternalID, "COMM_") || len(rec.ExternalID) != len("COMM_")+12 {
		t.Errorf("external_id = %q, want COMM_ plus 12 hex chars", rec.ExternalID)
	}
	if stats.RowsRead != 1 || stats.RecordsOut != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCommercialAggregationConservation(t *testing.T) {
	row := RawRow{
		"County":        "Dane",
		"State":         "Wisconsin",
		"Outbreak Date": "01-10-2024",
		"Flock Type":    "Backyard Flock",
		"Flock Size":    "20",
	}
	rows := []RawRow{row.clone(), row.clone(), row.clone()}

	records, stats := CommercialNormalizer{}.Normalize(rows)
	if len(records) != 1 {
		t.Fatalf("expected 1 aggregated record, got %d", len(records))
	}
	rec := records[0]
	if rec.AnimalsAffected == nil || *rec.AnimalsAffected != 60 {
		t.Errorf("animals_affected = %v, want 20 x 3 = 60", rec.AnimalsAffected)
	}
	if !strings.Contains(rec.Description, "3 detections") {
		t.Errorf("description should note the aggregation: %q", rec.Description)
	}
	if stats.AggregatedGroups != 1 {
		t.Errorf("aggregated groups = %d", stats.AggregatedGroups)
	}
}

func TestCommercialDistinctFlockSizesStayDistinct(t *testing.T) {
	rows := []RawRow{
		{"County": "Dane", "State": "Wisconsin", "Outbreak Date": "01-10-2024", "Flock Type": "Turkey", "Flock Size": "500"},
		{"County": "Dane", "State": "Wisconsin", "Outbreak Date": "01-10-2024", "Flock Type": "Turkey", "Flock Size": "600"},
	}
	records, _ := CommercialNormalizer{}.Normalize(rows)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ExternalID == records[1].ExternalID {
		t.Error("distinct flock sizes should not share an external_id")
	}
}

func TestCommercialUnparseableDateDropsCell(t *testing.T) {
	rows := []RawRow{{
		"County":        "Dane",
		"State":         "Wisconsin",
		"Outbreak Date": "sometime in march",
		"Flock Type":    "Turkey",
		"Flock Size":    "500",
	}}
	records, stats := CommercialNormalizer{}.Normalize(rows)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].CaseDate != nil {
		t.Errorf("case_date should be nil for unparseable input, got %v", records[0].CaseDate)
	}
	if stats.UnparseableDates != 1 {
		t.Errorf("unparseable dates = %d", stats.UnparseableDates)
	}
}

func TestCommercialNonNumericFlockSize(t *testing.T) {
	rows := []RawRow{{
		"County":        "Dane",
		"State":         "Wisconsin",
		"Outbreak Date": "01-10-2024",
		"Flock Type":    "Turkey",
		"Flock Size":    "unknown",
	}}
	records, stats := CommercialNormalizer{}.Normalize(rows)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].AnimalsAffected != nil {
		t.Errorf("animals_affected should be nil, got %v", *records[0].AnimalsAffected)
	}
	if records[0].Severity != models.SeverityLow {
		t.Errorf("severity = %q, want low for unknown magnitude", records[0].Severity)
	}
	if stats.NonNumericCounts != 1 {
		t.Errorf("non-numeric counts = %d", stats.NonNumericCounts)
	}
}
