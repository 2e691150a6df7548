package ingest

import (
	"fmt"
	"strings"

	"github.com/core4ce/h5n1-tracker/internal/models"
)

// domesticMammals is the keyword vocabulary used to split mammal detections
// into domestic vs wild. Matched as substrings of the lowercased species
// name, so "Domestic Cat" and "Feral Domestic Cat" both count.
var domesticMammals = []string{
	"domestic cat",
	"domestic dog",
	"domestic cattle",
	"domestic pig",
	"dairy cattle",
	"beef cattle",
	"alpaca",
	"llama",
	"goat",
	"sheep",
	"horse",
}

// MammalNormalizer handles the USDA mammal HPAI detection export.
//
// Columns: State, County, Date Collected, Date Detected, HPAI Strain,
// Species. Like wild birds, each row is one sampled animal and rows sharing
// the full event key collapse into one record. animal_category is inferred
// per row from the species name; domestic mammals score high severity
// because of human-contact risk.
type MammalNormalizer struct{}

func (MammalNormalizer) Dataset() string { return "mammal" }
func (MammalNormalizer) Source() models.DataSource { return models.SourceUSDA }

func (n MammalNormalizer) Normalize(rows []RawRow) ([]models.CaseRecord, ParseStats) {
	stats := ParseStats{RowsRead: len(rows)}

	work := make([]RawRow, 0, len(rows))
	for _, row := range rows {
		r := row.clone()

		for _, col := range []string{"Date Collected", "Date Detected"} {
			if v, ok := r.Get(col); ok {
				if t, err := parseDateFlexible(v); err == nil {
					r[col] = t.Format(isoDate)
				} else {
					delete(r, col)
					stats.UnparseableDates++
				}
			}
		}
		for _, col := range []string{"State", "County", "Species"} {
			if v, ok := r.Get(col); ok {
				r[col] = titleCase(scrubText(v))
			}
		}
		if v, ok := r.Get("HPAI Strain"); ok {
			r["HPAI Strain"] = scrubText(v)
		}

		work = append(work, r)
	}

	groups := groupRows(work, []string{"County", "State", "Date Collected", "Date Detected", "Species", "HPAI Strain"})

	records := make([]models.CaseRecord, 0, len(groups))
	for _, g := range groups {
		if g.count > 1 {
			stats.AggregatedGroups++
		}

		rec := models.CaseRecord{
			Status:     models.StatusConfirmed,
			Country:    "USA",
			DataSource: models.SourceUSDA,
		}
		rec.County, _ = g.first.Get("County")
		rec.StateProvince, _ = g.first.Get("State")
		rec.AnimalSpecies, _ = g.first.Get("Species")
		rec.CaseDate = dateField(g.first, "Date Collected")
		rec.ReportDate = dateField(g.first, "Date Detected")

		rec.AnimalCategory = mammalCategory(rec.AnimalSpecies)
		if rec.AnimalCategory == models.CategoryDomesticMammal {
			rec.Severity = models.SeverityHigh
		} else {
			rec.Severity = models.SeverityMedium
		}

		affected := g.count
		rec.AnimalsAffected = &affected
		if g.count > 1 {
			rec.Description = fmt.Sprintf("Aggregated from %d individual mammal detections", g.count)
		}

		if strain, ok := g.first.Get("HPAI Strain"); ok {
			rec.ExtraMetadata = map[string]string{"hpai_strain": strain}
		}

		rec.ExternalID = externalID("MAMM",
			rec.County,
			rec.StateProvince,
			isoOrEmpty(rec.CaseDate),
			isoOrEmpty(rec.ReportDate),
			rec.AnimalSpecies,
			g.first["HPAI Strain"],
		)

		records = append(records, rec)
	}

	stats.RecordsOut = len(records)
	return records, stats
}

// mammalCategory infers domestic vs wild from the species name.
func mammalCategory(species string) models.AnimalCategory {
	if species == "" {
		return models.CategoryWildMammal
	}
	lower := strings.ToLower(species)
	for _, kw := range domesticMammals {
		if strings.Contains(lower, kw) {
			return models.CategoryDomesticMammal
		}
	}
	return models.CategoryWildMammal
}
