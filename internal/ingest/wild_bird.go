package ingest

import (
	"fmt"

	"github.com/core4ce/h5n1-tracker/internal/models"
)

// wildBirdMetadataCols are source fields that have no canonical home and
// travel in the extra_metadata bag instead.
var wildBirdMetadataCols = []string{"HPAI Strain", "WOAH Classification", "Sampling Method", "Submitting Agency"}

// WildBirdNormalizer handles the USDA wild bird HPAI detection export.
//
// Columns: State, County, Collection Date, Date Detected, HPAI Strain,
// Bird Species, WOAH Classification, Sampling Method, Submitting Agency.
// Each source row is one sampled bird; rows sharing county, state, both
// dates, species and strain are one detection event and collapse into a
// single record whose animals_affected is the row count.
type WildBirdNormalizer struct{}

func (WildBirdNormalizer) Dataset() string { return "wild_bird" }
func (WildBirdNormalizer) Source() models.DataSource { return models.SourceUSDA }

func (n WildBirdNormalizer) Normalize(rows []RawRow) ([]models.CaseRecord, ParseStats) {
	stats := ParseStats{RowsRead: len(rows)}

	work := make([]RawRow, 0, len(rows))
	for _, row := range rows {
		r := row.clone()

		for _, col := range []string{"Collection Date", "Date Detected"} {
			if v, ok := r.Get(col); ok {
				if t, err := parseDateFlexible(v); err == nil {
					r[col] = t.Format(isoDate)
				} else {
					delete(r, col)
					stats.UnparseableDates++
				}
			}
		}
		for _, col := range []string{"State", "County", "Bird Species"} {
			if v, ok := r.Get(col); ok {
				r[col] = titleCase(scrubText(v))
			}
		}
		for _, col := range wildBirdMetadataCols {
			if v, ok := r.Get(col); ok {
				r[col] = scrubText(v)
			}
		}

		work = append(work, r)
	}

	groups := groupRows(work, []string{"County", "State", "Collection Date", "Date Detected", "Bird Species", "HPAI Strain"})

	records := make([]models.CaseRecord, 0, len(groups))
	for _, g := range groups {
		if g.count > 1 {
			stats.AggregatedGroups++
		}

		rec := models.CaseRecord{
			Status:         models.StatusConfirmed,
			AnimalCategory: models.CategoryWildBird,
			Country:        "USA",
			DataSource:     models.SourceUSDA,
			// Individual detections; cluster-driven escalation is a
			// downstream concern.
			Severity: models.SeverityLow,
		}
		rec.County, _ = g.first.Get("County")
		rec.StateProvince, _ = g.first.Get("State")
		rec.AnimalSpecies, _ = g.first.Get("Bird Species")
		rec.CaseDate = dateField(g.first, "Collection Date")
		rec.ReportDate = dateField(g.first, "Date Detected")

		affected := g.count
		rec.AnimalsAffected = &affected
		if g.count > 1 {
			rec.Description = fmt.Sprintf("Aggregated from %d individual bird detections", g.count)
		}

		for _, col := range wildBirdMetadataCols {
			if v, ok := g.first.Get(col); ok {
				if rec.ExtraMetadata == nil {
					rec.ExtraMetadata = make(map[string]string)
				}
				rec.ExtraMetadata[metadataKey(col)] = v
			}
		}

		strain := g.first["HPAI Strain"]
		rec.ExternalID = externalID("WILD",
			rec.County,
			rec.StateProvince,
			isoOrEmpty(rec.CaseDate),
			isoOrEmpty(rec.ReportDate),
			rec.AnimalSpecies,
			strain,
		)

		records = append(records, rec)
	}

	stats.RecordsOut = len(records)
	return records, stats
}
