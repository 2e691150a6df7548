package ingest

import (
	"fmt"
	"strconv"
	"time"

	"github.com/core4ce/h5n1-tracker/internal/models"
)

// CommercialNormalizer handles the USDA commercial/backyard poultry flock
// export.
//
// Columns: County, State, Outbreak Date, Flock Type, Flock Size.
// Dates are the literal MM-DD-YYYY layout. Repeated reports of the same
// flock size in the same county on the same day are one physical outbreak
// reported N times; they collapse into one record whose animals_affected is
// flock size times the report count.
type CommercialNormalizer struct{}

func (CommercialNormalizer) Dataset() string { return "commercial" }
func (CommercialNormalizer) Source() models.DataSource { return models.SourceUSDA }

func (n CommercialNormalizer) Normalize(rows []RawRow) ([]models.CaseRecord, ParseStats) {
	stats := ParseStats{RowsRead: len(rows)}

	work := make([]RawRow, 0, len(rows))
	for _, row := range rows {
		r := row.clone()

		if v, ok := r.Get("Outbreak Date"); ok {
			if t, err := time.Parse(commercialDate, v); err == nil {
				r["Outbreak Date"] = t.Format(isoDate)
			} else {
				delete(r, "Outbreak Date")
				stats.UnparseableDates++
			}
		}
		if v, ok := r.Get("County"); ok {
			r["County"] = titleCase(scrubText(v))
		}
		if v, ok := r.Get("State"); ok {
			r["State"] = titleCase(scrubText(v))
		}
		if v, ok := r.Get("Flock Type"); ok {
			r["Flock Type"] = scrubText(v)
		}
		if v, ok := r.Get("Flock Size"); ok {
			if c, numeric := parseCount(v); numeric {
				r["Flock Size"] = strconv.Itoa(c)
			} else {
				delete(r, "Flock Size")
				stats.NonNumericCounts++
			}
		}

		work = append(work, r)
	}

	// Aggregate before renaming: the grouping key uses source header names.
	groups := groupRows(work, []string{"County", "State", "Outbreak Date", "Flock Type", "Flock Size"})

	records := make([]models.CaseRecord, 0, len(groups))
	for _, g := range groups {
		if g.count > 1 {
			stats.AggregatedGroups++
		}

		rec := models.CaseRecord{
			Status:         models.StatusConfirmed,
			AnimalCategory: models.CategoryPoultry,
			Country:        "USA",
			DataSource:     models.SourceUSDA,
		}
		rec.County, _ = g.first.Get("County")
		rec.StateProvince, _ = g.first.Get("State")
		rec.AnimalSpecies, _ = g.first.Get("Flock Type")
		rec.CaseDate = dateField(g.first, "Outbreak Date")

		if size := countField(g.first, "Flock Size"); size != nil {
			total := *size * g.count
			rec.AnimalsAffected = &total
			if g.count > 1 {
				rec.Description = fmt.Sprintf("Aggregated from %d detections of %d birds each (%d total)",
					g.count, *size, total)
			}
		}

		rec.Severity = severityFromAffected(rec.AnimalsAffected)
		rec.ExternalID = externalID("COMM",
			rec.County,
			rec.StateProvince,
			isoOrEmpty(rec.CaseDate),
			rec.AnimalSpecies,
			intOrEmpty(rec.AnimalsAffected),
		)

		records = append(records, rec)
	}

	stats.RecordsOut = len(records)
	return records, stats
}
