package ingest

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// isoDate is the canonical in-pipeline date layout. Normalizers rewrite every
// parsed date cell to this layout before aggregation so that grouping keys
// compare equal regardless of the source format.
const isoDate = "2006-01-02"

// commercialDate is the literal layout of the commercial poultry export
// (e.g. "12-31-2024").
const commercialDate = "01-02-2006"

// parseDateFlexible parses the free-form date strings found in the wild bird
// and mammal exports. Layouts are tried most-specific first; date-only
// layouts win over anything ambiguous.
func parseDateFlexible(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t, nil
	}

	layouts := []string{
		isoDate,
		"2006-01-02 15:04:05",
		"1/2/2006",
		"01/02/2006",
		"1-2-2006",
		commercialDate,
		"Jan 2, 2006",
		"January 2, 2006",
		"2 Jan 2006",
		"2 January 2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, nil
		}
	}

	if t := parseDateWithRegex(text); !t.IsZero() {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", text)
}

// parseDateWithRegex extracts a date embedded in surrounding text.
func parseDateWithRegex(text string) time.Time {
	isoRegex := regexp.MustCompile(`\b(20\d{2})-(\d{2})-(\d{2})\b`)
	if m := isoRegex.FindString(text); m != "" {
		if t, err := time.Parse(isoDate, m); err == nil {
			return t
		}
	}

	usRegex := regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(20\d{2})\b`)
	if m := usRegex.FindStringSubmatch(text); len(m) == 4 {
		dateStr := fmt.Sprintf("%s/%s/%s", m[1], m[2], m[3])
		if t, err := time.Parse("1/2/2006", dateStr); err == nil {
			return t
		}
	}

	monthRegex := regexp.MustCompile(`\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+(\d{1,2}),?\s+(20\d{2})\b`)
	if m := monthRegex.FindStringSubmatch(text); len(m) == 4 {
		dateStr := fmt.Sprintf("%s %s %s", m[1], m[2], m[3])
		for _, layout := range []string{"January 2 2006", "Jan 2 2006"} {
			if t, err := time.Parse(layout, dateStr); err == nil {
				return t
			}
		}
	}

	return time.Time{}
}
