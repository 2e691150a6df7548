package ingest

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var textPolicy = bluemonday.StrictPolicy()

// normalizeSpace collapses multiple spaces into one and trims the string.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// scrubText strips any markup fragments from a free-text cell and collapses
// whitespace. Source exports occasionally carry stray tags in species and
// agency fields.
func scrubText(s string) string {
	return normalizeSpace(textPolicy.Sanitize(s))
}

// titleCase capitalizes the first letter of every word and lowercases the
// rest, treating any non-letter as a word boundary ("ST. LOUIS" -> "St.
// Louis", "CA" -> "Ca"). The location tables downstream are keyed on this
// casing, so it is applied uniformly to county/state/species fields.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}

// parseCount coerces a magnitude cell to a non-negative integer. Returns
// false for anything non-numeric; callers null the cell rather than fail.
func parseCount(s string) (int, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

// metadataKey converts a source header to its snake_case metadata bag key
// ("HPAI Strain" -> "hpai_strain").
func metadataKey(header string) string {
	return strings.ReplaceAll(strings.ToLower(header), " ", "_")
}
