package geo

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/core4ce/h5n1-tracker/internal/models"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MatchKind records which step of the fallback chain produced a hit.
type MatchKind string

const (
	MatchCounty          MatchKind = "county"
	MatchIndependentCity MatchKind = "independent-city"
	MatchCity            MatchKind = "city"
	MatchCountyFallback  MatchKind = "county-fallback"
	MatchStateCentroid   MatchKind = "state-centroid"
)

// Result is a successful resolution.
type Result struct {
	Coordinates
	Kind MatchKind
}

// Failure describes one record that could not be placed on the map.
type Failure struct {
	Index  int    `json:"index"`
	County string `json:"county"`
	State  string `json:"state"`
	Reason string `json:"reason"`
}

// Resolver maps (county, state) pairs and free-text place names to centroid
// coordinates using static lookup tables. Lookup tables are loaded once and
// never mutated afterwards; the cache is private to the instance so that
// separate runs and tests stay hermetic.
type Resolver struct {
	counties map[string]Coordinates // "name, state" -> centroid, lowercased
	cities   map[string]Coordinates
	cache    map[string]Result
}

// NewResolver returns a resolver with empty lookup tables. Without a loaded
// table it still serves state-centroid fallbacks.
func NewResolver() *Resolver {
	return &Resolver{
		counties: make(map[string]Coordinates),
		cities:   make(map[string]Coordinates),
		cache:    make(map[string]Result),
	}
}

// LoadResolver builds a resolver from a GNIS-style lookup CSV. An empty path
// is allowed and yields a fallback-only resolver.
func LoadResolver(path string) (*Resolver, error) {
	r := NewResolver()
	if path == "" {
		return r, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geo lookup %s: %w", path, err)
	}
	defer f.Close()
	if err := r.LoadLookup(f); err != nil {
		return nil, fmt.Errorf("load geo lookup %s: %w", path, err)
	}
	return r, nil
}

// LoadLookup reads centroid rows from a CSV with Name, State Name,
// Primary Lat Dec, Primary Long Dec and Class Code columns. Class codes
// starting with H populate the county table, C the city table; everything
// else is skipped.
func (r *Resolver) LoadLookup(reader io.Reader) error {
	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("read lookup header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, want := range []string{"Name", "State Name", "Primary Lat Dec", "Primary Long Dec", "Class Code"} {
		if _, ok := col[want]; !ok {
			return fmt.Errorf("lookup table missing column %q", want)
		}
	}

	cell := func(row []string, name string) string {
		i := col[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	loaded := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read lookup row: %w", err)
		}

		lat, errLat := strconv.ParseFloat(cell(row, "Primary Lat Dec"), 64)
		lon, errLon := strconv.ParseFloat(cell(row, "Primary Long Dec"), 64)
		if errLat != nil || errLon != nil {
			continue
		}
		name := strings.ToLower(normalizeSpace(cell(row, "Name")))
		state := strings.ToLower(normalizeSpace(cell(row, "State Name")))
		if name == "" || state == "" {
			continue
		}
		key := name + ", " + state

		switch class := cell(row, "Class Code"); {
		case strings.HasPrefix(class, "H"):
			r.counties[key] = Coordinates{lat, lon}
			loaded++
		case strings.HasPrefix(class, "C"):
			r.cities[key] = Coordinates{lat, lon}
			loaded++
		}
	}
	log.Printf("geo: loaded %d centroid entries (%d counties, %d cities)", loaded, len(r.counties), len(r.cities))
	return nil
}

// Resolve walks the fallback chain: county table, city table under the
// county's spelling variants, free-text place name against city then county
// tables, and finally the static state centroid. State is matched as given
// after title-casing; two-letter abbreviations will not hit the centroid
// table. That limitation is intentional.
func (r *Resolver) Resolve(county, state, place string) (Result, bool) {
	stateKey := strings.ToLower(normalizeSpace(state))
	if stateKey == "" {
		return Result{}, false
	}

	countyKey := strings.ToLower(normalizeSpace(county))
	placeKey := strings.ToLower(normalizeSpace(place))
	cacheKey := countyKey + "|" + stateKey + "|" + placeKey
	if res, ok := r.cache[cacheKey]; ok {
		return res, true
	}

	res, ok := r.resolveUncached(countyKey, stateKey, placeKey, state)
	if ok {
		r.cache[cacheKey] = res
	}
	return res, ok
}

func (r *Resolver) resolveUncached(county, state, place, rawState string) (Result, bool) {
	if county != "" {
		variants := countyVariants(county)
		for _, v := range variants {
			if c, ok := r.counties[v+", "+state]; ok {
				return Result{c, MatchCounty}, true
			}
		}
		for _, v := range variants {
			if c, ok := r.cities[v+", "+state]; ok {
				return Result{c, MatchIndependentCity}, true
			}
		}
	}

	if place != "" {
		p := stripPlacePrefix(place)
		if c, ok := r.cities[p+", "+state]; ok {
			return Result{c, MatchCity}, true
		}
		if c, ok := r.counties[p+", "+state]; ok {
			return Result{c, MatchCountyFallback}, true
		}
	}

	if c, ok := stateCentroids[titleWords(rawState)]; ok {
		return Result{c, MatchStateCentroid}, true
	}
	return Result{}, false
}

// ResolveAll geocodes a batch in place, skipping records that already carry
// coordinates, and returns the records plus the ones it could not place.
func (r *Resolver) ResolveAll(records []models.CaseRecord) ([]models.CaseRecord, []Failure) {
	resolved := 0
	var failures []Failure
	for i := range records {
		rec := &records[i]
		if rec.Latitude != nil && rec.Longitude != nil {
			resolved++
			continue
		}
		if res, ok := r.Resolve(rec.County, rec.StateProvince, rec.City); ok {
			lat, lon := res.Lat, res.Lon
			rec.Latitude = &lat
			rec.Longitude = &lon
			resolved++
			continue
		}
		reason := "county not found in lookup table"
		if rec.County == "" || rec.StateProvince == "" {
			reason = "missing county or state"
		}
		failures = append(failures, Failure{Index: i, County: rec.County, State: rec.StateProvince, Reason: reason})
	}
	if len(records) > 0 {
		log.Printf("geo: resolved %d/%d records (%.1f%%)", resolved, len(records),
			float64(resolved)/float64(len(records))*100)
	}
	return records, failures
}

var countySuffixes = []string{" county", " parish", " borough", " census area", " (ca)", " city"}

// cleanCounty lowercases and strips the jurisdiction suffixes that source
// files append inconsistently.
func cleanCounty(name string) string {
	n := strings.ToLower(normalizeSpace(name))
	for stripped := true; stripped; {
		stripped = false
		for _, suf := range countySuffixes {
			if strings.HasSuffix(n, suf) {
				n = strings.TrimSpace(strings.TrimSuffix(n, suf))
				stripped = true
			}
		}
	}
	return n
}

// countyVariants generates the spelling variants tried against the lookup
// tables: the cleaned name, the name with " county" re-appended, saint/st.
// interchange, hyphen/space interchange, and the "ugh" append/strip pair
// (Hillsboro vs Hillsborough). The toggles are heuristic and replace
// anywhere in the name; they reproduce known source-data quirks and should
// not grow without a confirmed naming source.
func countyVariants(name string) []string {
	base := cleanCounty(name)
	seen := make(map[string]bool)
	var out []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}

	add(base)
	add(base + " county")
	add(strings.ReplaceAll(base, "st.", "saint"))
	add(strings.ReplaceAll(base, "st ", "saint "))
	add(strings.ReplaceAll(base, "saint", "st."))
	add(strings.ReplaceAll(base, " ", "-"))
	add(strings.ReplaceAll(base, "-", " "))
	add(base + "ugh")
	add(strings.ReplaceAll(base, "ugh", ""))
	return out
}

var placePrefixes = []string{"city of ", "town of ", "village of ", "borough of "}

func stripPlacePrefix(place string) string {
	for _, pre := range placePrefixes {
		if strings.HasPrefix(place, pre) {
			return strings.TrimSpace(strings.TrimPrefix(place, pre))
		}
	}
	return place
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// titleWords uppercases the first letter after any non-letter boundary and
// lowercases the rest, so "new york" -> "New York" and "CA" -> "Ca".
func titleWords(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range strings.TrimSpace(s) {
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
