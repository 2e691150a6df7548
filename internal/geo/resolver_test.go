package geo

import (
	"strings"
	"testing"

	"github.com/core4ce/h5n1-tracker/internal/models"
)

const lookupCSV = `Name,State Name,Primary Lat Dec,Primary Long Dec,Class Code
Saint Louis,Missouri,38.6264,-90.1998,H1
Dane County,Wisconsin,43.0675,-89.4182,H1
Hillsborough,Florida,27.9904,-82.3018,H1
Marlboro,New Jersey,40.3154,-74.2459,H1
Springfield,Illinois,39.7817,-89.6501,C1
Richmond,Virginia,37.5407,-77.4360,C5
`

func testResolver(t *testing.T) *Resolver {
	t.Helper()
	r := NewResolver()
	if err := r.LoadLookup(strings.NewReader(lookupCSV)); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestResolveFallbackChain(t *testing.T) {
	r := testResolver(t)

	tests := []struct {
		name   string
		county string
		state  string
		place  string
		kind   MatchKind
		ok     bool
	}{
		{"exact county", "Dane", "Wisconsin", "", MatchCounty, true},
		{"county with suffix", "Dane County", "Wisconsin", "", MatchCounty, true},
		{"saint variant", "St. Louis", "Missouri", "", MatchCounty, true},
		{"ugh suffix appended", "Hillsboro", "Florida", "", MatchCounty, true},
		{"ugh substring stripped", "Marlborough", "New Jersey", "", MatchCounty, true},
		{"independent city via county field", "Richmond", "Virginia", "", MatchIndependentCity, true},
		{"free-text city", "", "Illinois", "City of Springfield", MatchCity, true},
		{"state centroid fallback", "Nowhere", "Wisconsin", "", MatchStateCentroid, true},
		{"state abbreviation misses", "Nowhere", "WI", "", "", false},
		{"no state", "Dane", "", "", "", false},
	}
	for _, tt := range tests {
		res, ok := r.Resolve(tt.county, tt.state, tt.place)
		if ok != tt.ok {
			t.Errorf("%s: ok = %v, want %v", tt.name, ok, tt.ok)
			continue
		}
		if ok && res.Kind != tt.kind {
			t.Errorf("%s: kind = %q, want %q", tt.name, res.Kind, tt.kind)
		}
	}
}

func TestResolveCaches(t *testing.T) {
	r := testResolver(t)

	first, ok := r.Resolve("Dane", "Wisconsin", "")
	if !ok {
		t.Fatal("expected hit")
	}
	// Remove the table entry; the cached result must still answer.
	delete(r.counties, "dane, wisconsin")
	delete(r.counties, "dane county, wisconsin")
	second, ok := r.Resolve("Dane", "Wisconsin", "")
	if !ok {
		t.Fatal("expected cached hit after table removal")
	}
	if first != second {
		t.Errorf("cached result differs: %+v vs %+v", first, second)
	}
}

func TestResolveAll(t *testing.T) {
	r := testResolver(t)

	records := []models.CaseRecord{
		{County: "Dane", StateProvince: "Wisconsin"},
		{County: "", StateProvince: ""},
		{County: "Nowhere", StateProvince: "WI"},
	}
	out, failed := r.ResolveAll(records)

	if out[0].Latitude == nil || out[0].Longitude == nil {
		t.Error("first record should have coordinates")
	}
	if len(failed) != 2 {
		t.Fatalf("failed = %d, want 2", len(failed))
	}
	if failed[0].Reason != "missing county or state" {
		t.Errorf("reason = %q", failed[0].Reason)
	}
	if failed[1].Reason != "county not found in lookup table" {
		t.Errorf("reason = %q", failed[1].Reason)
	}
}

func TestCountyVariants(t *testing.T) {
	variants := countyVariants("St. Louis County")
	want := map[string]bool{"st. louis": false, "saint louis": false}
	for _, v := range variants {
		if _, ok := want[v]; ok {
			want[v] = true
		}
	}
	for v, seen := range want {
		if !seen {
			t.Errorf("missing variant %q in %v", v, variants)
		}
	}
}

func TestStateCentroidTable(t *testing.T) {
	if _, ok := stateCentroids["Wisconsin"]; !ok {
		t.Error("missing Wisconsin")
	}
	if _, ok := stateCentroids["Puerto Rico"]; !ok {
		t.Error("missing Puerto Rico")
	}
	if _, ok := stateCentroids["WI"]; ok {
		t.Error("abbreviations should not be present")
	}
}
