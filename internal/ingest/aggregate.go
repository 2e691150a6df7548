package ingest

import "strings"

// rowGroup is one aggregation bucket: the first raw row seen for the key
// (carrying all metadata) plus how many source rows collapsed into it.
type rowGroup struct {
	first RawRow
	count int
}

// groupRows buckets rows by the values of keyCols, preserving the order in
// which keys first appear. Missing cells participate in the key as empty
// strings, so two rows that are blank in the same columns still group
// together. "First row of a group" is therefore deterministic: it is the
// earliest source row with that key.
func groupRows(rows []RawRow, keyCols []string) []rowGroup {
	index := make(map[string]int, len(rows))
	var groups []rowGroup

	for _, row := range rows {
		parts := make([]string, len(keyCols))
		for i, col := range keyCols {
			parts[i] = row[col]
		}
		key := strings.Join(parts, "\x1f")

		if i, ok := index[key]; ok {
			groups[i].count++
			continue
		}
		index[key] = len(groups)
		groups = append(groups, rowGroup{first: row.clone(), count: 1})
	}

	return groups
}
