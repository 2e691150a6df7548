package ingest

import (
	"strings"
	"testing"
)

func TestReadCSVStripsBOMAndTrimsHeaders(t *testing.T) {
	in := "\ufeffCounty , State\nDane,Wisconsin\n"
	rows, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if v, ok := rows[0].Get("County"); !ok || v != "Dane" {
		t.Errorf("County = %q, %v", v, ok)
	}
	if v, ok := rows[0].Get("State"); !ok || v != "Wisconsin" {
		t.Errorf("State = %q, %v", v, ok)
	}
}

func TestReadCSVOmitsEmptyCells(t *testing.T) {
	in := "County,State,Flock Size\nDane,Wisconsin,\n"
	rows, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := rows[0].Get("Flock Size"); ok {
		t.Error("empty cell should be absent from the row map")
	}
}

func TestReadCSVToleratesRaggedRows(t *testing.T) {
	in := "A,B,C\n1,2\n1,2,3,4\n"
	rows, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if _, ok := rows[0].Get("C"); ok {
		t.Error("short row should leave missing columns unset")
	}
	if v, _ := rows[1].Get("C"); v != "3" {
		t.Errorf("long row C = %q, extra cells should be dropped", v)
	}
}

func TestReadCSVEmptyInput(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rows))
	}
}
