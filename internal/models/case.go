package models

import (
	"time"

	"github.com/google/uuid"
)

// AnimalCategory buckets a detection by WOAH animal classification.
type AnimalCategory string

const (
	CategoryPoultry        AnimalCategory = "poultry"
	CategoryDairyCattle    AnimalCategory = "dairy_cattle"
	CategoryWildBird       AnimalCategory = "wild_bird"
	CategoryWildMammal     AnimalCategory = "wild_mammal"
	CategoryDomesticMammal AnimalCategory = "domestic_mammal"
	CategoryOther          AnimalCategory = "other"
)

func AnimalCategories() []AnimalCategory {
	return []AnimalCategory{
		CategoryPoultry, CategoryDairyCattle, CategoryWildBird,
		CategoryWildMammal, CategoryDomesticMammal, CategoryOther,
	}
}

func (c AnimalCategory) Valid() bool {
	for _, v := range AnimalCategories() {
		if c == v {
			return true
		}
	}
	return false
}

type CaseStatus string

const (
	StatusSuspected          CaseStatus = "suspected"
	StatusConfirmed          CaseStatus = "confirmed"
	StatusResolved           CaseStatus = "resolved"
	StatusUnderInvestigation CaseStatus = "under_investigation"
)

func CaseStatuses() []CaseStatus {
	return []CaseStatus{StatusSuspected, StatusConfirmed, StatusResolved, StatusUnderInvestigation}
}

func (s CaseStatus) Valid() bool {
	for _, v := range CaseStatuses() {
		if s == v {
			return true
		}
	}
	return false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

func (s Severity) Valid() bool {
	for _, v := range Severities() {
		if s == v {
			return true
		}
	}
	return false
}

type DataSource string

const (
	SourceWOAH        DataSource = "woah"
	SourceCDC         DataSource = "cdc"
	SourceUSDA        DataSource = "usda"
	SourceStateAgency DataSource = "state_agency"
	SourceManualEntry DataSource = "manual_entry"
	SourceOther       DataSource = "other"
)

func DataSources() []DataSource {
	return []DataSource{SourceWOAH, SourceCDC, SourceUSDA, SourceStateAgency, SourceManualEntry, SourceOther}
}

func (s DataSource) Valid() bool {
	for _, v := range DataSources() {
		if s == v {
			return true
		}
	}
	return false
}

// CaseRecord is the canonical detection/outbreak record produced by the
// ingestion pipeline. ExternalID is a deterministic hash of dataset-specific
// key fields and uniquely identifies one real-world event; the loader and the
// cases table dedup on it.
type CaseRecord struct {
	ID              uuid.UUID         `json:"id"`
	ExternalID      string            `json:"external_id"`
	CaseDate        *time.Time        `json:"case_date"`
	ReportDate      *time.Time        `json:"report_date,omitempty"`
	Status          CaseStatus        `json:"status"`
	Severity        Severity          `json:"severity"`
	AnimalCategory  AnimalCategory    `json:"animal_category"`
	AnimalSpecies   string            `json:"animal_species,omitempty"`
	AnimalsAffected *int              `json:"animals_affected,omitempty"`
	AnimalsDead     *int              `json:"animals_dead,omitempty"`
	Country         string            `json:"country"`
	StateProvince   string            `json:"state_province,omitempty"`
	County          string            `json:"county,omitempty"`
	City            string            `json:"city,omitempty"`
	Latitude        *float64          `json:"latitude,omitempty"`
	Longitude       *float64          `json:"longitude,omitempty"`
	DataSource      DataSource        `json:"data_source"`
	Description     string            `json:"description,omitempty"`
	ExtraMetadata   map[string]string `json:"extra_metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}
