// Package consent implements DPDP consent management for one user: the
// purpose-bound consent records, the manager that mutates them, and the gate
// every sensitive feature must pass before touching protected data.
package consent

import (
	"sort"
	"time"
)

// DataCategory is a kind of personal data the platform touches. Closed set.
type DataCategory string

const (
	CategoryLocation      DataCategory = "location"
	CategoryMentalHealth  DataCategory = "mental_health"
	CategoryDocuments     DataCategory = "documents"
	CategoryMedications   DataCategory = "medications"
	CategoryDiagnostics   DataCategory = "diagnostics"
	CategoryEmergency     DataCategory = "emergency"
	CategoryHealthRecords DataCategory = "health_records"
	CategoryPersonalInfo  DataCategory = "personal_info"
)

// Purpose is a lawful reason for processing a data category. Closed set.
type Purpose string

const (
	PurposeEmergency    Purpose = "emergency"
	PurposeTreatment    Purpose = "treatment"
	PurposeStorage      Purpose = "storage"
	PurposeAIProcessing Purpose = "ai_processing"
	PurposeReminder     Purpose = "reminder"
	PurposeAnalytics    Purpose = "analytics"
)

// validCombinations is the purpose-binding table: the purposes each category
// may legally pair with. The store never holds, and the manager never
// creates, a record outside this table.
var validCombinations = map[DataCategory][]Purpose{
	CategoryLocation:      {PurposeEmergency},
	CategoryMentalHealth:  {PurposeAIProcessing, PurposeStorage, PurposeTreatment},
	CategoryDocuments:     {PurposeStorage, PurposeAIProcessing},
	CategoryMedications:   {PurposeReminder, PurposeStorage, PurposeTreatment, PurposeAIProcessing},
	CategoryDiagnostics:   {PurposeAIProcessing, PurposeTreatment, PurposeStorage},
	CategoryEmergency:     {PurposeEmergency},
	CategoryHealthRecords: {PurposeStorage, PurposeAIProcessing, PurposeAnalytics, PurposeEmergency},
	CategoryPersonalInfo:  {PurposeEmergency, PurposeStorage},
}

// IsValidCombination reports whether purpose p is legal for category c.
func IsValidCombination(c DataCategory, p Purpose) bool {
	for _, vp := range validCombinations[c] {
		if vp == p {
			return true
		}
	}
	return false
}

// ValidPurposes returns the purposes legal for c.
func ValidPurposes(c DataCategory) []Purpose {
	return append([]Purpose(nil), validCombinations[c]...)
}

// Categories returns every data category, sorted.
func Categories() []DataCategory {
	cats := make([]DataCategory, 0, len(validCombinations))
	for c := range validCombinations {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

// RecordKey is the deterministic "category:purpose" key a record is stored
// under.
func RecordKey(c DataCategory, p Purpose) string {
	return string(c) + ":" + string(p)
}

// Record holds the consent state for one (category, purpose) pair.
// A record with Granted true always has a non-nil GrantedAt; the default
// state for every valid combination is Granted false.
type Record struct {
	Category  DataCategory `json:"category"`
	Purpose   Purpose      `json:"purpose"`
	Granted   bool         `json:"granted"`
	GrantedAt *time.Time   `json:"granted_at,omitempty"`
	RevokedAt *time.Time   `json:"revoked_at,omitempty"`
}

func (r Record) Key() string {
	return RecordKey(r.Category, r.Purpose)
}

// DefaultRecords synthesizes the default-deny record set: one denied record
// per valid combination.
func DefaultRecords() map[string]Record {
	out := make(map[string]Record)
	for c, purposes := range validCombinations {
		for _, p := range purposes {
			r := Record{Category: c, Purpose: p}
			out[r.Key()] = r
		}
	}
	return out
}
