// Package hospital implements time-limited, resource-scoped consents that
// let a named hospital read parts of the user's record over FHIR. Unlike
// ordinary consents these expire on their own; validity is recomputed on
// every read.
package hospital

import (
	"time"

	"github.com/google/uuid"
)

// ResourceCategory names a FHIR resource type a consent can cover. Closed
// set; a grant must name at least one.
type ResourceCategory string

const (
	ResourcePatient            ResourceCategory = "Patient"
	ResourceObservation        ResourceCategory = "Observation"
	ResourceCondition          ResourceCategory = "Condition"
	ResourceMedicationRequest  ResourceCategory = "MedicationRequest"
	ResourceAllergyIntolerance ResourceCategory = "AllergyIntolerance"
	ResourceImmunization       ResourceCategory = "Immunization"
	ResourceDiagnosticReport   ResourceCategory = "DiagnosticReport"
	ResourceDocumentReference  ResourceCategory = "DocumentReference"
)

var validResources = map[ResourceCategory]bool{
	ResourcePatient: true, ResourceObservation: true, ResourceCondition: true,
	ResourceMedicationRequest: true, ResourceAllergyIntolerance: true,
	ResourceImmunization: true, ResourceDiagnosticReport: true,
	ResourceDocumentReference: true,
}

func (r ResourceCategory) Valid() bool { return validResources[r] }

// Consent is one grant of access to a named hospital.
type Consent struct {
	ID           uuid.UUID          `json:"id"`
	HospitalID   string             `json:"hospital_id"`
	HospitalName string             `json:"hospital_name"`
	Resources    []ResourceCategory `json:"resources"`
	GrantedAt    time.Time          `json:"granted_at"`
	ExpiresAt    *time.Time         `json:"expires_at,omitempty"`
	Revoked      bool               `json:"revoked"`
	RevokedAt    *time.Time         `json:"revoked_at,omitempty"`

	// EmergencyEventID ties an automatic SOS grant to the emergency that
	// produced it. Empty for grants made from the sharing settings UI.
	EmergencyEventID string `json:"emergency_event_id,omitempty"`
}

// IsValidAccess recomputes validity at read time. A consent can flip to
// invalid purely by the clock passing ExpiresAt; callers must never cache
// the result across time.
func (c Consent) IsValidAccess(now time.Time) bool {
	if c.Revoked {
		return false
	}
	return c.ExpiresAt == nil || now.Before(*c.ExpiresAt)
}

// Covers reports whether the consent includes resource.
func (c Consent) Covers(resource ResourceCategory) bool {
	for _, r := range c.Resources {
		if r == resource {
			return true
		}
	}
	return false
}
