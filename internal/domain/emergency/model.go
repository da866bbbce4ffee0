// Package emergency builds the minimal data packet shared with responders
// during an SOS. The packet is whitelist-based: only fields the user has
// opted into are ever included, and restricted categories (mental health
// notes, full history, documents) are structurally absent from the packet
// type.
package emergency

import "time"

// AccessConfig is the user's opt-in matrix for emergency sharing. The
// defaults share care-critical fields and withhold the optional ones.
type AccessConfig struct {
	ShareBloodGroup         bool `json:"share_blood_group"`
	ShareAllergies          bool `json:"share_allergies"`
	ShareChronicConditions  bool `json:"share_chronic_conditions"`
	ShareCurrentMedications bool `json:"share_current_medications"`
	ShareEmergencyContacts  bool `json:"share_emergency_contacts"`
	ShareName               bool `json:"share_name"`
	ShareAge                bool `json:"share_age"`
	ShareOrganDonorStatus   bool `json:"share_organ_donor_status"`
	ShareInsuranceInfo      bool `json:"share_insurance_info"`

	// RequireManualConfirmation blocks automatic SOS sharing until the
	// user confirms on-device.
	RequireManualConfirmation   bool `json:"require_manual_confirmation"`
	AutoNotifyEmergencyContacts bool `json:"auto_notify_emergency_contacts"`
}

// DefaultAccessConfig returns the out-of-the-box sharing matrix.
func DefaultAccessConfig() AccessConfig {
	return AccessConfig{
		ShareBloodGroup:             true,
		ShareAllergies:              true,
		ShareChronicConditions:      true,
		ShareCurrentMedications:     true,
		ShareEmergencyContacts:      true,
		ShareName:                   true,
		ShareAge:                    true,
		AutoNotifyEmergencyContacts: true,
	}
}

// Contact is one emergency contact.
type Contact struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Relation string `json:"relation"`
}

// Profile is the health profile the packet draws from.
type Profile struct {
	Name               string    `json:"name,omitempty"`
	Age                int       `json:"age,omitempty"`
	BloodGroup         string    `json:"blood_group,omitempty"`
	Allergies          []string  `json:"allergies,omitempty"`
	ChronicConditions  []string  `json:"chronic_conditions,omitempty"`
	CurrentMedications []string  `json:"current_medications,omitempty"`
	EmergencyContacts  []Contact `json:"emergency_contacts,omitempty"`
	OrganDonor         *bool     `json:"organ_donor,omitempty"`
	InsuranceProvider  string    `json:"insurance_provider,omitempty"`
	InsuranceID        string    `json:"insurance_id,omitempty"`
}

// Location is the position attached to an SOS.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// Packet is the minimal emergency payload. Location is always present;
// every other field appears only when the user's config opts it in.
type Packet struct {
	UserID             string    `json:"user_id"`
	Name               string    `json:"name,omitempty"`
	Age                int       `json:"age,omitempty"`
	BloodGroup         string    `json:"blood_group,omitempty"`
	Allergies          []string  `json:"allergies,omitempty"`
	ChronicConditions  []string  `json:"chronic_conditions,omitempty"`
	CurrentMedications []string  `json:"current_medications,omitempty"`
	EmergencyContacts  []Contact `json:"emergency_contacts,omitempty"`
	OrganDonor         *bool     `json:"organ_donor,omitempty"`
	InsuranceProvider  string    `json:"insurance_provider,omitempty"`
	InsuranceID        string    `json:"insurance_id,omitempty"`

	Location  Location   `json:"location"`
	CreatedAt time.Time  `json:"packet_created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// BuildPacket assembles the packet from profile and config. Pure function;
// consent checking and persistence live in the service.
func BuildPacket(userID string, cfg AccessConfig, profile Profile, loc Location, now time.Time, expiresAt *time.Time) Packet {
	p := Packet{
		UserID:    userID,
		Location:  loc,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
	if cfg.ShareName {
		p.Name = profile.Name
	}
	if cfg.ShareAge {
		p.Age = profile.Age
	}
	if cfg.ShareBloodGroup {
		p.BloodGroup = profile.BloodGroup
	}
	if cfg.ShareAllergies {
		p.Allergies = profile.Allergies
	}
	if cfg.ShareChronicConditions {
		p.ChronicConditions = profile.ChronicConditions
	}
	if cfg.ShareCurrentMedications {
		p.CurrentMedications = profile.CurrentMedications
	}
	if cfg.ShareEmergencyContacts {
		p.EmergencyContacts = profile.EmergencyContacts
	}
	if cfg.ShareOrganDonorStatus {
		p.OrganDonor = profile.OrganDonor
	}
	if cfg.ShareInsuranceInfo {
		p.InsuranceProvider = profile.InsuranceProvider
		p.InsuranceID = profile.InsuranceID
	}
	return p
}
