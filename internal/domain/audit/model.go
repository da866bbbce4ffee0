package audit

import "time"

// Action tags the kind of event an audit entry records.
type Action string

const (
	ActionConsentGranted  Action = "consent_granted"
	ActionConsentRevoked  Action = "consent_revoked"
	ActionDataAccess      Action = "data_access"
	ActionDataExport      Action = "data_export"
	ActionDataErasure     Action = "data_erasure"
	ActionAccessDenied    Action = "access_denied"
	ActionEmergencyAccess Action = "emergency_access"
	ActionAIAnalysis      Action = "ai_analysis"
)

var validActions = map[Action]bool{
	ActionConsentGranted: true, ActionConsentRevoked: true,
	ActionDataAccess: true, ActionDataExport: true, ActionDataErasure: true,
	ActionAccessDenied: true, ActionEmergencyAccess: true, ActionAIAnalysis: true,
}

// Valid reports whether a is part of the audit action vocabulary.
func (a Action) Valid() bool { return validActions[a] }

// Entry is a single immutable audit record. ID is derived from the append
// time in milliseconds and is strictly increasing within one log, so entries
// sort by ID in insertion order.
type Entry struct {
	ID        int64     `json:"id"`
	Action    Action    `json:"action"`
	DataType  string    `json:"data_type"`
	Purpose   string    `json:"purpose"`
	Accessor  string    `json:"accessor"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}
