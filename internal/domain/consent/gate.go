package consent

import (
	"context"

	"github.com/mysehat/consent/internal/domain/audit"
)

// Prompt collects the user's accept/decline decision for a consent request.
// Implementations block until the user answers; closing the dialog counts as
// a decline. The engine never renders UI itself.
type Prompt interface {
	RequestConsent(ctx context.Context, req AccessRequest) (bool, error)
}

// PromptFunc adapts a function to the Prompt interface.
type PromptFunc func(ctx context.Context, req AccessRequest) (bool, error)

func (f PromptFunc) RequestConsent(ctx context.Context, req AccessRequest) (bool, error) {
	return f(ctx, req)
}

// AccessRequest describes one gated access attempt.
type AccessRequest struct {
	Category        DataCategory `json:"category"`
	Purpose         Purpose      `json:"purpose"`
	Feature         string       `json:"feature"`
	Explanation     string       `json:"explanation"`
	DataDescription string       `json:"data_description"`
}

// Gate is the enforcement point every sensitive feature calls before touching
// protected data. It checks consent, prompts when missing, and records the
// access in the audit log.
type Gate struct {
	manager *Manager
	prompt  Prompt
}

// NewGate wraps manager with prompt. A nil prompt means consent can never be
// requested interactively: missing consent is simply denied.
func NewGate(manager *Manager, prompt Prompt) *Gate {
	return &Gate{manager: manager, prompt: prompt}
}

// CheckAndRequestConsent returns whether the feature may proceed.
//
// Already-granted consent is logged as a data access and allowed without
// prompting. Otherwise the user is asked; on accept the consent is granted
// and the access logged. A decline returns false with no error and no audit
// entry, and callers must degrade gracefully rather than fail.
//
// The gate fails closed on audit errors: an access that cannot be recorded
// is denied even when consent is granted.
func (g *Gate) CheckAndRequestConsent(ctx context.Context, req AccessRequest) (bool, error) {
	if g.manager.HasConsent(ctx, req.Category, req.Purpose) {
		if err := g.manager.LogDataAccess(ctx, audit.ActionDataAccess, string(req.Category), string(req.Purpose), req.Feature, true); err != nil {
			return false, err
		}
		return true, nil
	}

	if g.prompt == nil {
		return false, nil
	}
	accepted, err := g.prompt.RequestConsent(ctx, req)
	if err != nil {
		return false, err
	}
	if !accepted {
		return false, nil
	}
	if err := g.manager.GrantConsent(ctx, req.Category, req.Purpose); err != nil {
		return false, err
	}
	if err := g.manager.LogDataAccess(ctx, audit.ActionDataAccess, string(req.Category), string(req.Purpose), req.Feature, true); err != nil {
		return false, err
	}
	return true, nil
}

// Feature wrappers. These pre-fill the category, purpose and user-facing copy
// for each gated feature so call sites stay one-liners.

func (g *Gate) ForEmergencyLocation(ctx context.Context) (bool, error) {
	return g.CheckAndRequestConsent(ctx, AccessRequest{
		Category:        CategoryLocation,
		Purpose:         PurposeEmergency,
		Feature:         "SOS Emergency",
		Explanation:     "Your live location will be shared with your emergency contacts and responders so help can reach you quickly.",
		DataDescription: "GPS coordinates while the SOS alert is active",
	})
}

func (g *Gate) ForSymptomChecker(ctx context.Context) (bool, error) {
	return g.CheckAndRequestConsent(ctx, AccessRequest{
		Category:        CategoryDiagnostics,
		Purpose:         PurposeAIProcessing,
		Feature:         "Symptom Checker",
		Explanation:     "The symptoms you describe will be analysed by an AI model to suggest possible conditions. This is not a medical diagnosis.",
		DataDescription: "Symptom descriptions and answers you provide in this session",
	})
}

func (g *Gate) ForMentalHealthChat(ctx context.Context) (bool, error) {
	return g.CheckAndRequestConsent(ctx, AccessRequest{
		Category:        CategoryMentalHealth,
		Purpose:         PurposeAIProcessing,
		Feature:         "Mental Health Chat",
		Explanation:     "Your conversation will be processed by an AI companion. Messages are treated as sensitive health data and never shared with third parties.",
		DataDescription: "Chat messages and mood check-ins",
	})
}

func (g *Gate) ForMedicineReminders(ctx context.Context) (bool, error) {
	return g.CheckAndRequestConsent(ctx, AccessRequest{
		Category:        CategoryMedications,
		Purpose:         PurposeReminder,
		Feature:         "Medicine Reminders",
		Explanation:     "Your medication schedule will be stored on this device to send you timely reminders.",
		DataDescription: "Medicine names, dosages and reminder times",
	})
}

func (g *Gate) ForHealthRecordStorage(ctx context.Context) (bool, error) {
	return g.CheckAndRequestConsent(ctx, AccessRequest{
		Category:        CategoryHealthRecords,
		Purpose:         PurposeStorage,
		Feature:         "Health Records",
		Explanation:     "Your health records will be stored securely so you can access them across sessions and share them when you choose.",
		DataDescription: "Uploaded reports, prescriptions and vitals",
	})
}
