package consent

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mysehat/consent/internal/domain/audit"
	"github.com/mysehat/consent/internal/platform/kvstore"
)

// stubPrompt answers every consent request with a fixed decision and counts
// how often it was shown.
type stubPrompt struct {
	accept bool
	shown  int
	last   AccessRequest
}

func (p *stubPrompt) RequestConsent(_ context.Context, req AccessRequest) (bool, error) {
	p.shown++
	p.last = req
	return p.accept, nil
}

func TestGateEmergencyFlow(t *testing.T) {
	m := newTestManager(t)
	prompt := &stubPrompt{accept: true}
	g := NewGate(m, prompt)
	ctx := context.Background()

	if m.HasConsent(ctx, CategoryEmergency, PurposeEmergency) {
		t.Fatal("expected default deny before the flow")
	}

	ok, err := g.CheckAndRequestConsent(ctx, AccessRequest{
		Category: CategoryEmergency,
		Purpose:  PurposeEmergency,
		Feature:  "SOS Emergency",
	})
	if err != nil || !ok {
		t.Fatalf("expected allow after accept, ok=%v err=%v", ok, err)
	}
	if prompt.shown != 1 {
		t.Fatalf("expected one prompt, got %d", prompt.shown)
	}
	if !m.HasConsent(ctx, CategoryEmergency, PurposeEmergency) {
		t.Fatal("accept must persist the grant")
	}

	entries, err := m.Audit().Entries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var granted, accessed bool
	for _, e := range entries {
		switch e.Action {
		case audit.ActionConsentGranted:
			granted = true
		case audit.ActionDataAccess:
			accessed = true
		}
	}
	if !granted || !accessed {
		t.Fatalf("expected consent_granted and data_access entries, granted=%v accessed=%v", granted, accessed)
	}

	// Second access: already granted, no re-prompt, one more access entry.
	ok, err = g.CheckAndRequestConsent(ctx, AccessRequest{
		Category: CategoryEmergency,
		Purpose:  PurposeEmergency,
		Feature:  "SOS Emergency",
	})
	if err != nil || !ok {
		t.Fatalf("expected allow without prompting, ok=%v err=%v", ok, err)
	}
	if prompt.shown != 1 {
		t.Fatalf("already-granted access must not re-prompt, prompts=%d", prompt.shown)
	}
}

func TestGateDecline(t *testing.T) {
	m := newTestManager(t)
	g := NewGate(m, &stubPrompt{accept: false})
	ctx := context.Background()

	ok, err := g.CheckAndRequestConsent(ctx, AccessRequest{
		Category: CategoryMentalHealth,
		Purpose:  PurposeAIProcessing,
		Feature:  "Mental Health Chat",
	})
	if err != nil {
		t.Fatalf("decline must not be an error: %v", err)
	}
	if ok {
		t.Fatal("decline must deny")
	}
	if m.HasConsent(ctx, CategoryMentalHealth, PurposeAIProcessing) {
		t.Fatal("decline must not grant")
	}
	entries, err := m.Audit().Entries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("decline must leave the audit log untouched, got %d entries", len(entries))
	}
}

func TestGateNilPromptDenies(t *testing.T) {
	m := newTestManager(t)
	g := NewGate(m, nil)

	ok, err := g.CheckAndRequestConsent(context.Background(), AccessRequest{
		Category: CategoryMedications,
		Purpose:  PurposeReminder,
		Feature:  "Medicine Reminders",
	})
	if err != nil || ok {
		t.Fatalf("nil prompt must deny silently, ok=%v err=%v", ok, err)
	}
}

// flakyStore fails writes to one key and delegates everything else.
type flakyStore struct {
	kvstore.Store
	failKey string
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte) error {
	if key == s.failKey {
		return errors.New("write failed")
	}
	return s.Store.Set(ctx, key, value)
}

func TestGateDeniesWhenAuditFails(t *testing.T) {
	fs := &flakyStore{Store: kvstore.NewUserScope(kvstore.NewMemory(), "u1")}
	m := NewManager("u1", fs, zerolog.Nop())
	g := NewGate(m, &stubPrompt{accept: true})
	ctx := context.Background()

	if err := m.GrantConsent(ctx, CategoryHealthRecords, PurposeStorage); err != nil {
		t.Fatal(err)
	}
	fs.failKey = audit.Key

	ok, err := g.CheckAndRequestConsent(ctx, AccessRequest{
		Category: CategoryHealthRecords,
		Purpose:  PurposeStorage,
		Feature:  "Health Records",
	})
	if err == nil {
		t.Fatal("expected the audit failure to surface")
	}
	if ok {
		t.Fatal("an access that cannot be recorded must be denied")
	}
}

func TestGateFeatureWrappers(t *testing.T) {
	m := newTestManager(t)
	prompt := &stubPrompt{accept: true}
	g := NewGate(m, prompt)
	ctx := context.Background()

	calls := []struct {
		run      func(context.Context) (bool, error)
		category DataCategory
		purpose  Purpose
	}{
		{g.ForEmergencyLocation, CategoryLocation, PurposeEmergency},
		{g.ForSymptomChecker, CategoryDiagnostics, PurposeAIProcessing},
		{g.ForMentalHealthChat, CategoryMentalHealth, PurposeAIProcessing},
		{g.ForMedicineReminders, CategoryMedications, PurposeReminder},
		{g.ForHealthRecordStorage, CategoryHealthRecords, PurposeStorage},
	}
	for _, tc := range calls {
		ok, err := tc.run(ctx)
		if err != nil || !ok {
			t.Fatalf("%s/%s: ok=%v err=%v", tc.category, tc.purpose, ok, err)
		}
		if prompt.last.Category != tc.category || prompt.last.Purpose != tc.purpose {
			t.Fatalf("wrapper prompted %s/%s, want %s/%s",
				prompt.last.Category, prompt.last.Purpose, tc.category, tc.purpose)
		}
		if prompt.last.Explanation == "" || prompt.last.Feature == "" {
			t.Fatalf("wrapper for %s/%s missing user-facing copy", tc.category, tc.purpose)
		}
		if !m.HasConsent(ctx, tc.category, tc.purpose) {
			t.Fatalf("wrapper for %s/%s did not grant", tc.category, tc.purpose)
		}
	}
}
