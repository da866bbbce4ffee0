package emergency

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mysehat/consent/internal/domain/audit"
	"github.com/mysehat/consent/internal/domain/consent"
	"github.com/mysehat/consent/internal/platform/kvstore"
)

// fakeConsents answers consent checks from a fixed set and records every
// audit call.
type fakeConsents struct {
	granted map[string]bool
	entries []audit.Entry
}

func (f *fakeConsents) HasConsent(_ context.Context, c consent.DataCategory, p consent.Purpose) bool {
	return f.granted[consent.RecordKey(c, p)]
}

func (f *fakeConsents) LogDataAccess(_ context.Context, action audit.Action, dataType, purpose, accessor string, success bool) error {
	f.entries = append(f.entries, audit.Entry{
		Action: action, DataType: dataType, Purpose: purpose, Accessor: accessor, Success: success,
	})
	return nil
}

func newTestService(t *testing.T, emergencyGranted bool) (*Service, *fakeConsents) {
	t.Helper()
	consents := &fakeConsents{granted: map[string]bool{}}
	if emergencyGranted {
		consents.granted[consent.RecordKey(consent.CategoryEmergency, consent.PurposeEmergency)] = true
	}
	root := kvstore.NewMemory()
	svc := NewService("u1", kvstore.NewUserScope(root, "u1"), consents, zerolog.Nop())
	return svc, consents
}

func TestConfigDefaults(t *testing.T) {
	svc, _ := newTestService(t, true)

	cfg, err := svc.Config(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.ShareBloodGroup || !cfg.ShareAllergies || !cfg.ShareEmergencyContacts {
		t.Errorf("care-critical fields must default to shared: %+v", cfg)
	}
	if cfg.ShareOrganDonorStatus || cfg.ShareInsuranceInfo {
		t.Errorf("optional fields must default to withheld: %+v", cfg)
	}
	if cfg.RequireManualConfirmation {
		t.Error("manual confirmation must default off")
	}
}

func TestSetConfigRoundTrip(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	cfg := DefaultAccessConfig()
	cfg.ShareInsuranceInfo = true
	cfg.ShareAllergies = false
	if err := svc.SetConfig(ctx, cfg); err != nil {
		t.Fatal(err)
	}

	got, err := svc.Config(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !got.ShareInsuranceInfo || got.ShareAllergies {
		t.Errorf("config did not round-trip: %+v", got)
	}
}

func TestCreatePacketRespectsConfig(t *testing.T) {
	svc, consents := newTestService(t, true)
	ctx := context.Background()

	donor := true
	profile := Profile{
		Name:               "Asha",
		Age:                34,
		BloodGroup:         "O+",
		Allergies:          []string{"penicillin"},
		CurrentMedications: []string{"metformin"},
		EmergencyContacts:  []Contact{{Name: "Ravi", Phone: "+91-98765", Relation: "spouse"}},
		OrganDonor:         &donor,
		InsuranceProvider:  "Acme Health",
		InsuranceID:        "POL-1",
	}
	if err := svc.SetProfile(ctx, profile); err != nil {
		t.Fatal(err)
	}

	packet, err := svc.CreatePacket(ctx, Location{Latitude: 12.97, Longitude: 77.59}, false)
	if err != nil {
		t.Fatal(err)
	}
	if packet.BloodGroup != "O+" || len(packet.Allergies) != 1 || len(packet.EmergencyContacts) != 1 {
		t.Errorf("opted-in fields missing from packet: %+v", packet)
	}
	if packet.OrganDonor != nil || packet.InsuranceProvider != "" || packet.InsuranceID != "" {
		t.Errorf("withheld fields leaked into packet: %+v", packet)
	}
	if packet.ExpiresAt == nil || !packet.ExpiresAt.Equal(packet.CreatedAt.Add(PacketTTL)) {
		t.Errorf("expected packet to expire after %v", PacketTTL)
	}

	last := consents.entries[len(consents.entries)-1]
	if last.Action != audit.ActionEmergencyAccess || !last.Success {
		t.Fatalf("expected emergency_access entry, got %+v", last)
	}
}

func TestCreatePacketWithoutConsent(t *testing.T) {
	svc, consents := newTestService(t, false)

	_, err := svc.CreatePacket(context.Background(), Location{}, false)
	if !errors.Is(err, ErrNoConsent) {
		t.Fatalf("expected ErrNoConsent, got %v", err)
	}
	if len(consents.entries) != 1 || consents.entries[0].Action != audit.ActionAccessDenied {
		t.Fatalf("denied attempt must be audited, got %+v", consents.entries)
	}
}

func TestCreatePacketManualConfirmation(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	cfg := DefaultAccessConfig()
	cfg.RequireManualConfirmation = true
	if err := svc.SetConfig(ctx, cfg); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.CreatePacket(ctx, Location{}, false); !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
	if _, err := svc.CreatePacket(ctx, Location{}, true); err != nil {
		t.Fatalf("confirmed packet should build: %v", err)
	}
}
