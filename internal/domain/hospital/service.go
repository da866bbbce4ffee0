package hospital

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mysehat/consent/internal/domain/audit"
	"github.com/mysehat/consent/internal/platform/kvstore"
)

// Key is the logical key hospital consents live under in a user scope.
const Key = "hospital:consents"

var (
	ErrNoHospital  = errors.New("hospital id and name are required")
	ErrNoResources = errors.New("a consent must name at least one resource")
	ErrBadResource = errors.New("unknown resource category")
	ErrNotFound    = errors.New("hospital consent not found")
)

// Recorder receives audit entries for hospital consent changes. Satisfied by
// the consent manager, so hospital grants land in the same per-user trail as
// ordinary consent changes.
type Recorder interface {
	LogDataAccess(ctx context.Context, action audit.Action, dataType, purpose, accessor string, success bool) error
}

// Service manages one user's hospital consents.
type Service struct {
	userID   string
	scope    kvstore.Store
	recorder Recorder
	logger   zerolog.Logger
	now      func() time.Time

	mu sync.Mutex
}

func NewService(userID string, scope kvstore.Store, recorder Recorder, logger zerolog.Logger) *Service {
	return &Service{
		userID:   userID,
		scope:    scope,
		recorder: recorder,
		logger:   logger.With().Str("user_id", userID).Logger(),
		now:      time.Now,
	}
}

// GrantParams describes a new hospital consent.
type GrantParams struct {
	HospitalID       string             `json:"hospital_id"`
	HospitalName     string             `json:"hospital_name"`
	Resources        []ResourceCategory `json:"resources"`
	ExpiresAfter     *time.Duration     `json:"-"`
	EmergencyEventID string             `json:"emergency_event_id,omitempty"`
}

// Grant stores the consent for a named hospital, overwriting any earlier
// record for the same hospital so each hospital holds at most one consent.
// A grant with no resources or no hospital identity is rejected and leaves
// no record behind.
func (s *Service) Grant(ctx context.Context, p GrantParams) (*Consent, error) {
	if p.HospitalID == "" || p.HospitalName == "" {
		return nil, ErrNoHospital
	}
	if len(p.Resources) == 0 {
		return nil, ErrNoResources
	}
	for _, r := range p.Resources {
		if !r.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrBadResource, r)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	consents, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := Consent{
		ID:               uuid.New(),
		HospitalID:       p.HospitalID,
		HospitalName:     p.HospitalName,
		Resources:        append([]ResourceCategory(nil), p.Resources...),
		GrantedAt:        now,
		EmergencyEventID: p.EmergencyEventID,
	}
	if p.ExpiresAfter != nil {
		exp := now.Add(*p.ExpiresAfter)
		c.ExpiresAt = &exp
	}

	replaced := false
	for i := range consents {
		if consents[i].HospitalID == p.HospitalID {
			consents[i] = c
			replaced = true
			break
		}
	}
	if !replaced {
		consents = append(consents, c)
	}
	if err := s.save(ctx, consents); err != nil {
		return nil, err
	}

	s.audit(ctx, audit.ActionConsentGranted, p.HospitalName)
	s.logger.Info().Str("hospital_id", p.HospitalID).Int("resources", len(p.Resources)).Msg("hospital consent granted")
	return &c, nil
}

// Revoke withdraws the consent with the given ID, effective immediately.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	consents, err := s.load(ctx)
	if err != nil {
		return err
	}

	found := false
	now := s.now().UTC()
	for i := range consents {
		if consents[i].ID == id {
			consents[i].Revoked = true
			consents[i].RevokedAt = &now
			found = true
			break
		}
	}
	if !found {
		return ErrNotFound
	}
	if err := s.save(ctx, consents); err != nil {
		return err
	}

	s.audit(ctx, audit.ActionConsentRevoked, id.String())
	return nil
}

// RevokeAll revokes every currently-valid consent in one logical operation.
// Already-revoked and already-expired records are left untouched, which
// makes a second call a no-op.
func (s *Service) RevokeAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	consents, err := s.load(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	revoked := 0
	for i := range consents {
		if !consents[i].IsValidAccess(now) {
			continue
		}
		consents[i].Revoked = true
		consents[i].RevokedAt = &now
		revoked++
	}
	if revoked == 0 {
		return 0, nil
	}
	if err := s.save(ctx, consents); err != nil {
		return 0, err
	}

	s.audit(ctx, audit.ActionConsentRevoked, "all hospitals")
	return revoked, nil
}

// Consents returns every record, valid or not, for display.
func (s *Service) Consents(ctx context.Context) ([]Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// ActiveConsents returns the records whose validity, recomputed now, holds.
func (s *Service) ActiveConsents(ctx context.Context) ([]Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	consents, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	active := make([]Consent, 0, len(consents))
	for _, c := range consents {
		if c.IsValidAccess(now) {
			active = append(active, c)
		}
	}
	return active, nil
}

// CheckAccess reports whether hospitalID may read resource right now, and
// records the denied attempts.
func (s *Service) CheckAccess(ctx context.Context, hospitalID string, resource ResourceCategory) (bool, error) {
	s.mu.Lock()
	consents, err := s.load(ctx)
	s.mu.Unlock()
	if err != nil {
		return false, err
	}

	now := s.now().UTC()
	for _, c := range consents {
		if c.HospitalID == hospitalID && c.IsValidAccess(now) && c.Covers(resource) {
			s.audit(ctx, audit.ActionDataAccess, string(resource))
			return true, nil
		}
	}
	if s.recorder != nil {
		_ = s.recorder.LogDataAccess(ctx, audit.ActionAccessDenied, string(resource), "treatment", hospitalID, false)
	}
	return false, nil
}

func (s *Service) load(ctx context.Context) ([]Consent, error) {
	raw, ok, err := s.scope.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("load hospital consents: %w", err)
	}
	if !ok {
		return []Consent{}, nil
	}
	var consents []Consent
	if err := json.Unmarshal(raw, &consents); err != nil {
		return nil, fmt.Errorf("decode hospital consents: %w", err)
	}
	return consents, nil
}

func (s *Service) save(ctx context.Context, consents []Consent) error {
	raw, err := json.Marshal(consents)
	if err != nil {
		return fmt.Errorf("encode hospital consents: %w", err)
	}
	if err := s.scope.Set(ctx, Key, raw); err != nil {
		return fmt.Errorf("persist hospital consents: %w", err)
	}
	return nil
}

// audit records a consent change that already succeeded. The change is not
// undone when the append fails.
func (s *Service) audit(ctx context.Context, action audit.Action, accessor string) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.LogDataAccess(ctx, action, "hospital_consent", "treatment", accessor, true); err != nil {
		s.logger.Error().Err(err).Str("action", string(action)).Msg("hospital audit append failed")
	}
}
