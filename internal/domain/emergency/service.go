package emergency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mysehat/consent/internal/domain/audit"
	"github.com/mysehat/consent/internal/domain/consent"
	"github.com/mysehat/consent/internal/platform/kvstore"
)

const (
	// ConfigKey holds the user's sharing matrix in their scope.
	ConfigKey = "emergency:config"
	// ProfileKey holds the health profile the packet draws from.
	ProfileKey = "emergency:profile"

	// PacketTTL bounds how long a packet stays usable by responders.
	PacketTTL = 24 * time.Hour
)

var (
	// ErrNoConsent means the emergency/emergency consent pair is not
	// granted; no packet may be built.
	ErrNoConsent = errors.New("emergency data sharing not consented")
	// ErrConfirmationRequired means the user's config demands an
	// on-device confirmation before automatic sharing.
	ErrConfirmationRequired = errors.New("manual confirmation required before sharing")
)

// ConsentSource answers consent questions and records accesses. Satisfied by
// the consent manager.
type ConsentSource interface {
	HasConsent(ctx context.Context, c consent.DataCategory, p consent.Purpose) bool
	LogDataAccess(ctx context.Context, action audit.Action, dataType, purpose, accessor string, success bool) error
}

// Service manages one user's emergency sharing configuration and builds
// packets during an SOS.
type Service struct {
	userID   string
	scope    kvstore.Store
	consents ConsentSource
	logger   zerolog.Logger
	now      func() time.Time

	mu sync.Mutex
}

func NewService(userID string, scope kvstore.Store, consents ConsentSource, logger zerolog.Logger) *Service {
	return &Service{
		userID:   userID,
		scope:    scope,
		consents: consents,
		logger:   logger.With().Str("user_id", userID).Logger(),
		now:      time.Now,
	}
}

// Config returns the user's sharing matrix, defaults when never configured.
func (s *Service) Config(ctx context.Context) (AccessConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadConfig(ctx)
}

func (s *Service) SetConfig(ctx context.Context, cfg AccessConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode emergency config: %w", err)
	}
	if err := s.scope.Set(ctx, ConfigKey, raw); err != nil {
		return fmt.Errorf("persist emergency config: %w", err)
	}
	return nil
}

// Profile returns the stored health profile, empty when never set.
func (s *Service) Profile(ctx context.Context) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.scope.Get(ctx, ProfileKey)
	if err != nil {
		return Profile{}, fmt.Errorf("load emergency profile: %w", err)
	}
	if !ok {
		return Profile{}, nil
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("decode emergency profile: %w", err)
	}
	return p, nil
}

func (s *Service) SetProfile(ctx context.Context, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode emergency profile: %w", err)
	}
	if err := s.scope.Set(ctx, ProfileKey, raw); err != nil {
		return fmt.Errorf("persist emergency profile: %w", err)
	}
	return nil
}

// CreatePacket builds the minimal emergency packet for an SOS at loc. The
// emergency/emergency consent pair must be granted; a denied attempt is
// recorded in the audit trail and no data leaves the scope.
func (s *Service) CreatePacket(ctx context.Context, loc Location, confirmed bool) (*Packet, error) {
	if !s.consents.HasConsent(ctx, consent.CategoryEmergency, consent.PurposeEmergency) {
		_ = s.consents.LogDataAccess(ctx, audit.ActionAccessDenied, "emergency_packet", string(consent.PurposeEmergency), "sos", false)
		return nil, ErrNoConsent
	}

	s.mu.Lock()
	cfg, err := s.loadConfig(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if cfg.RequireManualConfirmation && !confirmed {
		return nil, ErrConfirmationRequired
	}

	profile, err := s.Profile(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expires := now.Add(PacketTTL)
	packet := BuildPacket(s.userID, cfg, profile, loc, now, &expires)

	if err := s.consents.LogDataAccess(ctx, audit.ActionEmergencyAccess, "emergency_packet", string(consent.PurposeEmergency), "sos", true); err != nil {
		s.logger.Error().Err(err).Msg("emergency access audit failed")
	}
	s.logger.Info().Bool("notify_contacts", cfg.AutoNotifyEmergencyContacts).Msg("emergency packet created")
	return &packet, nil
}

func (s *Service) loadConfig(ctx context.Context) (AccessConfig, error) {
	raw, ok, err := s.scope.Get(ctx, ConfigKey)
	if err != nil {
		return AccessConfig{}, fmt.Errorf("load emergency config: %w", err)
	}
	if !ok {
		return DefaultAccessConfig(), nil
	}
	var cfg AccessConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AccessConfig{}, fmt.Errorf("decode emergency config: %w", err)
	}
	return cfg, nil
}
