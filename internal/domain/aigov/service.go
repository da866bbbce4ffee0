package aigov

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mysehat/consent/internal/domain/audit"
	"github.com/mysehat/consent/internal/domain/consent"
	"github.com/mysehat/consent/internal/platform/kvstore"
)

// Key holds the user's per-feature opt-outs in their scope.
const Key = "ai:optouts"

var (
	ErrUnknownFeature = errors.New("unknown AI feature")
	// ErrNotPermitted means the feature may not run: the user opted out
	// or never consented to AI processing of the category.
	ErrNotPermitted = errors.New("ai processing not permitted")
)

// ConsentSource answers consent questions and records accesses. Satisfied by
// the consent manager.
type ConsentSource interface {
	HasConsent(ctx context.Context, c consent.DataCategory, p consent.Purpose) bool
	GrantConsent(ctx context.Context, c consent.DataCategory, p consent.Purpose) error
	LogDataAccess(ctx context.Context, action audit.Action, dataType, purpose, accessor string, success bool) error
}

// Result wraps the output of a governed AI run. The disclaimer is attached
// whether or not the run was permitted.
type Result struct {
	Success    bool            `json:"success"`
	Output     json.RawMessage `json:"output,omitempty"`
	Disclaimer string          `json:"disclaimer"`
	Error      string          `json:"error,omitempty"`
}

// Processor performs the actual AI work once governance has cleared it.
type Processor func(ctx context.Context) (json.RawMessage, error)

// Service governs one user's AI processing.
type Service struct {
	userID   string
	scope    kvstore.Store
	consents ConsentSource
	logger   zerolog.Logger

	mu sync.Mutex
}

func NewService(userID string, scope kvstore.Store, consents ConsentSource, logger zerolog.Logger) *Service {
	return &Service{
		userID:   userID,
		scope:    scope,
		consents: consents,
		logger:   logger.With().Str("user_id", userID).Logger(),
	}
}

// OptOut disables a feature for this user without touching the underlying
// consent record. The opt-out wins over any granted consent.
func (s *Service) OptOut(ctx context.Context, f Feature) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownFeature, f)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	optOuts, err := s.load(ctx)
	if err != nil {
		return err
	}
	optOuts[f] = true
	if err := s.save(ctx, optOuts); err != nil {
		return err
	}
	if err := s.consents.LogDataAccess(ctx, audit.ActionConsentRevoked, "ai_"+string(f), string(consent.PurposeAIProcessing), "User", true); err != nil {
		s.logger.Error().Err(err).Str("feature", string(f)).Msg("opt-out audit failed")
	}
	return nil
}

// OptIn re-enables a feature and makes sure the backing consent is granted.
func (s *Service) OptIn(ctx context.Context, f Feature) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownFeature, f)
	}
	s.mu.Lock()
	optOuts, err := s.load(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	delete(optOuts, f)
	err = s.save(ctx, optOuts)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	return s.consents.GrantConsent(ctx, f.Category(), consent.PurposeAIProcessing)
}

// Preferences returns feature -> enabled for every governed feature. A
// feature is enabled when the user has not opted out AND AI-processing
// consent for its category is granted.
func (s *Service) Preferences(ctx context.Context) (map[Feature]bool, error) {
	s.mu.Lock()
	optOuts, err := s.load(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	prefs := make(map[Feature]bool, len(featureCategories))
	for _, f := range Features() {
		prefs[f] = !optOuts[f] && s.consents.HasConsent(ctx, f.Category(), consent.PurposeAIProcessing)
	}
	return prefs, nil
}

// Permitted reports whether a feature may run for this user right now.
func (s *Service) Permitted(ctx context.Context, f Feature) (bool, error) {
	if !f.Valid() {
		return false, fmt.Errorf("%w: %s", ErrUnknownFeature, f)
	}
	s.mu.Lock()
	optOuts, err := s.load(ctx)
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	if optOuts[f] {
		return false, nil
	}
	return s.consents.HasConsent(ctx, f.Category(), consent.PurposeAIProcessing), nil
}

// Process runs processor under governance: consent is checked first, the
// run is audited, and the feature's disclaimer is attached to the result. A
// denied run returns a Result carrying the disclaimer plus ErrNotPermitted.
func (s *Service) Process(ctx context.Context, f Feature, processor Processor) (*Result, error) {
	ok, err := s.Permitted(ctx, f)
	if err != nil {
		return nil, err
	}
	if !ok {
		_ = s.consents.LogDataAccess(ctx, audit.ActionAccessDenied, "ai_"+string(f), string(consent.PurposeAIProcessing), "ai_service", false)
		return &Result{
			Success:    false,
			Disclaimer: f.Disclaimer(),
			Error:      "AI processing consent required. Enable AI features in settings.",
		}, ErrNotPermitted
	}

	if err := s.consents.LogDataAccess(ctx, audit.ActionAIAnalysis, "ai_"+string(f), string(consent.PurposeAIProcessing), "ai_service", true); err != nil {
		s.logger.Error().Err(err).Str("feature", string(f)).Msg("ai audit failed")
	}

	output, err := processor(ctx)
	if err != nil {
		return &Result{
			Success:    false,
			Disclaimer: f.Disclaimer(),
			Error:      err.Error(),
		}, nil
	}
	return &Result{
		Success:    true,
		Output:     output,
		Disclaimer: f.Disclaimer(),
	}, nil
}

func (s *Service) load(ctx context.Context) (map[Feature]bool, error) {
	raw, ok, err := s.scope.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("load ai opt-outs: %w", err)
	}
	if !ok {
		return map[Feature]bool{}, nil
	}
	var optOuts map[Feature]bool
	if err := json.Unmarshal(raw, &optOuts); err != nil {
		return nil, fmt.Errorf("decode ai opt-outs: %w", err)
	}
	return optOuts, nil
}

func (s *Service) save(ctx context.Context, optOuts map[Feature]bool) error {
	raw, err := json.Marshal(optOuts)
	if err != nil {
		return fmt.Errorf("encode ai opt-outs: %w", err)
	}
	if err := s.scope.Set(ctx, Key, raw); err != nil {
		return fmt.Errorf("persist ai opt-outs: %w", err)
	}
	return nil
}
