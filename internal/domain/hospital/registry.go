package hospital

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/mysehat/consent/internal/platform/kvstore"
)

// RecorderFunc resolves the audit recorder for a user.
type RecorderFunc func(userID string) Recorder

// Registry hands out the per-user hospital consent service.
type Registry struct {
	root     kvstore.Store
	recorder RecorderFunc
	logger   zerolog.Logger

	mu       sync.Mutex
	services map[string]*Service
}

func NewRegistry(root kvstore.Store, recorder RecorderFunc, logger zerolog.Logger) *Registry {
	return &Registry{
		root:     root,
		recorder: recorder,
		logger:   logger,
		services: make(map[string]*Service),
	}
}

func (r *Registry) Service(userID string) *Service {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.services[userID]; ok {
		return s
	}
	var rec Recorder
	if r.recorder != nil {
		rec = r.recorder(userID)
	}
	s := NewService(userID, kvstore.NewUserScope(r.root, userID), rec, r.logger)
	r.services[userID] = s
	return s
}
