package emergency

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/mysehat/consent/internal/platform/kvstore"
)

// ConsentFunc resolves the consent source for a user.
type ConsentFunc func(userID string) ConsentSource

// Registry hands out the per-user emergency service.
type Registry struct {
	root     kvstore.Store
	consents ConsentFunc
	logger   zerolog.Logger

	mu       sync.Mutex
	services map[string]*Service
}

func NewRegistry(root kvstore.Store, consents ConsentFunc, logger zerolog.Logger) *Registry {
	return &Registry{
		root:     root,
		consents: consents,
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
	s := NewService(userID, kvstore.NewUserScope(r.root, userID), r.consents(userID), r.logger)
	r.services[userID] = s
	return s
}
