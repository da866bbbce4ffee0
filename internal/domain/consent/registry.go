package consent

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/mysehat/consent/internal/domain/audit"
	"github.com/mysehat/consent/internal/platform/kvstore"
)

// Registry hands out the single Manager instance for each user. One instance
// per user is what makes the per-user mutual exclusion hold: two callers
// acting on the same user always contend on the same mutex.
type Registry struct {
	root   kvstore.Store
	logger zerolog.Logger

	mu       sync.Mutex
	managers map[string]*Manager
}

func NewRegistry(root kvstore.Store, logger zerolog.Logger) *Registry {
	return &Registry{
		root:     root,
		logger:   logger,
		managers: make(map[string]*Manager),
	}
}

// Manager returns the manager for userID, creating it on first use.
func (r *Registry) Manager(userID string) *Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.managers[userID]; ok {
		return m
	}
	m := NewManager(userID, kvstore.NewUserScope(r.root, userID), r.logger)
	r.managers[userID] = m
	return m
}

// AuditLog returns the audit log owned by userID's manager. Read-side
// consumers use this instead of constructing a second log on the same key.
func (r *Registry) AuditLog(userID string) *audit.Log {
	return r.Manager(userID).Audit()
}
