package kvstore

import (
	"context"
	"strings"
)

// UserScope wraps a Store so that all keys are namespaced under a single
// user. Keys reported by Keys and accepted by Get/Set/Delete are the logical
// keys without the namespace prefix, so per-user data stays isolated and
// enumerable without the caller knowing about other users.
type UserScope struct {
	inner  Store
	prefix string
}

func NewUserScope(inner Store, userID string) *UserScope {
	return &UserScope{inner: inner, prefix: "u:" + userID + ":"}
}

func (s *UserScope) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *UserScope) Set(ctx context.Context, key string, value []byte) error {
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s *UserScope) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, s.prefix+key)
}

func (s *UserScope) Keys(ctx context.Context) ([]string, error) {
	all, err := s.inner.Keys(ctx)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, k := range all {
		if strings.HasPrefix(k, s.prefix) {
			keys = append(keys, strings.TrimPrefix(k, s.prefix))
		}
	}
	return keys, nil
}
