// Package kvstore defines the durable key-value boundary the consent engine
// persists through. All values are written whole: a Set replaces the previous
// value completely, and callers that need read-modify-write semantics must
// serialize those cycles themselves.
package kvstore

import "context"

// Store is a string-keyed durable store with whole-value overwrite semantics.
type Store interface {
	// Get returns the value for key. The second return is false when the key
	// does not exist.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys enumerates every key in the store, in no particular order.
	Keys(ctx context.Context) ([]string, error)
}
