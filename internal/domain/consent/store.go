package consent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mysehat/consent/internal/platform/kvstore"
)

// RecordsKey is the logical key the consent mapping lives under in a user
// scope.
const RecordsKey = "dpdp:consents"

// InternalPrefix marks keys in a user scope that belong to the engine's own
// bookkeeping. Export skips them and erasure leaves them alone.
const InternalPrefix = "internal:"

// Store is the persistence boundary for one user's consent mapping. There is
// deliberately no partial-update API: callers load the whole mapping, mutate
// a copy, and save the whole mapping back. Atomicity of the write is the KV
// backend's problem; serializing concurrent read-modify-write cycles is the
// Manager's.
type Store struct {
	kv kvstore.Store
}

func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv}
}

// Load returns the persisted mapping. When nothing is persisted yet it
// synthesizes the default-deny set, persists it, and returns that.
func (s *Store) Load(ctx context.Context) (map[string]Record, error) {
	raw, ok, err := s.kv.Get(ctx, RecordsKey)
	if err != nil {
		return nil, fmt.Errorf("load consent records: %w", err)
	}
	if !ok {
		records := DefaultRecords()
		if err := s.Save(ctx, records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var records map[string]Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode consent records: %w", err)
	}
	return records, nil
}

// Save serializes the whole mapping and overwrites the persisted blob.
func (s *Store) Save(ctx context.Context, records map[string]Record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode consent records: %w", err)
	}
	if err := s.kv.Set(ctx, RecordsKey, raw); err != nil {
		return fmt.Errorf("persist consent records: %w", err)
	}
	return nil
}
