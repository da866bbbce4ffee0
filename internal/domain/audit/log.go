package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mysehat/consent/internal/platform/kvstore"
)

// MaxEntries bounds the log to the most recent entries. The bound is
// user-visible: the audit screen shows exactly this window, oldest evicted
// first.
const MaxEntries = 100

// Key is the logical key the serialized log lives under in a user scope.
const Key = "dpdp:audit"

// Log is an append-only, size-bounded audit log for one user. Every append
// reads the whole persisted list, prepends, truncates to MaxEntries and
// writes the whole list back; the internal mutex serializes that cycle for
// concurrent callers.
type Log struct {
	kv     kvstore.Store
	mu     sync.Mutex
	lastID int64
	now    func() time.Time
}

func NewLog(kv kvstore.Store) *Log {
	return &Log{kv: kv, now: time.Now}
}

// Append records e, filling in ID and Timestamp. The caller's Action must be
// part of the vocabulary; everything else is a free-form label.
func (l *Log) Append(ctx context.Context, e Entry) error {
	if !e.Action.Valid() {
		return fmt.Errorf("unknown audit action %q", e.Action)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load(ctx)
	if err != nil {
		return err
	}

	now := l.now().UTC()
	id := now.UnixMilli()
	if id <= l.lastID {
		id = l.lastID + 1
	}
	l.lastID = id
	e.ID = id
	e.Timestamp = now

	entries = append([]Entry{e}, entries...)
	if len(entries) > MaxEntries {
		entries = entries[:MaxEntries]
	}
	return l.save(ctx, entries)
}

// Entries returns the retained entries, newest first.
func (l *Log) Entries(ctx context.Context) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

// Reset discards every retained entry.
func (l *Log) Reset(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.kv.Delete(ctx, Key)
}

func (l *Log) load(ctx context.Context) ([]Entry, error) {
	raw, ok, err := l.kv.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("load audit log: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode audit log: %w", err)
	}
	return entries, nil
}

func (l *Log) save(ctx context.Context, entries []Entry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode audit log: %w", err)
	}
	if err := l.kv.Set(ctx, Key, raw); err != nil {
		return fmt.Errorf("persist audit log: %w", err)
	}
	return nil
}
