package consent

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

// ErrInvalidCombination is returned when a (category, purpose) pair is
// outside the purpose-binding table.
var ErrInvalidCombination = errors.New("invalid category/purpose combination")

// ComplianceLabel tags export documents with the regime they satisfy.
const ComplianceLabel = "DPDP Act 2023"

// ExportDocument is the right-to-access payload: everything the engine holds
// about one user. AuditLogs reflects the log state before the export's own
// DATA_EXPORT entry was appended.
type ExportDocument struct {
	ExportID   uuid.UUID                  `json:"export_id"`
	ExportDate time.Time                  `json:"export_date"`
	Compliance string                     `json:"compliance_label"`
	Consents   map[string]Record          `json:"consents"`
	AuditLogs  []audit.Entry              `json:"audit_logs"`
	StoredData map[string]json.RawMessage `json:"stored_data"`
}

// Manager owns one user's consent state: the record mapping, the audit log,
// and every other key in that user's scope. All mutations run under a single
// mutex so concurrent grant/revoke calls cannot lose updates on the
// whole-collection persistence.
type Manager struct {
	userID string
	scope  kvstore.Store
	store  *Store
	log    *audit.Log
	logger zerolog.Logger
	now    func() time.Time

	// mu serializes every read-modify-write cycle on the record mapping.
	mu sync.Mutex

	// errMu guards lastErr, which is reported from paths both inside and
	// outside mu.
	errMu   sync.Mutex
	lastErr error
}

// NewManager builds the manager for userID on top of the user's scoped
// store. The audit log shares the same scope.
func NewManager(userID string, scope kvstore.Store, logger zerolog.Logger) *Manager {
	return &Manager{
		userID: userID,
		scope:  scope,
		store:  NewStore(scope),
		log:    audit.NewLog(scope),
		logger: logger.With().Str("user_id", userID).Logger(),
		now:    time.Now,
	}
}

// UserID returns the user this manager belongs to.
func (m *Manager) UserID() string { return m.userID }

// Audit exposes the user's audit log for read-side consumers.
func (m *Manager) Audit() *audit.Log { return m.log }

// Scope exposes the user's scoped store for sibling services that persist
// their own keys (emergency config, AI preferences).
func (m *Manager) Scope() kvstore.Store { return m.scope }

// LastError returns the most recent persistence failure the manager absorbed
// (fail-closed reads, audit append failures). It clears once an operation
// succeeds again.
func (m *Manager) LastError() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.lastErr
}

func (m *Manager) setErr(err error) {
	m.errMu.Lock()
	m.lastErr = err
	m.errMu.Unlock()
}

// HasConsent reports whether consent is currently granted for (c, p). It is
// a pure read: no record is created, nothing is audited, and every failure
// path answers false (fail-closed).
func (m *Manager) HasConsent(ctx context.Context, c DataCategory, p Purpose) bool {
	if !IsValidCombination(c, p) {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	records, err := m.store.Load(ctx)
	if err != nil {
		m.setErr(err)
		m.logger.Error().Err(err).Msg("consent read failed, answering deny")
		return false
	}
	m.setErr(nil)
	r, ok := records[RecordKey(c, p)]
	return ok && r.Granted
}

// Records returns the full consent mapping, synthesizing defaults on first
// use.
func (m *Manager) Records(ctx context.Context) (map[string]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Load(ctx)
}

// GrantConsent records an explicit grant for (c, p) effective immediately.
// Granting an already-granted pair is safe and refreshes the grant
// timestamp.
func (m *Manager) GrantConsent(ctx context.Context, c DataCategory, p Purpose) error {
	if !IsValidCombination(c, p) {
		return fmt.Errorf("%w: %s/%s", ErrInvalidCombination, c, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.store.Load(ctx)
	if err != nil {
		m.setErr(err)
		return err
	}
	now := m.now().UTC()
	r := Record{Category: c, Purpose: p, Granted: true, GrantedAt: &now}
	records[r.Key()] = r
	if err := m.store.Save(ctx, records); err != nil {
		m.setErr(err)
		return err
	}
	m.setErr(nil)

	m.append(ctx, audit.Entry{
		Action:   audit.ActionConsentGranted,
		DataType: string(c),
		Purpose:  string(p),
		Accessor: "User",
		Success:  true,
	})
	return nil
}

// RevokeConsent withdraws consent for (c, p) effective immediately. The
// prior grant timestamp is preserved so history shows the pair was once
// granted.
func (m *Manager) RevokeConsent(ctx context.Context, c DataCategory, p Purpose) error {
	if !IsValidCombination(c, p) {
		return fmt.Errorf("%w: %s/%s", ErrInvalidCombination, c, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.store.Load(ctx)
	if err != nil {
		m.setErr(err)
		return err
	}
	now := m.now().UTC()
	prev := records[RecordKey(c, p)]
	r := Record{Category: c, Purpose: p, Granted: false, GrantedAt: prev.GrantedAt, RevokedAt: &now}
	records[r.Key()] = r
	if err := m.store.Save(ctx, records); err != nil {
		m.setErr(err)
		return err
	}
	m.setErr(nil)

	m.append(ctx, audit.Entry{
		Action:   audit.ActionConsentRevoked,
		DataType: string(c),
		Purpose:  string(p),
		Accessor: "User",
		Success:  true,
	})
	return nil
}

// LogDataAccess appends an audit entry without touching consent state. Used
// by the gate after a successful check and by features that must log even
// read-only access.
func (m *Manager) LogDataAccess(ctx context.Context, action audit.Action, dataType, purpose, accessor string, success bool) error {
	err := m.log.Append(ctx, audit.Entry{
		Action:   action,
		DataType: dataType,
		Purpose:  purpose,
		Accessor: accessor,
		Success:  success,
	})
	if err != nil {
		m.setErr(err)
		m.logger.Error().Err(err).Str("action", string(action)).Msg("audit append failed")
	}
	return err
}

// ExportAllData assembles the right-to-access document: the consent mapping,
// the audit log, and every other key in the user's scope except the engine's
// internal bookkeeping. The DATA_EXPORT entry is appended after the document
// is assembled, so the document never contains its own entry.
func (m *Manager) ExportAllData(ctx context.Context) (*ExportDocument, error) {
	m.mu.Lock()
	records, err := m.store.Load(ctx)
	m.mu.Unlock()
	if err != nil {
		m.setErr(err)
		return nil, err
	}

	entries, err := m.log.Entries(ctx)
	if err != nil {
		return nil, err
	}

	stored, err := m.storedData(ctx)
	if err != nil {
		return nil, err
	}

	doc := &ExportDocument{
		ExportID:   uuid.New(),
		ExportDate: m.now().UTC(),
		Compliance: ComplianceLabel,
		Consents:   records,
		AuditLogs:  entries,
		StoredData: stored,
	}

	m.append(ctx, audit.Entry{
		Action:   audit.ActionDataExport,
		DataType: "all",
		Accessor: "User",
		Success:  true,
	})
	return doc, nil
}

// DeleteAllData is the right-to-erasure operation: it logs the erasure,
// removes every non-internal key in the user's scope, and resets consent
// state to default-deny. A fresh DATA_ERASURE entry is written into the new
// empty log afterwards so the erasure itself stays visible to the user (the
// pre-wipe entry is necessarily destroyed by the wipe).
func (m *Manager) DeleteAllData(ctx context.Context) error {
	erasure := audit.Entry{
		Action:   audit.ActionDataErasure,
		DataType: "all",
		Accessor: "User",
		Success:  true,
	}
	m.append(ctx, erasure)

	m.mu.Lock()
	defer m.mu.Unlock()

	keys, err := m.scope.Keys(ctx)
	if err != nil {
		m.setErr(err)
		return fmt.Errorf("enumerate keys for erasure: %w", err)
	}
	for _, k := range keys {
		if isInternalKey(k) {
			continue
		}
		if err := m.scope.Delete(ctx, k); err != nil {
			m.setErr(err)
			return fmt.Errorf("erase %q: %w", k, err)
		}
	}

	if err := m.store.Save(ctx, DefaultRecords()); err != nil {
		m.setErr(err)
		return err
	}
	m.setErr(nil)

	m.append(ctx, erasure)
	return nil
}

// storedData copies every non-internal, non-engine key in the user scope.
func (m *Manager) storedData(ctx context.Context) (map[string]json.RawMessage, error) {
	keys, err := m.scope.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate stored keys: %w", err)
	}
	out := make(map[string]json.RawMessage)
	for _, k := range keys {
		if isInternalKey(k) || k == RecordsKey || k == audit.Key {
			continue
		}
		v, ok, err := m.scope.Get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", k, err)
		}
		if ok {
			out[k] = json.RawMessage(v)
		}
	}
	return out, nil
}

// append records an audit entry for a state change that already succeeded. A
// failed append must not undo the change, so the error is absorbed into the
// manager's error state and logged.
func (m *Manager) append(ctx context.Context, e audit.Entry) {
	if err := m.log.Append(ctx, e); err != nil {
		m.setErr(err)
		m.logger.Error().Err(err).Str("action", string(e.Action)).Msg("audit append failed")
	}
}

func isInternalKey(k string) bool {
	return len(k) >= len(InternalPrefix) && k[:len(InternalPrefix)] == InternalPrefix
}
