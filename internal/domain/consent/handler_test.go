package consent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mysehat/consent/internal/domain/audit"
	"github.com/mysehat/consent/internal/platform/auth"
	"github.com/mysehat/consent/internal/platform/kvstore"
)

func newTestHandler() (*Handler, *Registry, *echo.Echo) {
	r := NewRegistry(kvstore.NewMemory(), zerolog.Nop())
	return NewHandler(r), r, echo.New()
}

func newUserContext(e *echo.Echo, req *http.Request, rec *httptest.ResponseRecorder, userID string) echo.Context {
	ctx := context.WithValue(req.Context(), auth.UserIDKey, userID)
	c := e.NewContext(req.WithContext(ctx), rec)
	return c
}

func TestHandler_GrantConsent(t *testing.T) {
	h, r, e := newTestHandler()

	body := `{"category":"mental_health","purpose":"ai_processing"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/consents/grant", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := newUserContext(e, req, rec, "u1")

	if err := h.GrantConsent(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var record Record
	json.Unmarshal(rec.Body.Bytes(), &record)
	if !record.Granted || record.GrantedAt == nil {
		t.Errorf("expected granted record, got %+v", record)
	}
	if !r.Manager("u1").HasConsent(context.Background(), CategoryMentalHealth, PurposeAIProcessing) {
		t.Error("grant did not persist")
	}
}

func TestHandler_GrantConsent_InvalidCombination(t *testing.T) {
	h, _, e := newTestHandler()

	body := `{"category":"location","purpose":"analytics"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/consents/grant", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := newUserContext(e, req, rec, "u1")

	err := h.GrantConsent(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_RevokeConsent(t *testing.T) {
	h, r, e := newTestHandler()
	if err := r.Manager("u1").GrantConsent(context.Background(), CategoryMedications, PurposeReminder); err != nil {
		t.Fatal(err)
	}

	body := `{"category":"medications","purpose":"reminder"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/consents/revoke", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := newUserContext(e, req, rec, "u1")

	if err := h.RevokeConsent(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var record Record
	json.Unmarshal(rec.Body.Bytes(), &record)
	if record.Granted || record.RevokedAt == nil || record.GrantedAt == nil {
		t.Errorf("expected revoked record with history, got %+v", record)
	}
}

func TestHandler_CheckConsent_DeniedIsAudited(t *testing.T) {
	h, r, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/consents/check?category=location&purpose=emergency", nil)
	rec := httptest.NewRecorder()
	c := newUserContext(e, req, rec, "u1")

	if err := h.CheckConsent(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Granted bool `json:"granted"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Granted {
		t.Error("expected default deny")
	}

	entries, err := r.Manager("u1").Audit().Entries(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Action != audit.ActionAccessDenied {
		t.Fatalf("expected one access_denied entry, got %+v", entries)
	}
}

func TestHandler_CheckConsent_Granted(t *testing.T) {
	h, r, e := newTestHandler()
	if err := r.Manager("u1").GrantConsent(context.Background(), CategoryLocation, PurposeEmergency); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/consents/check?category=location&purpose=emergency", nil)
	rec := httptest.NewRecorder()
	c := newUserContext(e, req, rec, "u1")

	if err := h.CheckConsent(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Granted bool `json:"granted"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Granted {
		t.Error("expected granted")
	}
}

func TestHandler_ExportData(t *testing.T) {
	h, r, e := newTestHandler()
	m := r.Manager("u1")
	ctx := context.Background()
	if err := m.GrantConsent(ctx, CategoryHealthRecords, PurposeStorage); err != nil {
		t.Fatal(err)
	}
	if err := m.Scope().Set(ctx, "records:vitals", []byte(`{"bp":"120/80"}`)); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/my-data", nil)
	rec := httptest.NewRecorder()
	c := newUserContext(e, req, rec, "u1")

	if err := h.ExportData(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var doc ExportDocument
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Compliance != ComplianceLabel {
		t.Errorf("unexpected compliance label %q", doc.Compliance)
	}
	if _, ok := doc.StoredData["records:vitals"]; !ok {
		t.Error("export missing stored data")
	}
}

func TestHandler_DeleteData(t *testing.T) {
	h, r, e := newTestHandler()
	m := r.Manager("u1")
	ctx := context.Background()
	if err := m.GrantConsent(ctx, CategoryDocuments, PurposeStorage); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/my-data", nil)
	rec := httptest.NewRecorder()
	c := newUserContext(e, req, rec, "u1")

	if err := h.DeleteData(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if m.HasConsent(ctx, CategoryDocuments, PurposeStorage) {
		t.Error("expected consent reset after erasure")
	}
}

func TestHandler_NoUser(t *testing.T) {
	h, _, e := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/consents", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.ListConsents(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}
