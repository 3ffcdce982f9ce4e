package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/soulsalutte/clinic/internal/platform/auth"
)

type mockRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
	err     error
}

func (m *mockRecorder) RecordAccess(entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func auditContext(method, path, route string, names, values []string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	claims := &auth.Claims{Roles: []string{auth.RolePhysio}}
	claims.Subject = "ana"
	req = req.WithContext(auth.WithClaims(req.Context(), claims))
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath(route)
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	c.Set("request_id", "req-123")
	return c
}

func TestAudit_RecordsPatientRead(t *testing.T) {
	rec := &mockRecorder{}
	c := auditContext(http.MethodGet, "/api/clientes/12", "/api/clientes/:id", []string{"id"}, []string{"12"})

	err := Audit(zerolog.Nop(), rec)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected 1 entry, got %d", rec.count())
	}
	got := rec.entries[0]
	if got.UserID != "ana" || got.Resource != "clientes" || got.PatientID != "12" || got.Action != "read" {
		t.Errorf("unexpected entry %+v", got)
	}
	if got.RequestID != "req-123" || got.StatusCode != http.StatusOK {
		t.Errorf("unexpected request metadata %+v", got)
	}
}

func TestAudit_SessionsByPatient(t *testing.T) {
	rec := &mockRecorder{}
	c := auditContext(http.MethodGet, "/api/sessoes/cliente/4", "/api/sessoes/cliente/:clienteId",
		[]string{"clienteId"}, []string{"4"})

	_ = Audit(zerolog.Nop(), rec)(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)

	if rec.entries[0].PatientID != "4" || rec.entries[0].Resource != "sessoes" {
		t.Errorf("unexpected entry %+v", rec.entries[0])
	}
}

func TestAudit_ActionFromMethodAndErrorStatus(t *testing.T) {
	rec := &mockRecorder{}
	c := auditContext(http.MethodPatch, "/api/sessoes/9/mover", "/api/sessoes/:id/mover", []string{"id"}, []string{"9"})

	_ = Audit(zerolog.Nop(), rec)(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "busy")
	})(c)

	got := rec.entries[0]
	if got.Action != "update" || got.ResourceID != "9" || got.StatusCode != http.StatusConflict {
		t.Errorf("unexpected entry %+v", got)
	}
}

func TestAudit_SkipsNonClinicalRoutes(t *testing.T) {
	rec := &mockRecorder{}
	for _, route := range []string{"/health", "/metrics", "/api/auth/login", "/api/dashboard/estatisticas"} {
		c := auditContext(http.MethodGet, route, route, nil, nil)
		_ = Audit(zerolog.Nop(), rec)(func(c echo.Context) error { return nil })(c)
	}
	if rec.count() != 0 {
		t.Errorf("expected no audit entries, got %d", rec.count())
	}
}

func TestAudit_RecorderFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	rec := &mockRecorder{err: errors.New("disk full")}
	c := auditContext(http.MethodDelete, "/api/avaliacoes/3", "/api/avaliacoes/:id", []string{"id"}, []string{"3"})

	err := Audit(zerolog.New(&buf), rec)(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })(c)
	if err != nil {
		t.Fatalf("recorder failures must not fail the request: %v", err)
	}
	if !strings.Contains(buf.String(), "failed to record audit entry") {
		t.Errorf("expected recorder failure in log, got %s", buf.String())
	}
}

func TestAuditRecorderFunc(t *testing.T) {
	var got AuditEntry
	f := AuditRecorderFunc(func(e AuditEntry) error { got = e; return nil })
	_ = f.RecordAccess(AuditEntry{UserID: "x"})
	if got.UserID != "x" {
		t.Error("expected func adapter to forward the entry")
	}
}

func TestResourceOf(t *testing.T) {
	tests := map[string]string{
		"/api/clientes":          "clientes",
		"/api/clientes/:id":      "clientes",
		"/api/agenda/slots":      "agenda",
		"/health":                "",
		"/api/avaliacoes/:id/pdf": "avaliacoes",
	}
	for route, want := range tests {
		if got := resourceOf(route); got != want {
			t.Errorf("resourceOf(%q) = %q, want %q", route, got, want)
		}
	}
}
