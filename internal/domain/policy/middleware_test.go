package policy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medguard/medguard/internal/platform/auth"
)

func guardRequest(t *testing.T, g *Guard, permission string, principalID *uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if principalID != nil {
		ctx := context.WithValue(req.Context(), auth.PrincipalIDKey, *principalID)
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := g.Require(permission)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestRequire_Unauthenticated(t *testing.T) {
	r, _, _, _ := newTestResolver()
	g := NewGuard(r)

	rec := guardRequest(t, g, "beds.read", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequire_Forbidden(t *testing.T) {
	r, _, _, _ := newTestResolver()
	g := NewGuard(r)
	nurse := uuid.New()

	rec := guardRequest(t, g, "billing.update", &nurse)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRequire_Allowed(t *testing.T) {
	r, perms, _, _ := newTestResolver()
	g := NewGuard(r)
	nurse := uuid.New()
	perms.grant(nurse, "beds.read")

	rec := guardRequest(t, g, "beds.read", &nurse)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("X-Break-Glass-Grant"); got != "" {
		t.Errorf("role-path response must not advertise a grant, got %q", got)
	}
}

func TestRequire_BreakGlassHeader(t *testing.T) {
	r, _, grants, _ := newTestResolver()
	g := NewGuard(r)
	nurse := uuid.New()
	grantID := grants.add(nurse, "billing.update", "")

	rec := guardRequest(t, g, "billing.update", &nurse)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Break-Glass-Grant"); got != grantID.String() {
		t.Errorf("expected grant header %q, got %q", grantID, got)
	}
}
