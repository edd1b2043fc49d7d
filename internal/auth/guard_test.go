package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/umkm-portal/internal/domain"
	"github.com/spec-kit/umkm-portal/internal/observability"
)

func newGuardApp(t *testing.T, metrics *observability.Metrics) *fiber.App {
	t.Helper()
	guard := NewRouteGuard(RouteGuardConfig{
		Verifier: NewVerifier(testSecret, nil),
		Policy:   DefaultPolicy(DefaultLoginPaths()),
		Metrics:  metrics,
	})

	app := fiber.New()
	app.Use(guard.Handle)
	app.Get("/*", func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		subject := ""
		if principal != nil {
			subject = principal.SubjectID
		}
		return c.JSON(fiber.Map{
			"id":        c.Get(HeaderUserID),
			"email":     c.Get(HeaderUserEmail),
			"role":      c.Get(HeaderUserRole),
			"principal": subject,
		})
	})
	return app
}

func doGuard(t *testing.T, app *fiber.App, target string, mutate func(*http.Request)) *http.Response {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, target, nil)
	if mutate != nil {
		mutate(req)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set(fiber.HeaderAuthorization, "Bearer "+token) }
}

func cookie(token string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "auth-token", Value: token}) }
}

func TestRouteGuard_ExpiredTokenRedirectsAndClearsCookie(t *testing.T) {
	app := newGuardApp(t, nil)
	token := signedToken(t, testSecret, domain.RoleSuperAdmin, time.Now().Add(-time.Second))

	resp := doGuard(t, app, "/dashboard", cookie(token))
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/auth/login", resp.Header.Get(fiber.HeaderLocation))

	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == "auth-token" && c.Value == "" {
			cleared = true
		}
	}
	assert.True(t, cleared, "auth-token cookie should be cleared")
}

func TestRouteGuard_AllowsOwnerOnUMKMRoutes(t *testing.T) {
	app := newGuardApp(t, nil)
	token := signedToken(t, testSecret, domain.RoleUMKMOwner, time.Now().Add(time.Hour))

	resp := doGuard(t, app, "/umkm/dashboard", bearer(token))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, decodeJSON(resp, &body))
	assert.Equal(t, "u1", body["id"])
	assert.Equal(t, "owner@example.com", body["email"])
	assert.Equal(t, "umkm_owner", body["role"])
	assert.Equal(t, "u1", body["principal"])
}

func TestRouteGuard_CookieFallback(t *testing.T) {
	app := newGuardApp(t, nil)
	token := signedToken(t, testSecret, domain.RoleAdminStaff, time.Now().Add(time.Hour))

	resp := doGuard(t, app, "/staff/tickets", cookie(token))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRouteGuard_Denials(t *testing.T) {
	app := newGuardApp(t, nil)
	owner := signedToken(t, testSecret, domain.RoleUMKMOwner, time.Now().Add(time.Hour))
	staff := signedToken(t, testSecret, domain.RoleAdminStaff, time.Now().Add(time.Hour))
	forged := signedToken(t, []byte("other-secret"), domain.RoleSuperAdmin, time.Now().Add(time.Hour))

	tests := []struct {
		name     string
		path     string
		mutate   func(*http.Request)
		location string
	}{
		{"missing token on umkm", "/umkm/dashboard", nil, "/umkm/login"},
		{"missing token on dashboard", "/dashboard", nil, "/auth/login"},
		{"staff on umkm", "/umkm/products", bearer(staff), "/umkm/login"},
		{"owner on dashboard", "/dashboard", bearer(owner), "/auth/login"},
		{"owner on staff", "/staff/queue", bearer(owner), "/auth/login"},
		{"bad signature", "/admin/users", bearer(forged), "/auth/login"},
		{"garbage token", "/companies", bearer("not-a-jwt"), "/auth/login"},
		{"unknown path without token", "/reports", nil, "/auth/login"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doGuard(t, app, tt.path, tt.mutate)
			assert.Equal(t, fiber.StatusFound, resp.StatusCode)
			assert.Equal(t, tt.location, resp.Header.Get(fiber.HeaderLocation))
		})
	}
}

func TestRouteGuard_PublicAndAssetPassThrough(t *testing.T) {
	app := newGuardApp(t, nil)
	for _, target := range []string{"/", "/auth/login", "/umkm/register", "/_next/static/chunk.js", "/favicon.ico"} {
		resp := doGuard(t, app, target, nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, target)
	}
}

func TestRouteGuard_DotSegmentsCannotReachProtectedPages(t *testing.T) {
	app := newGuardApp(t, nil)
	tests := []struct {
		target   string
		location string
	}{
		{"/static/../umkm/dashboard", "/umkm/login"},
		{"/assets/../dashboard", "/auth/login"},
		{"/_next/../../umkm/profile", "/umkm/login"},
		{"/static/%2e%2e/umkm/dashboard", "/umkm/login"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			resp := doGuard(t, app, tt.target, nil)
			assert.Equal(t, fiber.StatusFound, resp.StatusCode)
			assert.Equal(t, tt.location, resp.Header.Get(fiber.HeaderLocation))
		})
	}
}

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"/umkm/dashboard", "/umkm/dashboard", true},
		{"/static/../umkm/dashboard", "/umkm/dashboard", true},
		{"/umkm/./settings/", "/umkm/settings/", true},
		{"/%2e%2e/admin", "/admin", true},
		{"", "/", true},
		{"/umkm/%zz", "", false},
	}
	for _, tt := range tests {
		got, ok := CanonicalPath(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestRouteGuard_StripsSpoofedHeaders(t *testing.T) {
	app := newGuardApp(t, nil)

	resp := doGuard(t, app, "/", func(r *http.Request) {
		r.Header.Set(HeaderUserID, "admin")
		r.Header.Set(HeaderUserRole, "super_admin")
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, decodeJSON(resp, &body))
	assert.Empty(t, body["id"])
	assert.Empty(t, body["role"])
}

func TestRouteGuard_RecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	app := newGuardApp(t, observability.NewMetrics(reg))
	expired := signedToken(t, testSecret, domain.RoleSuperAdmin, time.Now().Add(-time.Minute))

	doGuard(t, app, "/", nil)
	doGuard(t, app, "/dashboard", nil)
	doGuard(t, app, "/dashboard", bearer(expired))

	expected := `
# HELP portal_guard_decisions_total Route guard decisions by outcome.
# TYPE portal_guard_decisions_total counter
portal_guard_decisions_total{outcome="expired"} 1
portal_guard_decisions_total{outcome="missing_token"} 1
portal_guard_decisions_total{outcome="public"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "portal_guard_decisions_total"))
}

func decodeJSON(resp *http.Response, out any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}
