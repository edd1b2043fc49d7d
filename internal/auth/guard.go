package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/umkm-portal/internal/domain"
	"github.com/spec-kit/umkm-portal/internal/observability"
)

// Identity headers forwarded to page renderers after a successful guard
// evaluation.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
)

// Guard outcomes, also used as metric labels.
const (
	OutcomePublic       = "public"
	OutcomeAsset        = "asset"
	OutcomeAllowed      = "allowed"
	OutcomeMissingToken = "missing_token"
	OutcomeForbidden    = "forbidden"
	OutcomeBadPath      = "bad_path"
)

const requestPathKey = "guard_request_path"

// DefaultAssetPrefixes are passed through without evaluation.
var DefaultAssetPrefixes = []string{"/_next/", "/static/", "/assets/", "/favicon.ico", "/robots.txt"}

// RouteGuardConfig bundles route guard dependencies.
type RouteGuardConfig struct {
	Verifier      *Verifier
	Policy        *Policy
	CookieName    string
	AssetPrefixes []string
	Logger        *zap.Logger
	Metrics       *observability.Metrics
}

// RouteGuard gates page navigations before anything renders.
type RouteGuard struct {
	verifier      *Verifier
	policy        *Policy
	cookieName    string
	assetPrefixes []string
	logger        *zap.Logger
	metrics       *observability.Metrics
}

// NewRouteGuard constructs the guard.
func NewRouteGuard(cfg RouteGuardConfig) *RouteGuard {
	if cfg.CookieName == "" {
		cfg.CookieName = "auth-token"
	}
	if cfg.AssetPrefixes == nil {
		cfg.AssetPrefixes = DefaultAssetPrefixes
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &RouteGuard{
		verifier:      cfg.Verifier,
		policy:        cfg.Policy,
		cookieName:    cfg.CookieName,
		assetPrefixes: cfg.AssetPrefixes,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
	}
}

// Handle evaluates one navigation.
func (g *RouteGuard) Handle(c *fiber.Ctx) error {
	headers := &c.Request().Header
	headers.Del(HeaderUserID)
	headers.Del(HeaderUserEmail)
	headers.Del(HeaderUserRole)

	path, ok := CanonicalPath(c.Path())
	if !ok {
		g.metrics.RecordGuardDecision(OutcomeBadPath)
		return fiber.ErrBadRequest
	}
	c.Locals(requestPathKey, path)

	if g.isAsset(path) {
		g.metrics.RecordGuardDecision(OutcomeAsset)
		return c.Next()
	}
	if g.policy.IsPublic(path) {
		g.metrics.RecordGuardDecision(OutcomePublic)
		return c.Next()
	}

	token := ExtractToken(c, g.cookieName)
	if token == "" {
		return g.deny(c, OutcomeMissingToken)
	}

	claims, err := g.verifier.Verify(token)
	if err != nil {
		g.logger.Debug("token rejected",
			zap.String("path", path),
			zap.String("kind", string(KindOf(err))),
		)
		ExpireCookie(c, g.cookieName)
		return g.deny(c, string(KindOf(err)))
	}

	if !g.policy.IsAllowed(path, claims.Role) {
		g.logger.Debug("role not permitted",
			zap.String("path", path),
			zap.String("role", claims.Role.String()),
		)
		return g.deny(c, OutcomeForbidden)
	}

	principal := claims.Principal()
	headers.Set(HeaderUserID, principal.SubjectID)
	headers.Set(HeaderUserEmail, principal.Email)
	headers.Set(HeaderUserRole, principal.Role.String())
	c.Locals(principalKey, &principal)

	g.metrics.RecordGuardDecision(OutcomeAllowed)
	return c.Next()
}

func (g *RouteGuard) deny(c *fiber.Ctx, outcome string) error {
	g.metrics.RecordGuardDecision(outcome)
	return c.Redirect(g.policy.RedirectFor(RequestPath(c)), fiber.StatusFound)
}

// RequestPath returns the canonical path the guard evaluated. Outside the
// guard it canonicalizes the raw path itself.
func RequestPath(c *fiber.Ctx) string {
	if p, ok := c.Locals(requestPathKey).(string); ok {
		return p
	}
	if p, ok := CanonicalPath(c.Path()); ok {
		return p
	}
	return "/"
}

func (g *RouteGuard) isAsset(path string) bool {
	for _, prefix := range g.assetPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// ExtractToken returns the bearer token of the request, falling back to
// the named cookie.
func ExtractToken(c *fiber.Ctx, cookieName string) string {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}
	if cookieName == "" {
		return ""
	}
	return strings.TrimSpace(c.Cookies(cookieName))
}

// ExpireCookie instructs the client to drop the named cookie.
func ExpireCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// PrincipalFromContext retrieves the verified identity of the request.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*domain.Principal)
	return principal, ok
}
