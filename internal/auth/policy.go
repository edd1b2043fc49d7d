package auth

import (
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/spec-kit/umkm-portal/internal/domain"
)

// AccessRule grants access to paths matching Pattern.
//
// Pattern forms: "/x" matches exactly "/x"; "/x/*" matches "/x" and any
// path below it; "/x*" matches any path starting with "/x".
type AccessRule struct {
	Pattern   string
	Public    bool
	Roles     []domain.Role // empty on a non-public rule means any authenticated role
	LoginPath string
}

// LoginPaths names the two sign-in entry points.
type LoginPaths struct {
	Admin string
	UMKM  string
}

// DefaultLoginPaths returns the portal's standard entry points.
func DefaultLoginPaths() LoginPaths {
	return LoginPaths{Admin: "/auth/login", UMKM: "/umkm/login"}
}

type matchKind int

const (
	matchExact matchKind = iota
	matchSegment
	matchRaw
)

type compiledRule struct {
	AccessRule
	kind   matchKind
	prefix string
}

func (r compiledRule) matches(p string) bool {
	switch r.kind {
	case matchExact:
		return p == r.prefix
	case matchSegment:
		return p == r.prefix || strings.HasPrefix(p, r.prefix+"/")
	case matchRaw:
		return strings.HasPrefix(p, r.prefix)
	default:
		return false
	}
}

// Policy maps request paths to the roles allowed to reach them. It is
// immutable after construction.
type Policy struct {
	rules    []compiledRule
	fallback AccessRule
	paths    LoginPaths
}

// NewPolicy compiles rules. Exact patterns take precedence, then prefixes
// from the longest literal down. Paths matching nothing require an
// authenticated caller of any role and redirect to the admin login.
func NewPolicy(paths LoginPaths, rules []AccessRule) *Policy {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		if rule.LoginPath == "" {
			rule.LoginPath = paths.Admin
		}
		compiled = append(compiled, compile(rule))
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		if (compiled[i].kind == matchExact) != (compiled[j].kind == matchExact) {
			return compiled[i].kind == matchExact
		}
		return len(compiled[i].prefix) > len(compiled[j].prefix)
	})
	return &Policy{
		rules:    compiled,
		fallback: AccessRule{Pattern: "*", LoginPath: paths.Admin},
		paths:    paths,
	}
}

// DefaultPolicy returns the portal's access table.
func DefaultPolicy(paths LoginPaths) *Policy {
	staff := []domain.Role{domain.RoleSuperAdmin, domain.RoleAdminStaff}
	return NewPolicy(paths, []AccessRule{
		{Pattern: "/", Public: true},
		{Pattern: paths.Admin, Public: true},
		{Pattern: "/auth/register", Public: true},
		{Pattern: paths.UMKM, Public: true},
		{Pattern: "/umkm/register", Public: true},
		{Pattern: "/umkm/*", Roles: []domain.Role{domain.RoleUMKMOwner}, LoginPath: paths.UMKM},
		{Pattern: "/staff/*", Roles: []domain.Role{domain.RoleAdminStaff}},
		{Pattern: "/dashboard*", Roles: staff},
		{Pattern: "/admin*", Roles: staff},
		{Pattern: "/companies*", Roles: staff},
	})
}

func compile(rule AccessRule) compiledRule {
	switch {
	case strings.HasSuffix(rule.Pattern, "/*"):
		return compiledRule{AccessRule: rule, kind: matchSegment, prefix: strings.TrimSuffix(rule.Pattern, "/*")}
	case strings.HasSuffix(rule.Pattern, "*"):
		return compiledRule{AccessRule: rule, kind: matchRaw, prefix: strings.TrimSuffix(rule.Pattern, "*")}
	default:
		return compiledRule{AccessRule: rule, kind: matchExact, prefix: rule.Pattern}
	}
}

// Match returns the rule governing p.
func (p *Policy) Match(requestPath string) AccessRule {
	cleaned := cleanPath(requestPath)
	for _, rule := range p.rules {
		if rule.matches(cleaned) {
			return rule.AccessRule
		}
	}
	return p.fallback
}

// IsPublic reports whether requestPath is reachable without a session.
func (p *Policy) IsPublic(requestPath string) bool {
	return p.Match(requestPath).Public
}

// IsAllowed reports whether a caller holding role may reach requestPath.
// The zero Role stands for an unauthenticated caller.
func (p *Policy) IsAllowed(requestPath string, role domain.Role) bool {
	rule := p.Match(requestPath)
	if rule.Public {
		return true
	}
	if !role.Valid() {
		return false
	}
	if len(rule.Roles) == 0 {
		return true
	}
	for _, allowed := range rule.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// RedirectFor returns the login entry point for a denied request to
// requestPath.
func (p *Policy) RedirectFor(requestPath string) string {
	return p.Match(requestPath).LoginPath
}

// LoginPathForRole returns the entry point a user of role signs in from.
func (p *Policy) LoginPathForRole(role domain.Role) string {
	switch role {
	case domain.RoleUMKMOwner:
		return p.paths.UMKM
	case domain.RoleSuperAdmin, domain.RoleAdminStaff:
		return p.paths.Admin
	default:
		return p.paths.Admin
	}
}

// CanonicalPath decodes percent escapes in a raw request path and resolves
// its dot segments. A trailing slash is kept. ok is false when the path
// does not decode.
func CanonicalPath(raw string) (canonical string, ok bool) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	canonical = cleanPath(decoded)
	if canonical != "/" && strings.HasSuffix(decoded, "/") {
		canonical += "/"
	}
	return canonical, true
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
