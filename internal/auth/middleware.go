package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/umkm-portal/internal/domain"
	"github.com/spec-kit/umkm-portal/internal/repository"
	apperrors "github.com/spec-kit/umkm-portal/pkg/util/errorutil"
)

const (
	principalKey = "auth_principal"
	userKey      = "auth_user"
)

// AuthMiddleware validates bearer tokens for the Auth API and loads the
// calling account.
type AuthMiddleware struct {
	verifier   *Verifier
	users      repository.UserRepository
	revoked    repository.RevocationRepository
	cookieName string
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(verifier *Verifier, users repository.UserRepository, revoked repository.RevocationRepository, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, users: users, revoked: revoked, cookieName: cookieName}
}

// Handle enforces authentication for protected API routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token := ExtractToken(c, m.cookieName)
	if token == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	claims, err := m.verifier.Verify(token)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	if m.revoked != nil {
		revoked, err := m.revoked.IsRevoked(c.UserContext(), claims.ID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if revoked {
			return apperrors.NewUnauthorized("token revoked")
		}
	}

	user, err := m.users.GetByID(c.UserContext(), claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}
	if !user.Active() {
		return apperrors.NewUnauthorized("account suspended")
	}
	if user.Role != claims.Role {
		return apperrors.NewUnauthorized("stale token")
	}

	principal := claims.Principal()
	c.Locals(principalKey, &principal)
	c.Locals(userKey, user)
	return c.Next()
}

// UserFromContext retrieves the account loaded by AuthMiddleware.
func UserFromContext(c *fiber.Ctx) (*domain.User, bool) {
	val := c.Locals(userKey)
	if val == nil {
		return nil, false
	}
	user, ok := val.(*domain.User)
	return user, ok
}
