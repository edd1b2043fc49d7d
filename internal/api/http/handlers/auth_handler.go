package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/umkm-portal/internal/api/dto"
	"github.com/spec-kit/umkm-portal/internal/auth"
	"github.com/spec-kit/umkm-portal/internal/events"
	"github.com/spec-kit/umkm-portal/internal/observability"
	"github.com/spec-kit/umkm-portal/internal/service"
	apperrors "github.com/spec-kit/umkm-portal/pkg/util/errorutil"
)

// CookieOptions controls the session cookie written on login.
type CookieOptions struct {
	Name   string
	Secure bool
}

// AuthHandler exposes login, registration and logout.
type AuthHandler struct {
	auth    *service.AuthService
	cookie  CookieOptions
	metrics *observability.Metrics
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookie CookieOptions, metrics *observability.Metrics) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "auth-token"
	}
	return &AuthHandler{auth: authService, cookie: cookie, metrics: metrics}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	user, err := h.auth.Register(c.UserContext(), service.RegistrationInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	}, actorFrom(c))
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.RegisterResponse{Message: "registration successful", UserID: user.ID},
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	res, err := h.auth.Login(c.UserContext(), req.Email, req.Password, actorFrom(c))
	if err != nil {
		h.metrics.RecordLogin("failure")
		return err
	}
	h.metrics.RecordLogin("success")

	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.Meta.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.JSON(fiber.Map{
		"data": dto.LoginResponse{
			User:      dto.NewUserResponse(res.User),
			Token:     res.Token,
			ExpiresAt: res.Meta.ExpiresAt,
		},
	})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.auth.Logout(c.UserContext(), *principal, actorFrom(c)); err != nil {
		return err
	}
	auth.ExpireCookie(c, h.cookie.Name)
	return c.SendStatus(http.StatusNoContent)
}

func actorFrom(c *fiber.Ctx) events.Actor {
	return events.Actor{IP: c.IP()}
}
