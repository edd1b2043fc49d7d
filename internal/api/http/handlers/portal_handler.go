package handlers

import (
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"go.uber.org/zap"

	"github.com/spec-kit/umkm-portal/internal/auth"
)

// PortalHandler serves page navigations that passed the route guard. With
// an upstream configured it forwards them, identity headers included;
// otherwise it answers with the identity it would have forwarded.
type PortalHandler struct {
	upstream string
	logger   *zap.Logger
}

// NewPortalHandler constructs handler. An empty upstream disables proxying.
func NewPortalHandler(upstream string, logger *zap.Logger) *PortalHandler {
	return &PortalHandler{upstream: strings.TrimRight(upstream, "/"), logger: logger}
}

// Serve handles every non-API path.
func (h *PortalHandler) Serve(c *fiber.Ctx) error {
	if h.upstream != "" {
		target := h.upstream + (&url.URL{Path: auth.RequestPath(c)}).EscapedPath()
		if query := c.Request().URI().QueryString(); len(query) > 0 {
			target += "?" + string(query)
		}
		if err := proxy.Do(c, target); err != nil {
			h.logger.Error("upstream request failed", zap.String("target", target), zap.Error(err))
			return fiber.NewError(fiber.StatusBadGateway, "upstream unavailable")
		}
		c.Response().Header.Del(fiber.HeaderServer)
		return nil
	}

	page := fiber.Map{"path": auth.RequestPath(c)}
	if principal, ok := auth.PrincipalFromContext(c); ok {
		page["user"] = fiber.Map{
			"id":    principal.SubjectID,
			"email": principal.Email,
			"role":  principal.Role,
		}
	}
	return c.JSON(fiber.Map{"data": page})
}
