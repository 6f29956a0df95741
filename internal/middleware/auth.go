// Package middleware provides HTTP middleware components for the application.
// It includes authentication and role checks for the fiber web framework.
package middleware

import (
	"log/slog"
	"strings"

	"viewly/internal/models"
	"viewly/internal/utils"
	"viewly/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

const claimsKey = "claims"

// AuthMiddleware validates bearer tokens issued by the authentication service.
type AuthMiddleware struct {
	secret string
	logger *slog.Logger
}

func NewAuthMiddleware(secret string, logger *slog.Logger) *AuthMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthMiddleware{secret: secret, logger: logger.With("component", "auth")}
}

// Handler validates the JWT and stores its claims on the request.
func (m *AuthMiddleware) Handler(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return response.ErrorWithCode(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "missing authorization header", nil)
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return response.ErrorWithCode(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "invalid authorization format", nil)
	}

	claims, err := utils.ParseToken(m.secret, strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		m.logger.Debug("token rejected", "path", c.Path(), "error", err)
		return response.ErrorWithCode(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "invalid token", nil)
	}

	c.Locals(claimsKey, claims)
	c.Locals("userID", claims.UserID)
	return c.Next()
}

// AdminAuthMiddleware lets only admins through. It must run after Handler.
func AdminAuthMiddleware(c *fiber.Ctx) error {
	claims, ok := c.Locals(claimsKey).(*models.UserClaims)
	if !ok {
		return response.ErrorWithCode(c, fiber.StatusUnauthorized, "UNAUTHENTICATED", "invalid claims", nil)
	}
	if claims.Role != models.RoleAdmin {
		return response.ErrorWithCode(c, fiber.StatusForbidden, "UNAUTHORIZED", "insufficient permissions", nil)
	}
	return c.Next()
}

// CallerFrom returns the authenticated caller stored by Handler.
func CallerFrom(c *fiber.Ctx) (models.Caller, bool) {
	claims, ok := c.Locals(claimsKey).(*models.UserClaims)
	if !ok || claims == nil {
		return models.Caller{}, false
	}
	return claims.Caller(), true
}
