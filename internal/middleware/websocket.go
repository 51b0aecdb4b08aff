package middleware

import (
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/config"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketUpgrade rejects plain HTTP requests on websocket routes.
func WebSocketUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// WebSocketAuth verifies the access token passed as ?token= (browsers cannot
// set headers on the upgrade request). With a non-nil authority the caller
// must also be an admin.
func WebSocketAuth(cfg *config.Config, authority *AdminAuthority) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := ParseToken(cfg.JWTSecret, c.Query("token"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized: invalid or expired token",
			})
		}
		c.Locals("user", token)

		if authority != nil {
			claims, _ := Claims(c)
			if !authority.IsAdmin(c.UserContext(), claims) {
				return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
					Error: true, Message: "Admin access required",
				})
			}
		}
		return c.Next()
	}
}
