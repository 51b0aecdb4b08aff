package middleware

import (
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/config"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS lets the public site and the admin console call the API from their
// own origins. Tokens travel in the Authorization header, never in cookies.
func CORS(cfg *config.Config) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:  cfg.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Authorization, Accept",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "X-Request-ID",
		MaxAge:        600,
	})
}
