package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/config"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Auth         *handlers.AuthHandler
	Health       *handlers.HealthHandler
	Reservations *handlers.ReservationHandler
	Admin        *handlers.AdminHandler
	Settings     *handlers.SettingsHandler
	Profile      *handlers.ProfileHandler
	Live         *handlers.LiveHandler
}

func Setup(app *fiber.App, cfg *config.Config, authority *middleware.AdminAuthority, h Handlers) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", h.Health.Check)

	// Settings (public read)
	api.Get("/settings", h.Settings.GetSettings)

	// Public booking form; a bearer token, when sent, links the reservation
	api.Post("/reservations", middleware.OptionalJWT(cfg), h.Reservations.Submit)

	// Auth: 10 req/min per IP (stricter)
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
		LimitReached:      handlers.TooManyRequests,
	}))
	auth.Post("/signup", h.Auth.SignUp)
	auth.Post("/signin", h.Auth.SignIn)
	auth.Post("/signout", h.Auth.SignOut)
	auth.Post("/refresh", h.Auth.Refresh)
	auth.Post("/reset", h.Auth.ResetPassword)
	auth.Post("/reset/confirm", h.Auth.ConfirmReset)
	auth.Get("/me", middleware.JWTProtected(cfg), h.Auth.Me)

	// Member routes (JWT required)
	me := api.Group("/me", middleware.JWTProtected(cfg))
	me.Get("/reservations", h.Reservations.ListMine)
	me.Post("/reservations/:id/cancel", h.Reservations.CancelMine)
	api.Get("/profile", middleware.JWTProtected(cfg), h.Profile.Get)
	api.Patch("/profile", middleware.JWTProtected(cfg), h.Profile.Update)

	// Admin console (protected + admin required)
	admin := api.Group("/admin", middleware.JWTProtected(cfg), middleware.AdminRequired(authority))
	admin.Get("/reservations", h.Admin.List)
	admin.Get("/reservations/:id", h.Admin.Get)
	admin.Post("/reservations/:id/confirm", h.Admin.Confirm)
	admin.Post("/reservations/:id/cancel", h.Admin.Cancel)
	admin.Delete("/reservations/:id", h.Admin.Delete)
	admin.Put("/settings/:key", h.Settings.SetKey)
	admin.Delete("/settings/:key", h.Settings.DeleteKey)

	// Websockets: token passed as ?token=
	ws := app.Group("/ws", middleware.WebSocketUpgrade())
	ws.Get("/admin/reservations", middleware.WebSocketAuth(cfg, authority), websocket.New(h.Live.Console))
	ws.Get("/auth", middleware.WebSocketAuth(cfg, nil), websocket.New(h.Live.AuthState))
}
