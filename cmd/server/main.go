package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/google/uuid"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/authstate"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/config"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/database"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/events"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/logging"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/mailer"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/notify"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/repository"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/reservation"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/routes"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/services"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/trigger"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg := config.Load()

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(database.DB)
	logging.WithDatabase(pgLogHandler)

	// Log cleanup (30-day retention)
	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cleanupDone)

	// Change feed
	bus, err := events.Open(cfg.EventBus, cfg.RedisURL)
	if err != nil {
		slog.Error("event bus init failed", "kind", cfg.EventBus, "error", err)
		os.Exit(1)
	}

	// Mail
	mail, err := mailer.NewFromConfig(mailer.Config{
		Provider:       cfg.MailProvider,
		SendGridAPIKey: cfg.SendGridAPIKey,
		FromEmail:      cfg.MailFrom,
		FromName:       cfg.MailFromName,
	})
	if err != nil {
		slog.Error("mailer init failed", "error", err)
		os.Exit(1)
	}

	// Repositories
	reservationRepo := repository.NewReservationRepository(database.DB)
	deliveryRepo := repository.NewDeliveryRepository(database.DB)
	settingRepo := repository.NewSettingRepository(database.DB)

	// Services
	settingsService := services.NewSettingsService(settingRepo, cfg.TimeSlots())
	if err := settingsService.SeedDefaults(context.Background(), cfg.RestaurantName); err != nil {
		slog.Error("seeding settings failed", "error", err)
	}
	profileService := services.NewProfileService(database.DB)

	var authService *services.AuthService
	broker := authstate.NewBroker(func(ctx context.Context, uid uuid.UUID) (authstate.State, error) {
		return authService.CurrentState(ctx, uid)
	})
	authService = services.NewAuthService(database.DB, cfg, mail, broker)

	location := cfg.Location()
	reservationService := services.NewReservationService(reservationRepo, profileService, settingsService, bus, reservation.Rules{
		Location:         location,
		MaxAdvanceMonths: cfg.MaxAdvanceMonths,
	})
	adminService := services.NewAdminService(reservationService)

	// New-reservation trigger
	if len(cfg.StaffRecipients()) == 0 {
		slog.Warn("STAFF_EMAILS is empty, staff will not be notified of new reservations")
	}
	notifyFn := notify.NewFunction(reservationRepo, deliveryRepo, mail, notify.Config{
		RestaurantName:  cfg.RestaurantName,
		RestaurantPhone: cfg.RestaurantPhone,
		SiteURL:         cfg.SiteURL,
		StaffRecipients: cfg.StaffRecipients(),
		Location:        location,
	})
	runner := trigger.NewRunner(bus, notifyFn, reservationRepo, trigger.Options{
		MaxAttempts:   cfg.TriggerMaxAttempts,
		Backoff:       cfg.TriggerBackoff,
		SweepInterval: 5 * time.Minute,
	})
	runner.Start(context.Background())

	authority := middleware.NewAdminAuthority(cfg, func(ctx context.Context, uid uuid.UUID) (string, error) {
		p, err := profileService.Get(ctx, uid)
		if err != nil {
			return "", err
		}
		return p.Role, nil
	})

	// Handlers
	h := routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService),
		Health:       handlers.NewHealthHandler(database.Ping, cfg.EventBus),
		Reservations: handlers.NewReservationHandler(reservationService),
		Admin:        handlers.NewAdminHandler(adminService, location),
		Settings:     handlers.NewSettingsHandler(settingsService),
		Profile:      handlers.NewProfileHandler(profileService),
		Live:         handlers.NewLiveHandler(adminService, bus, broker, location),
	}

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, authority, h)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "event_bus", cfg.EventBus)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	runner.Stop()
	if err := bus.Close(); err != nil {
		slog.Error("event bus close error", "error", err)
	}

	close(cleanupDone)
	pgLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	// Close database connections
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
