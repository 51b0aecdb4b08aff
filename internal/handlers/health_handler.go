package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/dto"
	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	ping    func() error
	busKind string
}

func NewHealthHandler(ping func() error, busKind string) *HealthHandler {
	return &HealthHandler{ping: ping, busKind: busKind}
}

// Check reports 503 while the database is unreachable so a load balancer
// stops routing reservations to this instance.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	resp := dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        "ok",
		EventBus:  h.busKind,
	}
	if err := h.ping(); err != nil {
		resp.Status = "degraded"
		resp.DB = "unhealthy: " + err.Error()
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}
