package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/console"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/dto"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ConsoleService is the admin side of the reservations collection.
type ConsoleService interface {
	Snapshot(ctx context.Context) ([]models.Reservation, error)
	Find(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	Confirm(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type AdminHandler struct {
	console  ConsoleService
	location *time.Location
	now      func() time.Time
}

func NewAdminHandler(svc ConsoleService, location *time.Location) *AdminHandler {
	return &AdminHandler{console: svc, location: location, now: time.Now}
}

// List reads a fresh snapshot and applies ?status=&date=&q=.
func (h *AdminHandler) List(c *fiber.Ctx) error {
	var filter console.Filter
	if err := c.QueryParser(&filter); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid filter",
		})
	}

	rs, err := h.console.Snapshot(c.UserContext())
	if err != nil {
		slog.Error("failed to load reservations", "component", "console", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to load reservations",
		})
	}

	state := console.NewState(h.location, h.now)
	state.Replace(rs)
	state.SetFilter(filter)
	return c.JSON(dto.NewConsoleResponse(state.View()))
}

func (h *AdminHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidReservationID(c)
	}
	r, err := h.console.Find(c.UserContext(), id)
	if err != nil {
		return writeFailure(c, err)
	}
	return c.JSON(dto.ReservationRow{Reservation: *r, Actions: console.Actions(r.Status)})
}

func (h *AdminHandler) Confirm(c *fiber.Ctx) error {
	return h.transition(c, h.console.Confirm)
}

func (h *AdminHandler) Cancel(c *fiber.Ctx) error {
	return h.transition(c, h.console.Cancel)
}

func (h *AdminHandler) transition(c *fiber.Ctx, apply func(context.Context, uuid.UUID) (*models.Reservation, error)) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidReservationID(c)
	}
	r, err := apply(c.UserContext(), id)
	if err != nil {
		return writeFailure(c, err)
	}
	return c.JSON(dto.ReservationRow{Reservation: *r, Actions: console.Actions(r.Status)})
}

// Delete is permanent and needs ?confirm=true.
func (h *AdminHandler) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidReservationID(c)
	}
	if !c.QueryBool("confirm") {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Deletion must be confirmed with ?confirm=true",
		})
	}

	if err := h.console.Delete(c.UserContext(), id); err != nil {
		return writeFailure(c, err)
	}
	return c.JSON(fiber.Map{
		"error":   false,
		"message": "Reservation deleted",
	})
}
