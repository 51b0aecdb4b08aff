package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/dto"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/reservation"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ReservationIntake interface {
	Submit(ctx context.Context, form reservation.Form, userID *uuid.UUID) (*reservation.Confirmation, error)
	ListMine(ctx context.Context, uid uuid.UUID) ([]models.Reservation, error)
	CancelMine(ctx context.Context, uid, id uuid.UUID) (*models.Reservation, error)
}

type ReservationHandler struct {
	reservations ReservationIntake
}

func NewReservationHandler(reservations ReservationIntake) *ReservationHandler {
	return &ReservationHandler{reservations: reservations}
}

// Submit accepts the public booking form. Signed-in submitters get the
// reservation linked to their profile.
func (h *ReservationHandler) Submit(c *fiber.Ctx) error {
	var form reservation.Form
	if err := c.BodyParser(&form); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ReservationResult{
			Success: false, Error: reservation.GenericFailureMessage,
		})
	}

	var userID *uuid.UUID
	if uid, err := middleware.CurrentUserID(c); err == nil {
		userID = &uid
	}

	confirmation, err := h.reservations.Submit(c.UserContext(), form, userID)
	if err != nil {
		var ve *reservation.ValidationError
		if errors.As(err, &ve) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ReservationResult{
				Success: false, Error: ve.Message, Field: ve.Field,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ReservationResult{
			Success: false, Error: reservation.GenericFailureMessage,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.ReservationResult{Success: true, Confirmation: confirmation})
}

func (h *ReservationHandler) ListMine(c *fiber.Ctx) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	rs, err := h.reservations.ListMine(c.UserContext(), uid)
	if err != nil {
		slog.Error("failed to list member reservations", "user_id", uid.String(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to load reservations",
		})
	}
	return c.JSON(dto.ReservationList{Reservations: rs, Total: len(rs)})
}

func (h *ReservationHandler) CancelMine(c *fiber.Ctx) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return invalidReservationID(c)
	}

	r, err := h.reservations.CancelMine(c.UserContext(), uid, id)
	if err != nil {
		return writeFailure(c, err)
	}
	return c.JSON(r)
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
		Error: true, Message: "Invalid or expired token",
	})
}

func invalidReservationID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: "Invalid reservation ID",
	})
}

// writeFailure maps a failed status change or delete. The operator sees the
// raw message.
func writeFailure(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrReservationNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrNotOwner):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrIllegalTransition), errors.Is(err, services.ErrTransitionConflict):
		status = fiber.StatusConflict
	default:
		slog.Error("reservation write failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(dto.ErrorResponse{Error: true, Message: err.Error()})
}
