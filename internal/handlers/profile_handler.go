package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/dto"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ProfileStore interface {
	Get(ctx context.Context, uid uuid.UUID) (*models.Profile, error)
	Update(ctx context.Context, uid uuid.UUID, upd services.ProfileUpdate) (*models.Profile, error)
}

// ProfileHandler serves the caller's own profile. There is no delete.
type ProfileHandler struct {
	profiles ProfileStore
}

func NewProfileHandler(profiles ProfileStore) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	p, err := h.profiles.Get(c.UserContext(), uid)
	if err != nil {
		return profileFailure(c, err)
	}
	return c.JSON(p)
}

func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return unauthorized(c)
	}

	var upd services.ProfileUpdate
	if err := c.BodyParser(&upd); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	p, err := h.profiles.Update(c.UserContext(), uid, upd)
	if err != nil {
		return profileFailure(c, err)
	}
	return c.JSON(p)
}

func profileFailure(c *fiber.Ctx, err error) error {
	if errors.Is(err, services.ErrProfileNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: services.AuthMessage(services.CodeProfileNotFound),
		})
	}
	slog.Error("profile request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
		Error: true, Message: "Internal server error",
	})
}
