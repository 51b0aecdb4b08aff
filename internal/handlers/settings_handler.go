package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/dto"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/services"
	"github.com/gofiber/fiber/v2"
)

type SettingsStore interface {
	Public(ctx context.Context) (map[string]interface{}, error)
	Set(ctx context.Context, key, value, typ string) (*models.Setting, error)
	Delete(ctx context.Context, key string) error
}

type SettingsHandler struct {
	settings SettingsStore
}

func NewSettingsHandler(settings SettingsStore) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// GetSettings returns every setting decoded by its type (public).
func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	out, err := h.settings.Public(c.UserContext())
	if err != nil {
		slog.Error("failed to read settings", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to fetch settings",
		})
	}
	return c.JSON(out)
}

// SetKey creates or replaces one setting (admin only).
func (h *SettingsHandler) SetKey(c *fiber.Ctx) error {
	key := c.Params("key")
	if key == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Key parameter is required",
		})
	}

	var req dto.SettingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}
	if req.Value == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Value is required",
		})
	}

	setting, err := h.settings.Set(c.UserContext(), key, req.Value, req.Type)
	if err != nil {
		if errors.Is(err, services.ErrInvalidSettingValue) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		}
		slog.Error("failed to save setting", "key", key, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to save setting",
		})
	}

	return c.JSON(fiber.Map{
		"error":   false,
		"message": "Setting updated successfully",
		"setting": setting,
	})
}

func (h *SettingsHandler) DeleteKey(c *fiber.Ctx) error {
	key := c.Params("key")
	err := h.settings.Delete(c.UserContext(), key)
	switch {
	case errors.Is(err, services.ErrSettingNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Setting not found",
		})
	case err != nil:
		slog.Error("failed to delete setting", "key", key, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to delete setting",
		})
	}

	return c.JSON(fiber.Map{
		"error":   false,
		"message": "Setting deleted successfully",
	})
}
