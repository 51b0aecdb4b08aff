package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/authstate"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/dto"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Authenticator is the identity surface the auth endpoints drive.
type Authenticator interface {
	SignUp(ctx context.Context, email, password, name string) (*dto.Session, error)
	SignIn(ctx context.Context, email, password string) (*dto.Session, error)
	SignOut(ctx context.Context, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*dto.Session, error)
	ResetPassword(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	CurrentState(ctx context.Context, uid uuid.UUID) (authstate.State, error)
}

type AuthHandler struct {
	authService Authenticator
}

func NewAuthHandler(authService Authenticator) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) SignUp(c *fiber.Ctx) error {
	var req dto.SignUpRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidAuthBody(c)
	}

	session, err := h.authService.SignUp(c.UserContext(), req.Email, req.Password, req.Name)
	if err != nil {
		return authFailure(c, "sign_up", err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.AuthResult{Success: true, Session: session, User: session.User})
}

func (h *AuthHandler) SignIn(c *fiber.Ctx) error {
	var req dto.SignInRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidAuthBody(c)
	}

	session, err := h.authService.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return authFailure(c, "sign_in", err)
	}
	return c.JSON(dto.AuthResult{Success: true, Session: session, User: session.User})
}

func (h *AuthHandler) SignOut(c *fiber.Ctx) error {
	var req dto.SignOutRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return invalidAuthBody(c)
	}

	if err := h.authService.SignOut(c.UserContext(), req.RefreshToken); err != nil {
		return authFailure(c, "sign_out", err)
	}
	return c.JSON(dto.AuthResult{Success: true})
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return invalidAuthBody(c)
	}

	session, err := h.authService.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return authFailure(c, "refresh", err)
	}
	return c.JSON(dto.AuthResult{Success: true, Session: session, User: session.User})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidAuthBody(c)
	}

	if err := h.authService.ResetPassword(c.UserContext(), req.Email); err != nil {
		return authFailure(c, "reset_password", err)
	}
	return c.JSON(dto.AuthResult{Success: true, Message: "Password reset email sent. Check your inbox."})
}

func (h *AuthHandler) ConfirmReset(c *fiber.Ctx) error {
	var req dto.ConfirmResetRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidAuthBody(c)
	}

	if err := h.authService.ConfirmPasswordReset(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return authFailure(c, "confirm_reset", err)
	}
	return c.JSON(dto.AuthResult{Success: true, Message: "Password updated. Please sign in again."})
}

// Me returns the merged account and profile of the caller.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	uid, err := middleware.CurrentUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.AuthResult{
			Success: false, Code: services.CodeInvalidCredential, Error: services.AuthMessage(services.CodeInvalidCredential),
		})
	}

	state, err := h.authService.CurrentState(c.UserContext(), uid)
	if err != nil {
		return authFailure(c, "me", err)
	}
	if !state.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.AuthResult{
			Success: false, Code: services.CodeInvalidCredential, Error: services.AuthMessage(services.CodeInvalidCredential),
		})
	}
	return c.JSON(dto.AuthResult{Success: true, User: state.User})
}

// TooManyRequests answers requests rejected by the auth rate limiter.
func TooManyRequests(c *fiber.Ctx) error {
	metrics.AuthAttempts.WithLabelValues("rate_limit", "rejected").Inc()
	return c.Status(fiber.StatusTooManyRequests).JSON(dto.AuthResult{
		Success: false,
		Code:    services.CodeTooManyRequests,
		Error:   services.AuthMessage(services.CodeTooManyRequests),
	})
}

func invalidAuthBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.AuthResult{Success: false, Error: "Invalid request body"})
}

// authFailure maps err onto the identity envelope. Only coded errors carry
// their own message; anything else is logged and answered generically.
func authFailure(c *fiber.Ctx, op string, err error) error {
	var ae *services.AuthError
	if !errors.As(err, &ae) {
		slog.Error("auth operation failed", "action", op, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.AuthResult{
			Success: false, Error: services.AuthMessage(""),
		})
	}
	if ae.Err != nil {
		slog.Warn("auth operation failed", "action", op, "code", ae.Code, "error", ae.Err)
	}
	return c.Status(authStatus(ae.Code)).JSON(dto.AuthResult{
		Success: false, Code: ae.Code, Error: ae.Message(),
	})
}

func authStatus(code string) int {
	switch code {
	case services.CodeEmailInUse:
		return fiber.StatusConflict
	case services.CodeUserNotFound, services.CodeWrongPassword, services.CodeInvalidCredential:
		return fiber.StatusUnauthorized
	case services.CodeProfileNotFound:
		return fiber.StatusNotFound
	case services.CodeTooManyRequests:
		return fiber.StatusTooManyRequests
	case services.CodeNetworkFailed:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusBadRequest
	}
}
