package dto

import "github.com/ahmetcoskunkizilkaya/tablebook/internal/authstate"

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type SignOutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ResetPasswordRequest struct {
	Email string `json:"email"`
}

type ConfirmResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// Session is an issued token pair plus the signed-in user.
type Session struct {
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	ExpiresIn    int64           `json:"expiresIn"`
	User         *authstate.User `json:"user"`
}

// AuthResult is the uniform envelope of every identity endpoint.
type AuthResult struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
	Session *Session        `json:"session,omitempty"`
	User    *authstate.User `json:"user,omitempty"`
	Message string          `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
	EventBus  string `json:"event_bus"`
}
