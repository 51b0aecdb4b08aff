package services

import "strings"

// Identity error codes. The "auth/" prefix is part of the code.
const (
	CodeEmailInUse        = "auth/email-already-in-use"
	CodeInvalidEmail      = "auth/invalid-email"
	CodeWeakPassword      = "auth/weak-password"
	CodeUserNotFound      = "auth/user-not-found"
	CodeWrongPassword     = "auth/wrong-password"
	CodeTooManyRequests   = "auth/too-many-requests"
	CodeNetworkFailed     = "auth/network-request-failed"
	CodeInvalidCredential = "auth/invalid-credential"
	CodeExpiredActionCode = "auth/expired-action-code"
	CodeProfileNotFound   = "auth/profile-not-found"
)

const genericAuthMessage = "An error occurred. Please try again."

var authMessages = map[string]string{
	CodeEmailInUse:        "This email is already registered. Please sign in instead.",
	CodeInvalidEmail:      "Please enter a valid email address.",
	CodeWeakPassword:      "Password should be at least 6 characters.",
	CodeUserNotFound:      "No account found with this email.",
	CodeWrongPassword:     "Incorrect password. Please try again.",
	CodeTooManyRequests:   "Too many attempts. Please try again later.",
	CodeNetworkFailed:     "Network error. Please check your connection.",
	CodeInvalidCredential: "Invalid email or password.",
	CodeExpiredActionCode: "This reset link has expired or was already used.",
	CodeProfileNotFound:   "User profile not found.",
}

// AuthError is a failure of an identity operation the user can act on.
type AuthError struct {
	Code string
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Message returns the user-facing sentence for the error's code.
func (e *AuthError) Message() string {
	return AuthMessage(e.Code)
}

func authErr(code string) *AuthError {
	return &AuthError{Code: code}
}

// AuthMessage maps an identity error code to its user-facing sentence.
// Unknown codes get a generic message.
func AuthMessage(code string) string {
	if msg, ok := authMessages[code]; ok {
		return msg
	}
	if !strings.HasPrefix(code, "auth/") {
		if msg, ok := authMessages["auth/"+code]; ok {
			return msg
		}
	}
	return genericAuthMessage
}
