package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/config"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/dto"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrNoUser = errors.New("no authenticated user")

func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Unauthorized: invalid or expired token",
			})
		},
	})
}

// OptionalJWT attaches the caller's token when a valid bearer token is sent
// and lets anonymous requests through unchanged.
func OptionalJWT(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return c.Next()
		}
		if token, err := ParseToken(cfg.JWTSecret, raw); err == nil {
			c.Locals("user", token)
		}
		return c.Next()
	}
}

// ParseToken validates an HS256 access token.
func ParseToken(secret, raw string) (*jwt.Token, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Claims returns the verified claims of the request, if any.
func Claims(c *fiber.Ctx) (jwt.MapClaims, bool) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return nil, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	return claims, ok
}

// SubjectID extracts the account id from verified claims.
func SubjectID(claims jwt.MapClaims) (uuid.UUID, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return uuid.Nil, ErrNoUser
	}
	return uuid.Parse(sub)
}

// CurrentUserID returns the signed-in account id.
func CurrentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	claims, ok := Claims(c)
	if !ok {
		return uuid.Nil, ErrNoUser
	}
	return SubjectID(claims)
}
