package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/config"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
)

const testSecret = "middleware-test-secret"

func signed(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func claimsFor(uid uuid.UUID, email string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   uid.String(),
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func roles(m map[uuid.UUID]string) RoleLookup {
	return func(ctx context.Context, uid uuid.UUID) (string, error) {
		role, ok := m[uid]
		if !ok {
			return "", errors.New("profile not found")
		}
		return role, nil
	}
}

func adminApp(cfg *config.Config, lookup RoleLookup) *fiber.App {
	app := fiber.New()
	app.Get("/admin", JWTProtected(cfg), AdminRequired(NewAdminAuthority(cfg, lookup)), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func get(t *testing.T, app *fiber.App, token string) int {
	t.Helper()
	req := httptest.NewRequest("GET", "/admin", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestAdminRequired(t *testing.T) {
	cfg := &config.Config{JWTSecret: testSecret, AdminEmails: "Owner@SpiceGarden.example"}
	admin, customer, listed := uuid.New(), uuid.New(), uuid.New()
	app := adminApp(cfg, roles(map[uuid.UUID]string{admin: models.RoleAdmin, customer: models.RoleCustomer}))

	assert.Equal(t, fiber.StatusUnauthorized, get(t, app, ""))
	assert.Equal(t, fiber.StatusUnauthorized, get(t, app, signed(t, "other-secret", claimsFor(admin, "a@example.com"))))
	assert.Equal(t, fiber.StatusOK, get(t, app, signed(t, testSecret, claimsFor(admin, "a@example.com"))))
	assert.Equal(t, fiber.StatusForbidden, get(t, app, signed(t, testSecret, claimsFor(customer, "c@example.com"))))
	assert.Equal(t, fiber.StatusOK, get(t, app, signed(t, testSecret, claimsFor(listed, "owner@spicegarden.example"))))
}

func TestAdminRequired_IgnoresRoleClaim(t *testing.T) {
	cfg := &config.Config{JWTSecret: testSecret}
	customer := uuid.New()
	app := adminApp(cfg, roles(map[uuid.UUID]string{customer: models.RoleCustomer}))

	claims := claimsFor(customer, "c@example.com")
	claims["role"] = models.RoleAdmin
	assert.Equal(t, fiber.StatusForbidden, get(t, app, signed(t, testSecret, claims)))
}

func TestOptionalJWT(t *testing.T) {
	cfg := &config.Config{JWTSecret: testSecret}
	app := fiber.New()
	app.Get("/whoami", OptionalJWT(cfg), func(c *fiber.Ctx) error {
		uid, err := CurrentUserID(c)
		if err != nil {
			return c.SendString("anonymous")
		}
		return c.SendString(uid.String())
	})

	call := func(header string) string {
		req := httptest.NewRequest("GET", "/whoami", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		body := make([]byte, 64)
		n, _ := resp.Body.Read(body)
		return string(body[:n])
	}

	uid := uuid.New()
	assert.Equal(t, "anonymous", call(""))
	assert.Equal(t, "anonymous", call("Bearer not-a-token"))
	assert.Equal(t, uid.String(), call("Bearer "+signed(t, testSecret, claimsFor(uid, "m@example.com"))))
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claimsFor(uuid.New(), "x@example.com")).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = ParseToken(testSecret, raw)
	assert.Error(t, err)
}
