package middleware

import (
	"context"
	"strings"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/config"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/dto"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RoleLookup returns the stored role of an account.
type RoleLookup func(ctx context.Context, uid uuid.UUID) (string, error)

// AdminAuthority decides whether a verified caller holds the admin
// capability: listed in config, or role admin in the database. The role
// claim inside the token is never trusted on its own.
type AdminAuthority struct {
	emails  []string
	userIDs []string
	lookup  RoleLookup
}

func NewAdminAuthority(cfg *config.Config, lookup RoleLookup) *AdminAuthority {
	emails := config.ParseCSV(strings.ToLower(cfg.AdminEmails))
	return &AdminAuthority{
		emails:  emails,
		userIDs: config.ParseCSV(cfg.AdminUserIDs),
		lookup:  lookup,
	}
}

func (a *AdminAuthority) IsAdmin(ctx context.Context, claims jwt.MapClaims) bool {
	email, _ := claims["email"].(string)
	sub, _ := claims["sub"].(string)

	if contains(a.emails, strings.ToLower(email)) || contains(a.userIDs, sub) {
		return true
	}

	uid, err := uuid.Parse(sub)
	if err != nil || a.lookup == nil {
		return false
	}
	role, err := a.lookup(ctx, uid)
	return err == nil && role == models.RoleAdmin
}

// AdminRequired must run after JWTProtected.
func AdminRequired(authority *AdminAuthority) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := Claims(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		if authority.IsAdmin(c.UserContext(), claims) {
			return c.Next()
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Admin access required",
		})
	}
}

func contains(list []string, val string) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
