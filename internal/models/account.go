package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is the identity record: credentials only. Everything the
// application reads about a member lives on Profile.
type Account struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"uid"`
	Email        string    `gorm:"not null;size:255;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	DisplayName  string    `gorm:"size:120" json:"displayName"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
