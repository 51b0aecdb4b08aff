package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

// Reservation is a customer's request to dine. Rows are hard-deleted only by
// an admin; cancellation is a status, not a deletion.
type Reservation struct {
	ID                  uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID              *uuid.UUID `gorm:"type:uuid;index" json:"userId,omitempty"`
	CustomerName        string     `gorm:"size:120;not null" json:"customerName"`
	CustomerPhone       string     `gorm:"size:10;not null;index" json:"customerPhone"`
	CustomerEmail       string     `gorm:"size:255" json:"customerEmail,omitempty"`
	PartySize           string     `gorm:"size:10;not null" json:"partySize"`
	ReservationDate     string     `gorm:"size:10;not null;index" json:"reservationDate"`
	ReservationTime     string     `gorm:"size:5;not null" json:"reservationTime"`
	SpecialRequests     string     `gorm:"type:text" json:"specialRequests,omitempty"`
	Status              string     `gorm:"size:20;not null;default:'pending';index;check:status IN ('pending','confirmed','cancelled')" json:"status"`
	EmailError          *string    `gorm:"type:text" json:"emailError,omitempty"`
	EmailErrorTimestamp *time.Time `json:"emailErrorTimestamp,omitempty"`
	CreatedAt           time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// ValidStatus reports whether s is one of the three reservation states.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}
