package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationStaff    = "staff"
	NotificationCustomer = "customer"
	// NotificationNone marks a reservation that had no recipient at all.
	NotificationNone = "none"
)

// NotificationDelivery records one email that the provider accepted, so a
// re-run of the new-reservation trigger skips recipients already notified.
type NotificationDelivery struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ReservationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_delivery_reservation_recipient,priority:1" json:"reservation_id"`
	Recipient     string    `gorm:"size:255;not null;uniqueIndex:idx_delivery_reservation_recipient,priority:2" json:"recipient"`
	Kind          string    `gorm:"size:20;not null;uniqueIndex:idx_delivery_reservation_recipient,priority:3" json:"kind"`
	DeliveredAt   time.Time `gorm:"not null" json:"delivered_at"`
}
