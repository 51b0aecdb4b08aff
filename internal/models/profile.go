package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type Preferences struct {
	EmailNotifications bool `json:"emailNotifications"`
	SMSNotifications   bool `json:"smsNotifications"`
}

func DefaultPreferences() Preferences {
	return Preferences{EmailNotifications: true, SMSNotifications: false}
}

// Profile is the per-member document keyed by the account id.
type Profile struct {
	UID          uuid.UUID                       `gorm:"type:uuid;primaryKey" json:"uid"`
	Email        string                          `gorm:"size:255;not null" json:"email"`
	DisplayName  string                          `gorm:"size:120" json:"displayName"`
	Role         string                          `gorm:"size:20;not null;default:'customer';check:role IN ('customer','admin')" json:"role"`
	Reservations datatypes.JSONSlice[string]     `gorm:"type:jsonb;default:'[]'" json:"reservations"`
	Preferences  datatypes.JSONType[Preferences] `gorm:"type:jsonb" json:"preferences"`
	LastLogin    *time.Time                      `json:"lastLogin,omitempty"`
	CreatedAt    time.Time                       `json:"createdAt"`
	UpdatedAt    time.Time                       `json:"updatedAt"`
	Account      Account                         `gorm:"foreignKey:UID;references:ID" json:"-"`
}

func (Profile) TableName() string {
	return "users"
}

func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}
