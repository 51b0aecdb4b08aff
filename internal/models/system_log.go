package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SystemLog stores ERROR+ log records for later operator review.
type SystemLog struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Timestamp   time.Time      `gorm:"not null;index" json:"timestamp"`
	Level       string         `gorm:"size:10;not null;index" json:"level"`
	Message     string         `gorm:"type:text" json:"message"`
	Component   string         `gorm:"size:50;index" json:"component"`
	TraceID     string         `gorm:"size:36;index" json:"trace_id"`
	UserID      *string        `gorm:"size:36" json:"user_id"`
	Reservation *string        `gorm:"size:36;index" json:"reservation_id"`
	Action      string         `gorm:"size:100" json:"action"`
	Error       string         `gorm:"type:text" json:"error"`
	LatencyMs   int            `json:"latency_ms"`
	Extra       datatypes.JSON `gorm:"type:jsonb;default:'{}'" json:"extra"`
	CreatedAt   time.Time      `json:"created_at"`
}
