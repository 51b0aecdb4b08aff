package repository

import (
	"context"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeliveryRepository is the log of notification emails the provider accepted.
type DeliveryRepository struct {
	db *gorm.DB
}

func NewDeliveryRepository(db *gorm.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

func (r *DeliveryRepository) Delivered(ctx context.Context, reservationID uuid.UUID) ([]models.NotificationDelivery, error) {
	var out []models.NotificationDelivery
	if err := r.db.WithContext(ctx).Where("reservation_id = ?", reservationID).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("load deliveries: %w", err)
	}
	return out, nil
}

// Record stores d. A duplicate (reservation, recipient, kind) is ignored.
func (r *DeliveryRepository) Record(ctx context.Context, d *models.NotificationDelivery) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(d).Error
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}
