package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrStale means a conditional write matched no row because the record
	// changed since it was read.
	ErrStale = errors.New("record changed concurrently")
)

type ReservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Create inserts r. The id and timestamps are assigned here when unset.
func (r *ReservationRepository) Create(ctx context.Context, res *models.Reservation) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(res).Error; err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepository) Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var res models.Reservation
	err := r.db.WithContext(ctx).First(&res, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load reservation: %w", err)
	}
	return &res, nil
}

// List returns every reservation, newest first.
func (r *ReservationRepository) List(ctx context.Context) ([]models.Reservation, error) {
	var out []models.Reservation
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return out, nil
}

func (r *ReservationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error) {
	var out []models.Reservation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list reservations for user: %w", err)
	}
	return out, nil
}

// UpdateStatus moves id from expected to next. It only writes when the stored
// status still equals expected.
func (r *ReservationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(map[string]interface{}{
			"status":     next,
			"updated_at": at,
		})
	if result.Error != nil {
		return fmt.Errorf("update reservation status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return r.missingOrStale(ctx, id)
	}
	return nil
}

func (r *ReservationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Reservation{})
	if result.Error != nil {
		return fmt.Errorf("delete reservation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AnnotateEmailError records a failed notification run on the reservation.
func (r *ReservationRepository) AnnotateEmailError(ctx context.Context, id uuid.UUID, message string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"email_error":           message,
			"email_error_timestamp": at,
			"updated_at":            at,
		})
	if result.Error != nil {
		return fmt.Errorf("annotate email error: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUnnotified returns reservations created in (after, before) that have
// neither a recorded delivery nor a recorded email error.
func (r *ReservationRepository) ListUnnotified(ctx context.Context, after, before time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("created_at > ? AND created_at < ?", after, before).
		Where("email_error IS NULL").
		Where("NOT EXISTS (SELECT 1 FROM notification_deliveries d WHERE d.reservation_id = reservations.id)").
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list unnotified reservations: %w", err)
	}
	return ids, nil
}

func (r *ReservationRepository) missingOrStale(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Reservation{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("check reservation: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrStale
}
