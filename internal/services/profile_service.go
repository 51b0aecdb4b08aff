package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileService owns the users/{uid} documents. Profiles are never deleted
// through the API.
type ProfileService struct {
	db *gorm.DB
}

func NewProfileService(db *gorm.DB) *ProfileService {
	return &ProfileService{db: db}
}

func (s *ProfileService) Get(ctx context.Context, uid uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).First(&profile, "uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &profile, nil
}

// ProfileUpdate carries the fields a member may change on their own profile.
// Role and reservations are not among them.
type ProfileUpdate struct {
	DisplayName *string             `json:"displayName"`
	Preferences *models.Preferences `json:"preferences"`
}

func (s *ProfileService) Update(ctx context.Context, uid uuid.UUID, upd ProfileUpdate) (*models.Profile, error) {
	changes := map[string]interface{}{"updated_at": time.Now()}
	if upd.DisplayName != nil {
		changes["display_name"] = strings.TrimSpace(*upd.DisplayName)
	}
	if upd.Preferences != nil {
		changes["preferences"] = datatypes.NewJSONType(*upd.Preferences)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Profile{}).Where("uid = ?", uid).Updates(changes)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrProfileNotFound
		}
		if upd.DisplayName != nil {
			return tx.Model(&models.Account{}).Where("id = ?", uid).Update("display_name", changes["display_name"]).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, uid)
}

// AppendReservation adds a reservation id to the member's list. A missing
// profile is not an error.
func (s *ProfileService) AppendReservation(ctx context.Context, uid uuid.UUID, reservationID uuid.UUID) error {
	err := s.db.WithContext(ctx).
		Model(&models.Profile{}).
		Where("uid = ?", uid).
		Updates(map[string]interface{}{
			"reservations": gorm.Expr("COALESCE(reservations, '[]'::jsonb) || to_jsonb(?::text)", reservationID.String()),
			"updated_at":   time.Now(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to link reservation to profile: %w", err)
	}
	return nil
}
