package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/repository"
)

var (
	ErrSettingNotFound     = errors.New("setting not found")
	ErrInvalidSettingValue = errors.New("value does not match its type")
)

type SettingStore interface {
	All(ctx context.Context) ([]models.Setting, error)
	Get(ctx context.Context, key string) (*models.Setting, error)
	Upsert(ctx context.Context, key, value, typ string) (*models.Setting, error)
	CreateIfMissing(ctx context.Context, key, value, typ string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// SettingsService serves the public, admin-writable settings collection,
// including the offered time-slot list.
type SettingsService struct {
	store        SettingStore
	defaultSlots []string
}

func NewSettingsService(store SettingStore, defaultSlots []string) *SettingsService {
	return &SettingsService{store: store, defaultSlots: defaultSlots}
}

// Public returns every setting decoded according to its type.
func (s *SettingsService) Public(ctx context.Context) (map[string]interface{}, error) {
	rows, err := s.store.All(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[string]interface{}, len(rows))
	for _, row := range rows {
		result[row.Key] = decodeSetting(row)
	}
	if _, ok := result[models.SettingTimeSlots]; !ok {
		result[models.SettingTimeSlots] = s.defaultSlots
	}
	return result, nil
}

func decodeSetting(row models.Setting) interface{} {
	var value interface{}
	switch row.Type {
	case "bool":
		value, _ = strconv.ParseBool(row.Value)
	case "int":
		value, _ = strconv.Atoi(row.Value)
	case "json":
		if err := json.Unmarshal([]byte(row.Value), &value); err != nil {
			value = nil
		}
	default:
		value = row.Value
	}
	return value
}

func checkSettingValue(key, value, typ string) error {
	var err error
	switch typ {
	case "string":
	case "bool":
		_, err = strconv.ParseBool(value)
	case "int":
		_, err = strconv.Atoi(value)
	case "json":
		if !json.Valid([]byte(value)) {
			err = ErrInvalidSettingValue
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidSettingValue, typ)
	}
	if err != nil {
		return fmt.Errorf("%w: %s must be %s", ErrInvalidSettingValue, key, typ)
	}

	if key == models.SettingTimeSlots {
		if typ != "json" {
			return fmt.Errorf("%w: %s must be json", ErrInvalidSettingValue, key)
		}
		var slots []string
		if err := json.Unmarshal([]byte(value), &slots); err != nil {
			return fmt.Errorf("%w: %s must be a list of HH:MM strings", ErrInvalidSettingValue, key)
		}
		for _, slot := range slots {
			if _, err := time.Parse("15:04", slot); err != nil {
				return fmt.Errorf("%w: %q is not an HH:MM time", ErrInvalidSettingValue, slot)
			}
		}
	}
	return nil
}

func (s *SettingsService) Set(ctx context.Context, key, value, typ string) (*models.Setting, error) {
	if typ == "" {
		typ = "string"
	}
	if err := checkSettingValue(key, value, typ); err != nil {
		return nil, err
	}
	setting, err := s.store.Upsert(ctx, key, value, typ)
	if err != nil {
		return nil, err
	}
	slog.Info("setting updated", "component", "settings", "action", "set", "key", key)
	return setting, nil
}

func (s *SettingsService) Delete(ctx context.Context, key string) error {
	err := s.store.Delete(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrSettingNotFound
	}
	return err
}

// TimeSlots returns the configured slot list, falling back to the defaults
// when none is stored or the stored value is unreadable.
func (s *SettingsService) TimeSlots(ctx context.Context) []string {
	row, err := s.store.Get(ctx, models.SettingTimeSlots)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Warn("failed to load time slots, using defaults", "component", "settings", "error", err)
		}
		return s.defaultSlots
	}
	var slots []string
	if err := json.Unmarshal([]byte(row.Value), &slots); err != nil || len(slots) == 0 {
		slog.Warn("stored time slots unreadable, using defaults", "component", "settings")
		return s.defaultSlots
	}
	return slots
}

// SeedDefaults writes the default settings that are not present yet.
func (s *SettingsService) SeedDefaults(ctx context.Context, restaurantName string) error {
	slots, err := json.Marshal(s.defaultSlots)
	if err != nil {
		return err
	}
	defaults := []models.Setting{
		{Key: models.SettingTimeSlots, Value: string(slots), Type: "json"},
		{Key: "restaurant_name", Value: restaurantName, Type: "string"},
	}
	for _, d := range defaults {
		created, err := s.store.CreateIfMissing(ctx, d.Key, d.Value, d.Type)
		if err != nil {
			return err
		}
		if created {
			slog.Info("seeded default setting", "component", "settings", "key", d.Key)
		}
	}
	return nil
}
