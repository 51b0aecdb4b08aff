package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/console"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/events"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/repository"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/reservation"
	"github.com/google/uuid"
)

var (
	ErrReservationNotFound = errors.New("reservation not found")
	ErrIllegalTransition   = errors.New("transition not allowed from current status")
	ErrTransitionConflict  = errors.New("reservation status changed concurrently")
	ErrNotOwner            = errors.New("reservation belongs to another user")
	ErrSaveFailed          = errors.New("failed to save reservation")
)

type ReservationStore interface {
	Create(ctx context.Context, r *models.Reservation) error
	Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	List(ctx context.Context) ([]models.Reservation, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Reservation, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, next string, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ProfileLinker interface {
	AppendReservation(ctx context.Context, uid, reservationID uuid.UUID) error
}

type SlotSource interface {
	TimeSlots(ctx context.Context) []string
}

type EventPublisher interface {
	Publish(ctx context.Context, event *events.Event) error
}

type ReservationService struct {
	store     ReservationStore
	profiles  ProfileLinker
	slots     SlotSource
	publisher EventPublisher
	rules     reservation.Rules
	now       func() time.Time
}

func NewReservationService(store ReservationStore, profiles ProfileLinker, slots SlotSource, publisher EventPublisher, rules reservation.Rules) *ReservationService {
	return &ReservationService{
		store:     store,
		profiles:  profiles,
		slots:     slots,
		publisher: publisher,
		rules:     rules,
		now:       time.Now,
	}
}

// Submit validates the form and inserts exactly one pending reservation.
// userID links the reservation to the signed-in submitter and may be nil.
func (s *ReservationService) Submit(ctx context.Context, form reservation.Form, userID *uuid.UUID) (*reservation.Confirmation, error) {
	rules := s.rules
	if s.slots != nil && len(rules.Slots) == 0 {
		rules.SlotLookup = func() []string { return s.slots.TimeSlots(ctx) }
	}

	clean, err := rules.Validate(form, s.now())
	if err != nil {
		metrics.ReservationsSubmitted.WithLabelValues("invalid").Inc()
		return nil, err
	}

	r := &models.Reservation{
		UserID:          userID,
		CustomerName:    clean.CustomerName,
		CustomerPhone:   clean.CustomerPhone,
		CustomerEmail:   clean.CustomerEmail,
		PartySize:       clean.PartySize,
		ReservationDate: clean.ReservationDate,
		ReservationTime: clean.ReservationTime,
		SpecialRequests: clean.SpecialRequests,
		Status:          models.StatusPending,
	}
	if err := s.store.Create(ctx, r); err != nil {
		metrics.ReservationsSubmitted.WithLabelValues("error").Inc()
		slog.Error("failed to save reservation", "component", "intake", "error", err)
		return nil, ErrSaveFailed
	}
	metrics.ReservationsSubmitted.WithLabelValues("ok").Inc()

	log := slog.With("component", "intake", "reservation_id", r.ID.String())
	log.Info("reservation created", "date", r.ReservationDate, "time", r.ReservationTime)

	if userID != nil && s.profiles != nil {
		if err := s.profiles.AppendReservation(ctx, *userID, r.ID); err != nil {
			log.Warn("failed to link reservation to profile", "user_id", userID.String(), "error", err)
		}
	}
	s.emit(ctx, events.ReservationCreated, r.ID)

	confirmation := reservation.NewConfirmation(r)
	return &confirmation, nil
}

// ListMine returns the reservations submitted by uid while signed in.
func (s *ReservationService) ListMine(ctx context.Context, uid uuid.UUID) ([]models.Reservation, error) {
	return s.store.ListByUser(ctx, uid)
}

// CancelMine cancels a reservation owned by uid.
func (s *ReservationService) CancelMine(ctx context.Context, uid, id uuid.UUID) (*models.Reservation, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID == nil || *r.UserID != uid {
		return nil, ErrNotOwner
	}
	return s.transition(ctx, r, "cancel", console.CanCancel, models.StatusCancelled)
}

func (s *ReservationService) load(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	r, err := s.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrReservationNotFound
	}
	return r, err
}

// transition applies next when allowed(current) holds and the stored status
// has not moved since r was read.
func (s *ReservationService) transition(ctx context.Context, r *models.Reservation, action string, allowed func(string) bool, next string) (*models.Reservation, error) {
	if !allowed(r.Status) {
		metrics.StatusTransitions.WithLabelValues(action, "illegal").Inc()
		return nil, ErrIllegalTransition
	}

	at := s.now().UTC()
	err := s.store.UpdateStatus(ctx, r.ID, r.Status, next, at)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrReservationNotFound
	case errors.Is(err, repository.ErrStale):
		metrics.StatusTransitions.WithLabelValues(action, "conflict").Inc()
		return nil, ErrTransitionConflict
	case err != nil:
		metrics.StatusTransitions.WithLabelValues(action, "error").Inc()
		return nil, err
	}
	metrics.StatusTransitions.WithLabelValues(action, "ok").Inc()

	slog.Info("reservation status changed", "component", "console", "reservation_id", r.ID.String(), "action", action, "from", r.Status, "to", next)
	updated := *r
	updated.Status = next
	updated.UpdatedAt = at
	s.emit(ctx, events.ReservationUpdated, r.ID)
	return &updated, nil
}

// emit publishes a change event. The write is already committed, so a
// publish failure is only logged; the trigger sweep picks up missed creates.
func (s *ReservationService) emit(ctx context.Context, t events.Type, id uuid.UUID) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewEvent(t, id)); err != nil {
		slog.Error("failed to publish change event", "component", "events", "reservation_id", id.String(), "event", string(t), "error", err)
	}
}

// AdminService is the console's write and snapshot side.
type AdminService struct {
	*ReservationService
}

func NewAdminService(rs *ReservationService) *AdminService {
	return &AdminService{ReservationService: rs}
}

// Snapshot reads the whole collection, newest first.
func (s *AdminService) Snapshot(ctx context.Context) ([]models.Reservation, error) {
	rs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reservations: %w", err)
	}
	return rs, nil
}

// Find loads one reservation by id.
func (s *AdminService) Find(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	return s.load(ctx, id)
}

// Confirm is only legal from pending.
func (s *AdminService) Confirm(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, r, "confirm", console.CanConfirm, models.StatusConfirmed)
}

// Cancel is legal from any status but cancelled.
func (s *AdminService) Cancel(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	r, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, r, "cancel", console.CanCancel, models.StatusCancelled)
}

// Delete removes the reservation permanently.
func (s *AdminService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.StatusTransitions.WithLabelValues("delete", "not_found").Inc()
		return ErrReservationNotFound
	}
	metrics.StatusTransitions.WithLabelValues("delete", metrics.Outcome(err)).Inc()
	if err != nil {
		return err
	}
	slog.Info("reservation deleted", "component", "console", "reservation_id", id.String(), "action", "delete")
	s.emit(ctx, events.ReservationDeleted, id)
	return nil
}
