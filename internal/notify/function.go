// Package notify builds and dispatches the emails sent when a reservation is
// created: one alert per staff recipient and, when the customer left an
// address, one confirmation to the customer.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/mailer"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/repository"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/reservation"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrReservationGone is returned by ReservationStore.Get when the document
// no longer exists.
var ErrReservationGone = repository.ErrNotFound

type ReservationStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	AnnotateEmailError(ctx context.Context, id uuid.UUID, message string, at time.Time) error
}

type DeliveryLog interface {
	Delivered(ctx context.Context, reservationID uuid.UUID) ([]models.NotificationDelivery, error)
	Record(ctx context.Context, d *models.NotificationDelivery) error
}

type Sender interface {
	Send(ctx context.Context, msg *mailer.Message) error
}

type Config struct {
	RestaurantName  string
	RestaurantPhone string
	SiteURL         string
	StaffRecipients []string
	Location        *time.Location
}

// Function is the new-reservation trigger body. It holds no per-invocation state.
type Function struct {
	store      ReservationStore
	deliveries DeliveryLog
	sender     Sender
	cfg        Config
	now        func() time.Time
}

func NewFunction(store ReservationStore, deliveries DeliveryLog, sender Sender, cfg Config) *Function {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Function{
		store:      store,
		deliveries: deliveries,
		sender:     sender,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Outgoing is one message addressed to one recipient.
type Outgoing struct {
	Kind    string
	Message *mailer.Message
}

// Handle sends every notification for the reservation that has not been
// delivered by an earlier run. All sends run concurrently and Handle returns
// only after every one has settled. On failure the error is recorded on the
// reservation and returned so the caller can retry.
func (f *Function) Handle(ctx context.Context, reservationID uuid.UUID) error {
	log := slog.With("component", "trigger", "reservation_id", reservationID.String())

	r, err := f.store.Get(ctx, reservationID)
	if errors.Is(err, ErrReservationGone) {
		log.Info("reservation deleted before notification, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load reservation: %w", err)
	}

	outgoing, err := f.Build(r)
	if err != nil {
		return f.fail(ctx, log, r.ID, err)
	}

	if len(outgoing) == 0 {
		log.Warn("reservation has no notification recipients")
		marker := &models.NotificationDelivery{
			ID:            uuid.New(),
			ReservationID: r.ID,
			Kind:          models.NotificationNone,
			DeliveredAt:   f.now().UTC(),
		}
		if err := f.deliveries.Record(ctx, marker); err != nil {
			return fmt.Errorf("record empty dispatch: %w", err)
		}
		return nil
	}

	done, err := f.deliveries.Delivered(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("load delivery log: %w", err)
	}
	pending := skipDelivered(outgoing, done)
	if len(pending) == 0 {
		log.Info("all notifications already delivered")
		return nil
	}

	var g errgroup.Group
	for _, out := range pending {
		out := out
		g.Go(func() error {
			if err := f.sender.Send(ctx, out.Message); err != nil {
				metrics.NotificationsSent.WithLabelValues(out.Kind, "error").Inc()
				return fmt.Errorf("%s notification to %s: %w", out.Kind, out.Message.To, err)
			}
			metrics.NotificationsSent.WithLabelValues(out.Kind, "ok").Inc()

			record := &models.NotificationDelivery{
				ID:            uuid.New(),
				ReservationID: r.ID,
				Recipient:     out.Message.To,
				Kind:          out.Kind,
				DeliveredAt:   f.now().UTC(),
			}
			if err := f.deliveries.Record(ctx, record); err != nil {
				// the email went out; a retry may send it once more
				log.Warn("failed to record delivery", "recipient", out.Message.To, "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return f.fail(ctx, log, r.ID, err)
	}

	log.Info("notifications sent", "count", len(pending))
	return nil
}

func (f *Function) fail(ctx context.Context, log *slog.Logger, id uuid.UUID, cause error) error {
	log.Error("notification dispatch failed", "error", cause)
	if err := f.store.AnnotateEmailError(ctx, id, cause.Error(), f.now().UTC()); err != nil {
		log.Error("failed to record email error on reservation", "error", err)
	}
	return cause
}

// Build renders every message for r, staff alerts first.
func (f *Function) Build(r *models.Reservation) ([]Outgoing, error) {
	data := f.data(r)
	out := make([]Outgoing, 0, len(f.cfg.StaffRecipients)+1)

	subject, text, html, err := staffTemplates.render(data)
	if err != nil {
		return nil, fmt.Errorf("render staff notification: %w", err)
	}
	for _, to := range f.cfg.StaffRecipients {
		out = append(out, Outgoing{
			Kind:    models.NotificationStaff,
			Message: &mailer.Message{To: to, Subject: subject, Text: text, HTML: html},
		})
	}

	if r.CustomerEmail != "" {
		subject, text, html, err := customerTemplates.render(data)
		if err != nil {
			return nil, fmt.Errorf("render customer notification: %w", err)
		}
		out = append(out, Outgoing{
			Kind:    models.NotificationCustomer,
			Message: &mailer.Message{To: r.CustomerEmail, ToName: r.CustomerName, Subject: subject, Text: text, HTML: html},
		})
	}
	return out, nil
}

func skipDelivered(all []Outgoing, done []models.NotificationDelivery) []Outgoing {
	seen := make(map[string]bool, len(done))
	for _, d := range done {
		seen[d.Kind+"|"+strings.ToLower(d.Recipient)] = true
	}
	pending := make([]Outgoing, 0, len(all))
	for _, o := range all {
		if !seen[o.Kind+"|"+strings.ToLower(o.Message.To)] {
			pending = append(pending, o)
		}
	}
	return pending
}

type messageData struct {
	ID              string
	Name            string
	Phone           string
	Email           string
	PartySize       string
	DateLong        string
	TimeLabel       string
	Requests        string
	Status          string
	Submitted       string
	Restaurant      string
	RestaurantPhone string
	AdminURL        string
}

func (d messageData) EmailOrNone() string {
	if d.Email == "" {
		return "Not provided"
	}
	return d.Email
}

func (d messageData) RequestsOrNone() string {
	if d.Requests == "" {
		return "None"
	}
	return d.Requests
}

func (d messageData) GuestWord() string {
	if d.PartySize == "1" {
		return "guest"
	}
	return "guests"
}

func (f *Function) data(r *models.Reservation) messageData {
	return messageData{
		ID:              r.ID.String(),
		Name:            r.CustomerName,
		Phone:           r.CustomerPhone,
		Email:           r.CustomerEmail,
		PartySize:       r.PartySize,
		DateLong:        reservation.FormatLongDate(r.ReservationDate),
		TimeLabel:       reservation.FormatTime(r.ReservationTime),
		Requests:        r.SpecialRequests,
		Status:          r.Status,
		Submitted:       r.CreatedAt.In(f.cfg.Location).Format("Jan 2, 2006 3:04 PM MST"),
		Restaurant:      f.cfg.RestaurantName,
		RestaurantPhone: f.cfg.RestaurantPhone,
		AdminURL:        strings.TrimRight(f.cfg.SiteURL, "/") + "/admin",
	}
}
