package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// ErrUnavailable is returned while the circuit around the provider is open.
var ErrUnavailable = errors.New("email provider temporarily unavailable")

// Message is one email with parallel plain-text and HTML bodies.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Provider delivers a message. Implementations must be safe for concurrent use.
type Provider interface {
	Send(ctx context.Context, msg *Message) error
}

// Mailer guards a Provider with a circuit breaker so a failing provider is
// not hammered by every trigger retry.
type Mailer struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker
}

func New(provider Provider) *Mailer {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "mail-provider",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "component", "mailer", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Mailer{provider: provider, breaker: cb}
}

func (m *Mailer) Send(ctx context.Context, msg *Message) error {
	if msg.To == "" {
		return errors.New("recipient is required")
	}
	_, err := m.breaker.Execute(func() (interface{}, error) {
		return nil, m.provider.Send(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrUnavailable
	}
	if err != nil {
		return fmt.Errorf("send to %s: %w", msg.To, err)
	}
	return nil
}

// Config selects and configures a provider.
type Config struct {
	Provider       string // "sendgrid" or "log"
	SendGridAPIKey string
	FromEmail      string
	FromName       string
}

func NewFromConfig(cfg Config) (*Mailer, error) {
	switch cfg.Provider {
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, errors.New("SENDGRID_API_KEY is required for the sendgrid provider")
		}
		return New(NewSendGridProvider(cfg.SendGridAPIKey, cfg.FromEmail, cfg.FromName)), nil
	case "log", "":
		return New(NewLogProvider(cfg.FromEmail)), nil
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
	}
}
