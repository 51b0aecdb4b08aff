package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablebook_reservations_submitted_total",
		Help: "Reservation form submissions by outcome",
	}, []string{"result"})

	StatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablebook_reservation_transitions_total",
		Help: "Admin status changes and deletions",
	}, []string{"action", "result"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablebook_notifications_total",
		Help: "Reservation emails by recipient kind and outcome",
	}, []string{"kind", "result"})

	TriggerInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablebook_trigger_invocations_total",
		Help: "New-reservation trigger runs by outcome",
	}, []string{"result"})

	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablebook_auth_attempts_total",
		Help: "Identity operations by operation and outcome",
	}, []string{"operation", "result"})

	LiveConsoles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tablebook_live_console_sessions",
		Help: "Open admin live-listing websocket sessions",
	})
)

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
