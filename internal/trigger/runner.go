// Package trigger invokes the new-reservation function once per created
// reservation, retrying with exponential backoff on failure. Delivery is
// at-least-once: the function itself must tolerate re-runs.
package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/events"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/metrics"
	"github.com/google/uuid"
)

type Handler interface {
	Handle(ctx context.Context, reservationID uuid.UUID) error
}

// Backlog finds reservations whose trigger may never have completed, e.g.
// because the process stopped mid-run or the event was dropped.
type Backlog interface {
	ListUnnotified(ctx context.Context, createdAfter, createdBefore time.Time) ([]uuid.UUID, error)
}

type Options struct {
	MaxAttempts int
	Backoff     time.Duration
	// SweepInterval is how often the backlog is re-checked; 0 disables sweeping.
	SweepInterval time.Duration
	// SweepWindow bounds how far back the sweep looks.
	SweepWindow time.Duration
}

type Runner struct {
	bus     events.Bus
	handler Handler
	backlog Backlog
	opts    Options

	wg       sync.WaitGroup
	inflight sync.Map
	cancel   context.CancelFunc
}

func NewRunner(bus events.Bus, handler Handler, backlog Backlog, opts Options) *Runner {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if opts.SweepWindow <= 0 {
		opts.SweepWindow = 24 * time.Hour
	}
	return &Runner{bus: bus, handler: handler, backlog: backlog, opts: opts}
}

// Start subscribes to the change feed and returns immediately.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	sub := r.bus.Subscribe(256)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.bus.Unsubscribe(sub)
		for {
			select {
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if ev.Type != events.ReservationCreated {
					continue
				}
				id, err := uuid.Parse(ev.ReservationID)
				if err != nil {
					slog.Warn("ignoring event with bad reservation id", "component", "trigger", "reservation_id", ev.ReservationID)
					continue
				}
				r.Dispatch(ctx, id)
			case <-ctx.Done():
				return
			}
		}
	}()

	if r.backlog != nil && r.opts.SweepInterval > 0 {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			ticker := time.NewTicker(r.opts.SweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					r.Sweep(ctx)
				case <-ctx.Done():
					return
				}
			}
		}()
	}
}

// Stop cancels in-flight retries and waits for workers to exit.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

// Dispatch runs the handler for id in the background unless a run for the
// same reservation is already in flight.
func (r *Runner) Dispatch(ctx context.Context, id uuid.UUID) {
	if _, busy := r.inflight.LoadOrStore(id, struct{}{}); busy {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.inflight.Delete(id)
		r.Invoke(ctx, id)
	}()
}

// Invoke calls the handler until it succeeds, attempts run out or ctx ends.
func (r *Runner) Invoke(ctx context.Context, id uuid.UUID) error {
	log := slog.With("component", "trigger", "reservation_id", id.String())
	delay := r.opts.Backoff

	var err error
	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		start := time.Now()
		err = r.handler.Handle(ctx, id)
		if err == nil {
			metrics.TriggerInvocations.WithLabelValues("ok").Inc()
			log.Info("trigger completed", "attempt", attempt, "latency_ms", time.Since(start).Milliseconds())
			return nil
		}
		metrics.TriggerInvocations.WithLabelValues("error").Inc()

		if attempt == r.opts.MaxAttempts {
			break
		}
		log.Warn("trigger failed, retrying", "attempt", attempt, "retry_in", delay.String(), "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}

	log.Error("trigger gave up", "attempts", r.opts.MaxAttempts, "error", err)
	return err
}

// Sweep re-dispatches reservations created inside the sweep window that have
// no delivery and no recorded email error.
func (r *Runner) Sweep(ctx context.Context) {
	now := time.Now()
	ids, err := r.backlog.ListUnnotified(ctx, now.Add(-r.opts.SweepWindow), now.Add(-time.Minute))
	if err != nil {
		slog.Error("trigger sweep failed", "component", "trigger", "error", err)
		return
	}
	if len(ids) > 0 {
		slog.Info("trigger sweep found unnotified reservations", "component", "trigger", "count", len(ids))
	}
	for _, id := range ids {
		r.Dispatch(ctx, id)
	}
}
