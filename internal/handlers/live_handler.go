package handlers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/authstate"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/console"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/dto"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/events"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/middleware"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const liveBuffer = 16

// AuthStates streams sign-in changes per account.
type AuthStates interface {
	Subscribe(ctx context.Context, uid uuid.UUID) (*authstate.Subscription, error)
}

// LiveHandler serves the websocket feeds: the admin live listing and the
// per-account auth state stream.
type LiveHandler struct {
	console  ConsoleService
	bus      events.Bus
	states   AuthStates
	location *time.Location
}

func NewLiveHandler(svc ConsoleService, bus events.Bus, states AuthStates, location *time.Location) *LiveHandler {
	return &LiveHandler{console: svc, bus: bus, states: states, location: location}
}

// Console pushes the filtered listing on connect and after every change.
// Filter messages from the client recompute from the session's snapshot.
func (h *LiveHandler) Console(conn *websocket.Conn) {
	metrics.LiveConsoles.Inc()
	defer metrics.LiveConsoles.Dec()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := h.bus.Subscribe(liveBuffer)
	defer h.bus.Unsubscribe(sub)

	state := console.NewState(h.location, nil)
	var writeMu sync.Mutex
	push := func() error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(dto.NewConsoleResponse(state.View()))
	}
	refresh := func() error {
		rs, err := h.console.Snapshot(ctx)
		if err != nil {
			return err
		}
		state.Replace(rs)
		return push()
	}

	if err := refresh(); err != nil {
		slog.Error("live console: initial snapshot failed", "component", "console", "error", err)
		return
	}

	go func() {
		defer cancel()
		for {
			var f console.Filter
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			state.SetFilter(f)
			if err := push(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub:
			if !ok {
				return
			}
			// one re-read covers a burst of changes
			drain(sub)
			if err := refresh(); err != nil {
				slog.Warn("live console: refresh failed", "component", "console", "error", err)
				return
			}
		}
	}
}

func drain(sub events.Subscriber) {
	for {
		select {
		case _, ok := <-sub:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// AuthState streams the caller's auth state, current state first.
func (h *LiveHandler) AuthState(conn *websocket.Conn) {
	uid, ok := socketUserID(conn)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := h.states.Subscribe(ctx, uid)
	if err != nil {
		slog.Warn("auth stream: subscribe failed", "user_id", uid.String(), "error", err)
		return
	}
	defer sub.Unsubscribe()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-sub.C:
			if !ok {
				return
			}
			if err := conn.WriteJSON(state); err != nil {
				return
			}
		}
	}
}

func socketUserID(conn *websocket.Conn) (uuid.UUID, bool) {
	token, ok := conn.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return uuid.Nil, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, false
	}
	uid, err := middleware.SubjectID(claims)
	return uid, err == nil
}
