package handlers

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	fws "github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/console"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/dto"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/events"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
)

// countingConsole serves a mutable collection and counts full re-reads.
type countingConsole struct {
	*fakeConsole
	mu    sync.Mutex
	calls int
}

func (c *countingConsole) Snapshot(ctx context.Context) ([]models.Reservation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	out := make([]models.Reservation, len(c.rows))
	copy(out, c.rows)
	return out, nil
}

func (c *countingConsole) snapshots() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *countingConsole) set(rows []models.Reservation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = rows
}

func liveRow(status string, created time.Time) models.Reservation {
	return models.Reservation{
		ID:              uuid.New(),
		CustomerName:    "Guest " + status,
		CustomerPhone:   "9876543210",
		PartySize:       "2",
		ReservationDate: "2026-01-10",
		ReservationTime: "19:00",
		Status:          status,
		CreatedAt:       created,
	}
}

func dialConsole(t *testing.T, svc ConsoleService, bus events.Bus) *fws.Conn {
	t.Helper()
	h := NewLiveHandler(svc, bus, nil, time.UTC)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws/admin/reservations", websocket.New(h.Console))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	conn, _, err := fws.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws/admin/reservations", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readListing(t *testing.T, conn *fws.Conn) dto.ConsoleResponse {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var out dto.ConsoleResponse
	require.NoError(t, conn.ReadJSON(&out))
	return out
}

func TestLiveConsole_RerendersOnEveryChange(t *testing.T) {
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	pending := liveRow(models.StatusPending, base)
	confirmed := liveRow(models.StatusConfirmed, base.Add(time.Minute))
	svc := &countingConsole{fakeConsole: &fakeConsole{rows: []models.Reservation{pending, confirmed}}}
	bus := events.NewMemoryBus()
	defer bus.Close()
	ctx := context.Background()

	conn := dialConsole(t, svc, bus)

	first := readListing(t, conn)
	assert.Equal(t, 1, svc.snapshots())
	assert.Equal(t, 2, first.Stats.Total)
	require.Len(t, first.Reservations, 2)
	assert.Equal(t, confirmed.ID, first.Reservations[0].ID)

	t.Run("filter recomputes without a re-read", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(console.Filter{Status: models.StatusPending}))
		out := readListing(t, conn)
		require.Len(t, out.Reservations, 1)
		assert.Equal(t, pending.ID, out.Reservations[0].ID)
		assert.Equal(t, 2, out.Stats.Total)
		assert.Equal(t, 1, svc.snapshots())
	})

	t.Run("insert", func(t *testing.T) {
		added := liveRow(models.StatusPending, base.Add(2*time.Minute))
		svc.set([]models.Reservation{pending, confirmed, added})
		require.NoError(t, bus.Publish(ctx, events.NewEvent(events.ReservationCreated, added.ID)))

		out := readListing(t, conn)
		assert.Equal(t, 2, svc.snapshots())
		assert.Equal(t, 3, out.Stats.Total)
		assert.Equal(t, models.StatusPending, out.Filter.Status)
		require.Len(t, out.Reservations, 2)
		assert.Equal(t, added.ID, out.Reservations[0].ID)
	})

	t.Run("update", func(t *testing.T) {
		moved := pending
		moved.Status = models.StatusConfirmed
		svc.set([]models.Reservation{moved, confirmed})
		require.NoError(t, bus.Publish(ctx, events.NewEvent(events.ReservationUpdated, moved.ID)))

		out := readListing(t, conn)
		assert.Equal(t, 3, svc.snapshots())
		assert.Empty(t, out.Reservations)
		assert.Equal(t, 2, out.Stats.Confirmed)
	})

	t.Run("delete", func(t *testing.T) {
		svc.set([]models.Reservation{confirmed})
		require.NoError(t, bus.Publish(ctx, events.NewEvent(events.ReservationDeleted, pending.ID)))

		out := readListing(t, conn)
		assert.Equal(t, 4, svc.snapshots())
		assert.Equal(t, 1, out.Stats.Total)
	})
}

func TestDrainEmptiesBufferedEvents(t *testing.T) {
	sub := make(events.Subscriber, 4)
	sub <- events.NewEvent(events.ReservationCreated, uuid.New())
	sub <- events.NewEvent(events.ReservationUpdated, uuid.New())

	drain(sub)
	assert.Len(t, sub, 0)

	close(sub)
	drain(sub)
}
