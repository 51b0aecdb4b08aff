package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/events"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/repository"
	"github.com/ahmetcoskunkizilkaya/tablebook/internal/reservation"
)

type memStore struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]models.Reservation
	createErr error
	writes    int
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[uuid.UUID]models.Reservation)}
}

func (m *memStore) Create(ctx context.Context, r *models.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	m.rows[r.ID] = *r
	m.writes++
	return nil
}

func (m *memStore) Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (m *memStore) List(ctx context.Context) ([]models.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Reservation, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) ListByUser(ctx context.Context, uid uuid.UUID) ([]models.Reservation, error) {
	all, _ := m.List(ctx)
	var out []models.Reservation
	for _, r := range all {
		if r.UserID != nil && *r.UserID == uid {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	if r.Status != expected {
		return repository.ErrStale
	}
	r.Status = next
	r.UpdatedAt = at
	m.rows[id] = r
	m.writes++
	return nil
}

func (m *memStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	m.writes++
	return nil
}

func (m *memStore) put(r models.Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[r.ID] = r
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type linkRecorder struct {
	links map[uuid.UUID][]uuid.UUID
}

func (l *linkRecorder) AppendReservation(ctx context.Context, uid, rid uuid.UUID) error {
	if l.links == nil {
		l.links = make(map[uuid.UUID][]uuid.UUID)
	}
	l.links[uid] = append(l.links[uid], rid)
	return nil
}

type fixedSlots []string

func (f fixedSlots) TimeSlots(ctx context.Context) []string { return f }

type countingSlots struct {
	slots []string
	calls int
}

func (c *countingSlots) TimeSlots(ctx context.Context) []string {
	c.calls++
	return c.slots
}

var kolkata = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*3600+1800)
	}
	return loc
}()

func newTestService(store *memStore, pub *recordingPublisher, links *linkRecorder) *ReservationService {
	var linker ProfileLinker
	if links != nil {
		linker = links
	}
	svc := NewReservationService(store, linker, fixedSlots{"19:00", "19:30"}, pub, reservation.Rules{Location: kolkata, MaxAdvanceMonths: 1})
	svc.now = func() time.Time { return time.Date(2026, 1, 5, 10, 0, 0, 0, kolkata) }
	return svc
}

func validForm() reservation.Form {
	return reservation.Form{
		CustomerName:    "Asha Rao",
		CustomerPhone:   "9876543210",
		PartySize:       "2",
		ReservationDate: "2026-01-10",
		ReservationTime: "19:00",
	}
}

func TestSubmit_CreatesOnePendingReservation(t *testing.T) {
	store := newMemStore()
	existing := models.Reservation{ID: uuid.New(), Status: models.StatusConfirmed}
	store.put(existing)
	pub := &recordingPublisher{}

	conf, err := newTestService(store, pub, nil).Submit(context.Background(), validForm(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, store.writes)
	id := uuid.MustParse(conf.ID)
	saved, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, saved.Status)
	assert.Nil(t, saved.UserID)
	assert.Equal(t, "Saturday, January 10, 2026", conf.DateLong)

	other, _ := store.Get(context.Background(), existing.ID)
	assert.Equal(t, models.StatusConfirmed, other.Status)
	assert.Equal(t, []events.Type{events.ReservationCreated}, pub.types())
}

func TestSubmit_RejectsBeforeAnyWrite(t *testing.T) {
	cases := map[string]func(f *reservation.Form){
		"bad phone":      func(f *reservation.Form) { f.CustomerPhone = "1234567890" },
		"past date":      func(f *reservation.Form) { f.ReservationDate = "2026-01-04" },
		"unknown slot":   func(f *reservation.Form) { f.ReservationTime = "18:00" },
		"missing name":   func(f *reservation.Form) { f.CustomerName = " " },
		"too far ahead":  func(f *reservation.Form) { f.ReservationDate = "2026-02-06" },
		"zero party":     func(f *reservation.Form) { f.PartySize = "0" },
		"eleven digits":  func(f *reservation.Form) { f.CustomerPhone = "98765432101" },
		"malformed mail": func(f *reservation.Form) { f.CustomerEmail = "asha@" },
		"long name":      func(f *reservation.Form) { f.CustomerName = strings.Repeat("a", reservation.MaxNameLength+1) },
		"huge party":     func(f *reservation.Form) { f.PartySize = "12345678901" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			store := newMemStore()
			pub := &recordingPublisher{}
			form := validForm()
			mutate(&form)

			_, err := newTestService(store, pub, nil).Submit(context.Background(), form, nil)
			require.Error(t, err)
			assert.True(t, reservation.IsValidationError(err))
			assert.Zero(t, store.writes)
			assert.Empty(t, pub.types())
		})
	}
}

func TestSubmit_ReadsSlotsOnlyAfterOtherRulesPass(t *testing.T) {
	slots := &countingSlots{slots: []string{"19:00"}}
	svc := NewReservationService(newMemStore(), nil, slots, &recordingPublisher{}, reservation.Rules{Location: kolkata, MaxAdvanceMonths: 1})
	svc.now = func() time.Time { return time.Date(2026, 1, 5, 10, 0, 0, 0, kolkata) }
	ctx := context.Background()

	form := validForm()
	form.CustomerPhone = "1234567890"
	_, err := svc.Submit(ctx, form, nil)
	require.True(t, reservation.IsValidationError(err))
	assert.Zero(t, slots.calls)

	_, err = svc.Submit(ctx, validForm(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, slots.calls)
}

func TestSubmit_LinksSignedInUser(t *testing.T) {
	store := newMemStore()
	links := &linkRecorder{}
	uid := uuid.New()

	conf, err := newTestService(store, &recordingPublisher{}, links).Submit(context.Background(), validForm(), &uid)
	require.NoError(t, err)

	saved, _ := store.Get(context.Background(), uuid.MustParse(conf.ID))
	require.NotNil(t, saved.UserID)
	assert.Equal(t, uid, *saved.UserID)
	assert.Equal(t, []uuid.UUID{saved.ID}, links.links[uid])
}

func TestSubmit_StoreFailure(t *testing.T) {
	store := newMemStore()
	store.createErr = errors.New("connection reset")
	pub := &recordingPublisher{}

	_, err := newTestService(store, pub, nil).Submit(context.Background(), validForm(), nil)
	assert.ErrorIs(t, err, ErrSaveFailed)
	assert.Empty(t, pub.types())
}

func seed(store *memStore, status string, owner *uuid.UUID) models.Reservation {
	created := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	r := models.Reservation{ID: uuid.New(), UserID: owner, Status: status, CreatedAt: created, UpdatedAt: created}
	store.put(r)
	return r
}

func TestAdmin_ConfirmFromPending(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	admin := NewAdminService(newTestService(store, pub, nil))
	r := seed(store, models.StatusPending, nil)

	updated, err := admin.Confirm(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, updated.Status)

	saved, _ := store.Get(context.Background(), r.ID)
	assert.Equal(t, models.StatusConfirmed, saved.Status)
	assert.True(t, saved.UpdatedAt.After(r.UpdatedAt))
	assert.Equal(t, r.CreatedAt, saved.CreatedAt)
	assert.Equal(t, []events.Type{events.ReservationUpdated}, pub.types())
}

func TestAdmin_TransitionLegality(t *testing.T) {
	tests := []struct {
		from    string
		confirm bool
		cancel  bool
	}{
		{models.StatusPending, true, true},
		{models.StatusConfirmed, false, true},
		{models.StatusCancelled, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			store := newMemStore()
			admin := NewAdminService(newTestService(store, &recordingPublisher{}, nil))

			r := seed(store, tt.from, nil)
			_, err := admin.Confirm(context.Background(), r.ID)
			if tt.confirm {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrIllegalTransition)
				saved, _ := store.Get(context.Background(), r.ID)
				assert.Equal(t, tt.from, saved.Status)
			}

			r = seed(store, tt.from, nil)
			_, err = admin.Cancel(context.Background(), r.ID)
			if tt.cancel {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrIllegalTransition)
			}
		})
	}
}

type racingStore struct {
	*memStore
}

// Get returns a stale copy: the stored row has already moved on.
func (s racingStore) Get(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	r, err := s.memStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	stale := *r
	stale.Status = models.StatusPending
	return &stale, nil
}

func TestAdmin_ConcurrentChangeIsConflict(t *testing.T) {
	store := newMemStore()
	r := seed(store, models.StatusCancelled, nil)
	svc := NewReservationService(racingStore{store}, nil, nil, nil, reservation.Rules{})

	_, err := NewAdminService(svc).Confirm(context.Background(), r.ID)
	assert.ErrorIs(t, err, ErrTransitionConflict)
	saved, _ := store.Get(context.Background(), r.ID)
	assert.Equal(t, models.StatusCancelled, saved.Status)
}

func TestAdmin_Delete(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	admin := NewAdminService(newTestService(store, pub, nil))
	r := seed(store, models.StatusCancelled, nil)

	require.NoError(t, admin.Delete(context.Background(), r.ID))
	_, err := admin.Find(context.Background(), r.ID)
	assert.ErrorIs(t, err, ErrReservationNotFound)
	assert.ErrorIs(t, admin.Delete(context.Background(), r.ID), ErrReservationNotFound)
	assert.Equal(t, []events.Type{events.ReservationDeleted}, pub.types())
}

func TestCancelMine_Ownership(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &recordingPublisher{}, nil)
	owner, stranger := uuid.New(), uuid.New()
	r := seed(store, models.StatusPending, &owner)

	_, err := svc.CancelMine(context.Background(), stranger, r.ID)
	assert.ErrorIs(t, err, ErrNotOwner)

	anonymous := seed(store, models.StatusPending, nil)
	_, err = svc.CancelMine(context.Background(), owner, anonymous.ID)
	assert.ErrorIs(t, err, ErrNotOwner)

	updated, err := svc.CancelMine(context.Background(), owner, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, updated.Status)

	mine, err := svc.ListMine(context.Background(), owner)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
