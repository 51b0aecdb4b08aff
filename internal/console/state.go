// Package console holds the admin console's view model: the full reservation
// set, the derived statistics and the filtered view. The set is replaced
// wholesale on every change; filters never touch the backing store.
package console

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
)

const StatusAll = "all"

// Filter selects a subset of reservations. All three conditions must hold.
type Filter struct {
	Status string `json:"status" query:"status"`
	Date   string `json:"date" query:"date"`
	Search string `json:"search" query:"q"`
}

type Stats struct {
	Today     int `json:"today"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Total     int `json:"total"`
}

// View is what the console renders.
type View struct {
	Reservations []models.Reservation `json:"reservations"`
	Stats        Stats                `json:"stats"`
	Filter       Filter               `json:"filter"`
	Total        int                  `json:"total"`
}

// Match reports whether r passes every condition of f.
func (f Filter) Match(r *models.Reservation) bool {
	if f.Status != "" && f.Status != StatusAll && r.Status != f.Status {
		return false
	}
	if f.Date != "" && r.ReservationDate != f.Date {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(r.CustomerName), q) && !strings.Contains(r.CustomerPhone, q) {
			return false
		}
	}
	return true
}

// Apply returns the reservations matching f, preserving input order. The
// input slice is not modified.
func Apply(all []models.Reservation, f Filter) []models.Reservation {
	out := make([]models.Reservation, 0, len(all))
	for i := range all {
		if f.Match(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out
}

// ComputeStats counts reservations dated today plus pending/confirmed totals.
func ComputeStats(all []models.Reservation, today string) Stats {
	s := Stats{Total: len(all)}
	for i := range all {
		if all[i].ReservationDate == today {
			s.Today++
		}
		switch all[i].Status {
		case models.StatusPending:
			s.Pending++
		case models.StatusConfirmed:
			s.Confirmed++
		}
	}
	return s
}

// SortNewestFirst orders by createdAt descending, breaking ties by id.
func SortNewestFirst(rs []models.Reservation) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].ID.String() > rs[j].ID.String()
		}
		return rs[i].CreatedAt.After(rs[j].CreatedAt)
	})
}

// CanConfirm: only pending reservations can be confirmed.
func CanConfirm(status string) bool {
	return status == models.StatusPending
}

// CanCancel: anything not already cancelled can be cancelled.
func CanCancel(status string) bool {
	return models.ValidStatus(status) && status != models.StatusCancelled
}

// Actions lists the transitions a control may offer for status.
func Actions(status string) []string {
	actions := make([]string, 0, 2)
	if CanConfirm(status) {
		actions = append(actions, "confirm")
	}
	if CanCancel(status) {
		actions = append(actions, "cancel")
	}
	return actions
}

// State is one console session. Replace swaps the whole set; View derives
// from it under the current filter.
type State struct {
	mu       sync.RWMutex
	all      []models.Reservation
	filter   Filter
	location *time.Location
	now      func() time.Time
}

func NewState(loc *time.Location, now func() time.Time) *State {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &State{location: loc, now: now, filter: Filter{Status: StatusAll}}
}

// Replace installs a fresh snapshot. The slice is copied and sorted newest first.
func (s *State) Replace(rs []models.Reservation) {
	snapshot := make([]models.Reservation, len(rs))
	copy(snapshot, rs)
	SortNewestFirst(snapshot)

	s.mu.Lock()
	s.all = snapshot
	s.mu.Unlock()
}

func (s *State) SetFilter(f Filter) {
	if f.Status == "" {
		f.Status = StatusAll
	}
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
}

func (s *State) Filter() Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// View recomputes the filtered list and statistics from the in-memory set.
func (s *State) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	today := s.now().In(s.location).Format("2006-01-02")
	filtered := Apply(s.all, s.filter)
	return View{
		Reservations: filtered,
		Stats:        ComputeStats(s.all, today),
		Filter:       s.filter,
		Total:        len(filtered),
	}
}

// Find returns the reservation with the given id from the current snapshot.
func (s *State) Find(id string) (models.Reservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.all {
		if r.ID.String() == id {
			return r, true
		}
	}
	return models.Reservation{}, false
}
