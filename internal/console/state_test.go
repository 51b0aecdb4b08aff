package console

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahmetcoskunkizilkaya/tablebook/internal/models"
)

var base = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func res(name, phone, date, status string, age time.Duration) models.Reservation {
	return models.Reservation{
		ID:              uuid.New(),
		CustomerName:    name,
		CustomerPhone:   phone,
		PartySize:       "2",
		ReservationDate: date,
		ReservationTime: "19:00",
		Status:          status,
		CreatedAt:       base.Add(-age),
		UpdatedAt:       base.Add(-age),
	}
}

func sample() []models.Reservation {
	return []models.Reservation{
		res("Asha Rao", "9876543210", "2026-01-05", models.StatusPending, 3*time.Hour),
		res("Vikram Shah", "9123456780", "2026-01-06", models.StatusConfirmed, 1*time.Hour),
		res("Meera Iyer", "8000000001", "2026-01-05", models.StatusCancelled, 2*time.Hour),
		res("asha kapoor", "7000000002", "2026-01-07", models.StatusPending, 4*time.Hour),
	}
}

func TestFilter_Status(t *testing.T) {
	all := sample()
	assert.Len(t, Apply(all, Filter{Status: StatusAll}), 4)
	assert.Len(t, Apply(all, Filter{}), 4)
	assert.Len(t, Apply(all, Filter{Status: models.StatusPending}), 2)
	assert.Len(t, Apply(all, Filter{Status: models.StatusCancelled}), 1)
}

func TestFilter_DateAndSearchAreConjunctive(t *testing.T) {
	all := sample()

	got := Apply(all, Filter{Status: StatusAll, Date: "2026-01-05", Search: "ASHA"})
	require.Len(t, got, 1)
	assert.Equal(t, "Asha Rao", got[0].CustomerName)

	got = Apply(all, Filter{Search: "asha"})
	assert.Len(t, got, 2)

	got = Apply(all, Filter{Search: "912345"})
	require.Len(t, got, 1)
	assert.Equal(t, "Vikram Shah", got[0].CustomerName)

	got = Apply(all, Filter{Status: models.StatusConfirmed, Search: "asha"})
	assert.Empty(t, got)
}

func TestApply_IsIdempotentAndPure(t *testing.T) {
	all := sample()
	before := make([]models.Reservation, len(all))
	copy(before, all)

	f := Filter{Status: models.StatusPending, Search: "a"}
	first := Apply(all, f)
	second := Apply(all, f)

	assert.Equal(t, first, second)
	assert.Equal(t, before, all)
}

func TestComputeStats(t *testing.T) {
	s := ComputeStats(sample(), "2026-01-05")
	assert.Equal(t, Stats{Today: 2, Pending: 2, Confirmed: 1, Total: 4}, s)
}

func TestTransitionLegality(t *testing.T) {
	assert.True(t, CanConfirm(models.StatusPending))
	assert.False(t, CanConfirm(models.StatusConfirmed))
	assert.False(t, CanConfirm(models.StatusCancelled))

	assert.True(t, CanCancel(models.StatusPending))
	assert.True(t, CanCancel(models.StatusConfirmed))
	assert.False(t, CanCancel(models.StatusCancelled))
	assert.False(t, CanCancel("expired"))

	assert.Equal(t, []string{"confirm", "cancel"}, Actions(models.StatusPending))
	assert.Equal(t, []string{"cancel"}, Actions(models.StatusConfirmed))
	assert.Empty(t, Actions(models.StatusCancelled))
}

func TestState_ReplaceSortsNewestFirst(t *testing.T) {
	st := NewState(time.UTC, func() time.Time { return base })
	st.Replace(sample())

	v := st.View()
	require.Len(t, v.Reservations, 4)
	assert.Equal(t, "Vikram Shah", v.Reservations[0].CustomerName)
	assert.Equal(t, "asha kapoor", v.Reservations[3].CustomerName)
	assert.Equal(t, 2, v.Stats.Today)
	assert.Equal(t, StatusAll, v.Filter.Status)
}

func TestState_FilterRecomputesWithoutNewSnapshot(t *testing.T) {
	st := NewState(time.UTC, func() time.Time { return base })
	st.Replace(sample())

	st.SetFilter(Filter{Status: models.StatusPending})
	v1 := st.View()
	v2 := st.View()
	assert.Equal(t, v1, v2)
	assert.Equal(t, 2, v1.Total)
	assert.Equal(t, 4, v1.Stats.Total)

	st.SetFilter(Filter{})
	assert.Equal(t, 4, st.View().Total)
}

func TestState_ReplaceIsWholesale(t *testing.T) {
	st := NewState(time.UTC, func() time.Time { return base })
	all := sample()
	st.Replace(all)

	_, ok := st.Find(all[0].ID.String())
	assert.True(t, ok)

	st.Replace(all[1:])
	_, ok = st.Find(all[0].ID.String())
	assert.False(t, ok)
	assert.Equal(t, 3, st.View().Stats.Total)
}
