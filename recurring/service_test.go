package recurring

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billbatista/budgetwise/clock"
	"github.com/billbatista/budgetwise/ledger"
)

func (h *harness) input(mutate ...func(*CreateInput)) CreateInput {
	in := CreateInput{
		Kind:        ledger.KindExpense,
		Amount:      decimal.RequireFromString("1200.00"),
		CategoryID:  h.category,
		Description: "Rent",
		Frequency:   Monthly,
	}
	for _, fn := range mutate {
		fn(&in)
	}
	return in
}

func TestCreateDefaultsToTodayAndMaterializes(t *testing.T) {
	today := clock.Date(2025, time.March, 10)
	h := newHarness(t, today)

	e, err := h.service.Create(context.Background(), h.owner, h.input())
	require.NoError(t, err)

	assert.Equal(t, today, e.StartDate)
	assert.Equal(t, clock.Date(2025, time.April, 10), e.NextOccurrence)
	assert.Equal(t, 1, e.OccurrencesProcessed)
	assert.True(t, e.IsActive)

	entries := h.ledger.forEvent(e.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, today, entries[0].Date)
	assert.Equal(t, []string{EventCreated, ledger.EventEntryCreated, EventMaterialized}, h.audit.types())
}

func TestCreateInPastMaterializesOneOccurrence(t *testing.T) {
	h := newHarness(t, clock.Date(2025, time.March, 10))

	e, err := h.service.Create(context.Background(), h.owner, h.input(func(in *CreateInput) {
		in.StartDate = ptr(clock.Date(2025, time.January, 31))
	}))
	require.NoError(t, err)

	assert.Len(t, h.ledger.forEvent(e.ID), 1)
	assert.Equal(t, clock.Date(2025, time.February, 28), e.NextOccurrence)
	assert.Equal(t, StatePending, e.State(h.service.Today()), "still behind, the sweep catches up")
}

func TestCreateFutureEventWaits(t *testing.T) {
	h := newHarness(t, clock.Date(2025, time.March, 10))
	start := clock.Date(2025, time.April, 1)

	e, err := h.service.Create(context.Background(), h.owner, h.input(func(in *CreateInput) {
		in.StartDate = ptr(start.Add(15 * time.Hour))
	}))
	require.NoError(t, err)

	assert.Equal(t, start, e.StartDate, "time of day is dropped")
	assert.Equal(t, start, e.NextOccurrence)
	assert.Zero(t, e.OccurrencesProcessed)
	assert.Empty(t, h.ledger.all())
	assert.Zero(t, h.cache.count())
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t, clock.Date(2025, time.March, 10))

	tests := []struct {
		name   string
		mutate func(*CreateInput)
		want   error
	}{
		{"zero amount", func(in *CreateInput) { in.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(in *CreateInput) { in.Amount = decimal.NewFromInt(-5) }, ErrInvalidAmount},
		{"bad kind", func(in *CreateInput) { in.Kind = "TRANSFER" }, ErrInvalidKind},
		{"bad frequency", func(in *CreateInput) { in.Frequency = "HOURLY" }, ErrInvalidFrequency},
		{"no category", func(in *CreateInput) { in.CategoryID = uuid.Nil }, ErrCategoryRequired},
		{"end before start", func(in *CreateInput) {
			in.StartDate = ptr(clock.Date(2025, time.March, 10))
			in.EndDate = ptr(clock.Date(2025, time.March, 9))
		}, ErrEndBeforeStart},
		{"zero max", func(in *CreateInput) { in.MaxOccurrences = ptr(0) }, ErrInvalidMaxOccurrences},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.service.Create(context.Background(), h.owner, h.input(tt.mutate))
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidation(err))
		})
	}
	assert.Empty(t, h.store.events)
}

func TestCreateUnknownCategory(t *testing.T) {
	h := newHarness(t, clock.Date(2025, time.March, 10))

	_, err := h.service.Create(context.Background(), h.owner, h.input(func(in *CreateInput) {
		in.CategoryID = uuid.New()
	}))
	assert.ErrorIs(t, err, ErrCategoryNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsValidation(err))

	_, err = h.service.Create(context.Background(), uuid.New(), h.input())
	assert.ErrorIs(t, err, ErrCategoryNotFound, "another owner's category is not visible")
	assert.Empty(t, h.store.events)
}

func TestUpdateKeepsScheduleState(t *testing.T) {
	today := clock.Date(2025, time.March, 10)
	h := newHarness(t, today)
	e := h.seed(ledger.KindExpense, Monthly, clock.Date(2025, time.April, 1), func(e *Event) {
		e.OccurrencesProcessed = 4
	})

	amount := decimal.RequireFromString("1350.00")
	got, err := h.service.Update(context.Background(), h.owner, e.ID, Patch{
		Amount:      &amount,
		Description: ptr("Rent (new lease)"),
		Frequency:   ptr(Quarterly),
	})
	require.NoError(t, err)

	assert.True(t, amount.Equal(got.Amount))
	assert.Equal(t, "Rent (new lease)", got.Description)
	assert.Equal(t, Quarterly, got.Frequency)
	assert.Equal(t, e.CategoryID, got.CategoryID)
	assert.Equal(t, e.NextOccurrence, got.NextOccurrence)
	assert.Equal(t, 4, got.OccurrencesProcessed)
	assert.Empty(t, h.ledger.all())
}

func TestUpdateRejectsInvalidPatch(t *testing.T) {
	h := newHarness(t, clock.Date(2025, time.March, 10))
	e := h.seed(ledger.KindExpense, Monthly, clock.Date(2025, time.April, 1))

	_, err := h.service.Update(context.Background(), h.owner, e.ID, Patch{Amount: ptr(decimal.Zero)})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = h.service.Update(context.Background(), h.owner, e.ID, Patch{CategoryID: ptr(uuid.New())})
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	assert.Equal(t, e, h.store.get(e.ID))
}

func TestUpdateOtherOwner(t *testing.T) {
	h := newHarness(t, clock.Date(2025, time.March, 10))
	e := h.seed(ledger.KindExpense, Monthly, clock.Date(2025, time.April, 1))

	_, err := h.service.Update(context.Background(), uuid.New(), e.ID, Patch{Description: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.service.Update(context.Background(), h.owner, uuid.New(), Patch{})
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestToggleReactivationCatchesUp(t *testing.T) {
	today := clock.Date(2025, time.March, 10)
	h := newHarness(t, today)
	e := h.seed(ledger.KindExpense, Monthly, clock.Date(2025, time.January, 10), func(e *Event) {
		e.IsActive = false
		e.OccurrencesProcessed = 2
	})

	got, err := h.service.ToggleActive(context.Background(), h.owner, e.ID)
	require.NoError(t, err)

	assert.True(t, got.IsActive)
	assert.Equal(t, 3, got.OccurrencesProcessed, "counters are not reset")
	assert.Equal(t, clock.Date(2025, time.February, 10), got.NextOccurrence)
	entries := h.ledger.forEvent(e.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, clock.Date(2025, time.January, 10), entries[0].Date)

	got, err = h.service.ToggleActive(context.Background(), h.owner, e.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Len(t, h.ledger.forEvent(e.ID), 1)
}

func TestDelete(t *testing.T) {
	h := newHarness(t, clock.Date(2025, time.March, 10))
	e := h.seed(ledger.KindExpense, Monthly, clock.Date(2025, time.April, 1))

	err := h.service.Delete(context.Background(), uuid.New(), e.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, h.service.Delete(context.Background(), h.owner, e.ID))
	_, err = h.service.GetByID(context.Background(), h.owner, e.ID)
	assert.ErrorIs(t, err, ErrEventNotFound)
	assert.Equal(t, []string{EventDeleted}, h.audit.types())
}

func TestListForOwner(t *testing.T) {
	h := newHarness(t, clock.Date(2025, time.March, 10))
	later := h.seed(ledger.KindExpense, Monthly, clock.Date(2025, time.May, 1))
	sooner := h.seed(ledger.KindIncome, Monthly, clock.Date(2025, time.April, 1))
	paused := h.seed(ledger.KindExpense, Monthly, clock.Date(2025, time.April, 15), func(e *Event) { e.IsActive = false })
	h.store.put(Event{ID: uuid.New(), OwnerID: uuid.New(), IsActive: true})

	all, err := h.service.ListForOwner(context.Background(), h.owner, false)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{sooner.ID, paused.ID, later.ID}, ids(all))

	active, err := h.service.ListForOwner(context.Background(), h.owner, true)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{sooner.ID, later.ID}, ids(active))
}

func ids(events []Event) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}
