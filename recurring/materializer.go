package recurring

import (
	"context"
	"fmt"

	"github.com/billbatista/budgetwise/clock"
	"github.com/billbatista/budgetwise/ledger"
)

const (
	autoSuffix         = " (Auto)"
	defaultDescription = "Recurring Transaction"
)

// Result is one materialized occurrence: the entry written to the ledger and
// the event state that must be saved in the same transaction.
type Result struct {
	Entry ledger.Entry
	Event Event
}

type Materializer struct {
	ledger Ledger
	budget Budget
	clock  clock.Clock
}

func NewMaterializer(l Ledger, b Budget, clk clock.Clock) *Materializer {
	return &Materializer{ledger: l, budget: b, clock: clk}
}

// Materialize writes the ledger entry for e's current anchor date and returns
// the advanced event. It does not save the event; on error nothing about e
// has changed.
func (m *Materializer) Materialize(ctx context.Context, e Event) (Result, error) {
	entry := EntryFor(e)

	id, err := m.ledger.CreateEntry(ctx, entry)
	if err != nil {
		return Result{}, &TransientError{EventID: e.ID, Err: fmt.Errorf("creating ledger entry: %w", err)}
	}
	entry.ID = id

	if e.Kind == ledger.KindExpense {
		if err := m.budget.RecomputeProgress(ctx, e.OwnerID, e.CategoryID); err != nil {
			return Result{}, &TransientError{EventID: e.ID, Err: fmt.Errorf("updating budget progress: %w", err)}
		}
	}

	next := e
	next.NextOccurrence = Advance(e.NextOccurrence, e.Frequency)
	next.OccurrencesProcessed++
	if next.Exhausted() {
		next.IsActive = false
	}
	next.UpdatedAt = m.clock.Now().UTC()

	return Result{Entry: entry, Event: next}, nil
}

// EntryFor builds the ledger entry for e's due occurrence. The entry is dated
// on the anchor date, not on the day it happens to be processed.
func EntryFor(e Event) ledger.Entry {
	description := e.Description
	if description == "" {
		description = defaultDescription
	}
	recurringID := e.ID

	return ledger.Entry{
		OwnerID:     e.OwnerID,
		Kind:        e.Kind,
		Amount:      e.Amount,
		CategoryID:  e.CategoryID,
		Description: description + autoSuffix,
		Date:        e.NextOccurrence,
		Source:      ledger.SourceRecurring,
		RecurringID: &recurringID,
	}
}
