package recurring

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// IsDue is the due predicate shared by the sweep, the immediate check and
// the re-check made after an event is locked.
func IsDue(e Event, asOf time.Time) bool {
	if !e.IsActive {
		return false
	}
	if e.NextOccurrence.After(asOf) {
		return false
	}
	return !e.Exhausted()
}

// Matches reports whether e falls inside the filter's scope and is due.
func (f DueFilter) Matches(e Event) bool {
	if f.OwnerID != uuid.Nil && e.OwnerID != f.OwnerID {
		return false
	}
	if f.EventID != uuid.Nil && e.ID != f.EventID {
		return false
	}
	return IsDue(e, f.AsOf)
}

// SortDue orders events earliest anchor first, breaking ties by id.
func SortDue(events []Event) {
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.NextOccurrence.Equal(b.NextOccurrence) {
			return a.NextOccurrence.Before(b.NextOccurrence)
		}
		return a.ID.String() < b.ID.String()
	})
}
