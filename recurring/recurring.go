package recurring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/billbatista/budgetwise/ledger"
)

type Frequency string

const (
	Daily     Frequency = "DAILY"
	Weekly    Frequency = "WEEKLY"
	BiWeekly  Frequency = "BI_WEEKLY"
	Monthly   Frequency = "MONTHLY"
	Quarterly Frequency = "QUARTERLY"
	Yearly    Frequency = "YEARLY"
)

var Frequencies = []Frequency{Daily, Weekly, BiWeekly, Monthly, Quarterly, Yearly}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, BiWeekly, Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

// Display is the human-readable label shown next to an event.
func (f Frequency) Display() string {
	switch f {
	case Daily:
		return "Daily"
	case Weekly:
		return "Weekly"
	case BiWeekly:
		return "Every 2 weeks"
	case Monthly:
		return "Monthly"
	case Quarterly:
		return "Quarterly"
	case Yearly:
		return "Yearly"
	}
	return string(f)
}

type State string

const (
	StatePending   State = "ACTIVE_PENDING"
	StateNotYetDue State = "ACTIVE_NOT_YET_DUE"
	StateInactive  State = "INACTIVE"
)

// Event is a recurring transaction definition. NextOccurrence is its only
// clock: it is the anchor date of the next ledger entry and never moves back.
// All dates are midnight UTC.
type Event struct {
	ID                   uuid.UUID       `json:"id"`
	OwnerID              uuid.UUID       `json:"owner_id"`
	Kind                 ledger.Kind     `json:"type"`
	Amount               decimal.Decimal `json:"amount"`
	CategoryID           uuid.UUID       `json:"category_id"`
	Description          string          `json:"description,omitempty"`
	Frequency            Frequency       `json:"frequency"`
	StartDate            time.Time       `json:"start_date"`
	EndDate              *time.Time      `json:"end_date,omitempty"`
	NextOccurrence       time.Time       `json:"next_occurrence"`
	IsActive             bool            `json:"is_active"`
	OccurrencesProcessed int             `json:"occurrences_processed"`
	MaxOccurrences       *int            `json:"max_occurrences,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Exhausted reports whether the end date or the occurrence cap has been
// passed, meaning no further occurrence may be materialized.
func (e Event) Exhausted() bool {
	if e.EndDate != nil && e.NextOccurrence.After(*e.EndDate) {
		return true
	}
	if e.MaxOccurrences != nil && e.OccurrencesProcessed >= *e.MaxOccurrences {
		return true
	}
	return false
}

// State classifies e as of today. An active event whose end date or cap has
// been passed can never be selected again, so it reports StateInactive.
func (e Event) State(today time.Time) State {
	if !e.IsActive || e.Exhausted() {
		return StateInactive
	}
	if IsDue(e, today) {
		return StatePending
	}
	return StateNotYetDue
}

// Validate checks the user-controlled fields.
func (e Event) Validate() error {
	if !e.Kind.Valid() {
		return &ValidationError{Field: "type", Err: ErrInvalidKind}
	}
	if !e.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Err: ErrInvalidAmount}
	}
	if e.CategoryID == uuid.Nil {
		return &ValidationError{Field: "category_id", Err: ErrCategoryRequired}
	}
	if !e.Frequency.Valid() {
		return &ValidationError{Field: "frequency", Err: ErrInvalidFrequency}
	}
	if e.EndDate != nil && e.EndDate.Before(e.StartDate) {
		return &ValidationError{Field: "end_date", Err: ErrEndBeforeStart}
	}
	if e.MaxOccurrences != nil && *e.MaxOccurrences < 1 {
		return &ValidationError{Field: "max_occurrences", Err: ErrInvalidMaxOccurrences}
	}
	return nil
}

// Patch is a partial update: nil fields keep the stored value.
type Patch struct {
	Kind           *ledger.Kind
	Amount         *decimal.Decimal
	CategoryID     *uuid.UUID
	Description    *string
	Frequency      *Frequency
	EndDate        *time.Time
	IsActive       *bool
	MaxOccurrences *int
}

func (p Patch) Apply(e *Event) {
	if p.Kind != nil {
		e.Kind = *p.Kind
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.CategoryID != nil {
		e.CategoryID = *p.CategoryID
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Frequency != nil {
		e.Frequency = *p.Frequency
	}
	if p.EndDate != nil {
		end := *p.EndDate
		e.EndDate = &end
	}
	if p.IsActive != nil {
		e.IsActive = *p.IsActive
	}
	if p.MaxOccurrences != nil {
		limit := *p.MaxOccurrences
		e.MaxOccurrences = &limit
	}
}

var (
	// ErrNotFound is matched by every "unknown id" error. Events owned by
	// someone else are reported the same way.
	ErrNotFound = errors.New("not found")

	ErrEventNotFound    = fmt.Errorf("recurring transaction %w", ErrNotFound)
	ErrCategoryNotFound = fmt.Errorf("category %w", ErrNotFound)

	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInvalidKind           = errors.New("type must be INCOME or EXPENSE")
	ErrInvalidFrequency      = errors.New("unknown frequency")
	ErrCategoryRequired      = errors.New("category is required")
	ErrEndBeforeStart        = errors.New("end date is before start date")
	ErrInvalidMaxOccurrences = errors.New("max occurrences must be at least 1")
)

type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TransientError is a downstream failure while materializing one event. The
// event is left untouched and stays due for the next run.
type TransientError struct {
	EventID uuid.UUID
	Err     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("materializing recurring transaction %s: %v", e.EventID, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// DueFilter selects due events as of AsOf. Zero ids widen the scope to all
// owners or all events.
type DueFilter struct {
	AsOf    time.Time
	OwnerID uuid.UUID
	EventID uuid.UUID
}

// Store persists recurring events.
type Store interface {
	Create(ctx context.Context, e Event) error
	// Update writes every mutable column of e.
	Update(ctx context.Context, e Event) error
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
	GetByID(ctx context.Context, id, ownerID uuid.UUID) (*Event, error)
	ListForOwner(ctx context.Context, ownerID uuid.UUID, activeOnly bool) ([]Event, error)
	// FindDue returns due events ordered by NextOccurrence, then id.
	FindDue(ctx context.Context, f DueFilter) ([]Event, error)
	// Lock loads the event and holds it against concurrent writers until
	// the surrounding transaction ends.
	Lock(ctx context.Context, id uuid.UUID) (*Event, error)
}

// Transactor runs fn as one atomic unit of work.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Ledger interface {
	CreateEntry(ctx context.Context, e ledger.Entry) (uuid.UUID, error)
}

type Budget interface {
	RecomputeProgress(ctx context.Context, ownerID, categoryID uuid.UUID) error
}

// Invalidator clears cached aggregates; uuid.Nil means every owner.
type Invalidator interface {
	InvalidateAggregates(ctx context.Context, ownerID uuid.UUID)
}

type Categories interface {
	Exists(ctx context.Context, ownerID, categoryID uuid.UUID) (bool, error)
}
