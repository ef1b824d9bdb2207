package ledger

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindIncome  Kind = "INCOME"
	KindExpense Kind = "EXPENSE"
)

func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

type Source string

const (
	SourceManual    Source = "manual"
	SourceRecurring Source = "recurring"
)

// Entry is one persisted income or expense transaction.
type Entry struct {
	ID          uuid.UUID       `json:"id,omitempty"`
	OwnerID     uuid.UUID       `json:"owner_id,omitempty"`
	Kind        Kind            `json:"type,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	CategoryID  uuid.UUID       `json:"category_id,omitempty"`
	Description string          `json:"description,omitempty"`
	Date        time.Time       `json:"transaction_date"`
	Source      Source          `json:"source,omitempty"`
	RecurringID *uuid.UUID      `json:"recurring_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at,omitempty"`
}

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidKind         = errors.New("type must be INCOME or EXPENSE")
	ErrEmptyDescription    = errors.New("description can't be empty")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrMissingDate         = errors.New("transaction date is required")
	ErrMissingCategory     = errors.New("category is required")
	ErrRecurringWithoutID  = errors.New("recurring entry needs the recurring transaction id")
	ErrDuplicateOccurrence = errors.New("recurring transaction already has an entry for that date")
)

// Validate checks the fields every entry must carry before it is written.
func (e Entry) Validate() error {
	if !e.Kind.Valid() {
		return ErrInvalidKind
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if e.CategoryID == uuid.Nil {
		return ErrMissingCategory
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if e.Date.IsZero() {
		return ErrMissingDate
	}
	if e.Source == SourceRecurring && (e.RecurringID == nil || *e.RecurringID == uuid.Nil) {
		return ErrRecurringWithoutID
	}
	return nil
}

// Totals sums income and expense over entries.
func Totals(entries []Entry) (income, expense decimal.Decimal) {
	income, expense = decimal.Zero, decimal.Zero
	for _, e := range entries {
		switch e.Kind {
		case KindIncome:
			income = income.Add(e.Amount)
		case KindExpense:
			expense = expense.Add(e.Amount)
		}
	}
	return income, expense
}
