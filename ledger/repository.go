package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/billbatista/budgetwise/database"
)

const (
	// foreignKeyViolation is the Postgres SQLSTATE for a dangling reference.
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"

	recurringDateIndex = "idx_transactions_recurring_date"
)

type repository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db, now: time.Now}
}

// CreateEntry validates and inserts e, joining the caller's transaction when
// ctx carries one. A missing category surfaces as ErrCategoryNotFound.
func (r *repository) CreateEntry(ctx context.Context, e Entry) (uuid.UUID, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Source == "" {
		e.Source = SourceManual
	}
	if err := e.Validate(); err != nil {
		return uuid.Nil, err
	}

	query := `INSERT INTO transactions (id, user_id, type, amount, category_id, description, transaction_date, source, recurring_id, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := database.Conn(ctx, r.db).ExecContext(
		ctx,
		query,
		e.ID,
		e.OwnerID,
		e.Kind,
		e.Amount,
		e.CategoryID,
		e.Description,
		e.Date,
		e.Source,
		e.RecurringID,
		r.now().UTC(),
	)
	if err != nil {
		return uuid.Nil, insertError(err)
	}

	return e.ID, nil
}

// insertError maps constraint violations on transactions to ledger errors.
func insertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == foreignKeyViolation:
			return ErrCategoryNotFound
		case pqErr.Code == uniqueViolation && pqErr.Constraint == recurringDateIndex:
			return ErrDuplicateOccurrence
		}
	}
	return fmt.Errorf("inserting transaction: %w", err)
}

func (r *repository) GetRecentEntries(ctx context.Context, ownerID uuid.UUID, limit int) ([]Entry, error) {
	query := `SELECT id, user_id, type, amount, category_id, description, transaction_date, source, recurring_id, created_at
              FROM transactions
              WHERE user_id = $1
              ORDER BY transaction_date DESC, created_at DESC
              LIMIT $2`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var recurringID uuid.NullUUID
		err := rows.Scan(
			&e.ID,
			&e.OwnerID,
			&e.Kind,
			&e.Amount,
			&e.CategoryID,
			&e.Description,
			&e.Date,
			&e.Source,
			&recurringID,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if recurringID.Valid {
			id := recurringID.UUID
			e.RecurringID = &id
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// SumBetween totals income and expense for owner with dates in [from, to].
func (r *repository) SumBetween(ctx context.Context, ownerID uuid.UUID, from, to time.Time) (income, expense decimal.Decimal, err error) {
	query := `SELECT
                COALESCE(SUM(amount) FILTER (WHERE type = 'INCOME'), 0),
                COALESCE(SUM(amount) FILTER (WHERE type = 'EXPENSE'), 0)
              FROM transactions
              WHERE user_id = $1 AND transaction_date BETWEEN $2 AND $3`

	err = database.Conn(ctx, r.db).QueryRowContext(ctx, query, ownerID, from, to).Scan(&income, &expense)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("summing transactions: %w", err)
	}
	return income, expense, nil
}
