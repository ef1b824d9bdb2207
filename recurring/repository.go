package recurring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/billbatista/budgetwise/clock"
	"github.com/billbatista/budgetwise/database"
)

const selectColumns = `SELECT id, user_id, type, amount, category_id, COALESCE(description, ''), frequency,
              start_date, end_date, next_occurrence, is_active, occurrences_processed, max_occurrences,
              created_at, updated_at
              FROM recurring_transactions`

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, e Event) error {
	query := `INSERT INTO recurring_transactions (id, user_id, type, amount, category_id, description, frequency,
              start_date, end_date, next_occurrence, is_active, occurrences_processed, max_occurrences, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := database.Conn(ctx, r.db).ExecContext(
		ctx,
		query,
		e.ID,
		e.OwnerID,
		e.Kind,
		e.Amount,
		e.CategoryID,
		nullString(e.Description),
		e.Frequency,
		e.StartDate,
		e.EndDate,
		e.NextOccurrence,
		e.IsActive,
		e.OccurrencesProcessed,
		e.MaxOccurrences,
		e.CreatedAt,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting recurring transaction: %w", err)
	}
	return nil
}

func (r *repository) Update(ctx context.Context, e Event) error {
	query := `UPDATE recurring_transactions SET
                type = $2, amount = $3, category_id = $4, description = $5, frequency = $6,
                end_date = $7, next_occurrence = $8, is_active = $9, occurrences_processed = $10,
                max_occurrences = $11, updated_at = $12
              WHERE id = $1`
	res, err := database.Conn(ctx, r.db).ExecContext(
		ctx,
		query,
		e.ID,
		e.Kind,
		e.Amount,
		e.CategoryID,
		nullString(e.Description),
		e.Frequency,
		e.EndDate,
		e.NextOccurrence,
		e.IsActive,
		e.OccurrencesProcessed,
		e.MaxOccurrences,
		e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating recurring transaction: %w", err)
	}
	return expectOneRow(res)
}

func (r *repository) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	query := `DELETE FROM recurring_transactions WHERE id = $1 AND user_id = $2`
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting recurring transaction: %w", err)
	}
	return expectOneRow(res)
}

func (r *repository) GetByID(ctx context.Context, id, ownerID uuid.UUID) (*Event, error) {
	query := selectColumns + ` WHERE id = $1 AND user_id = $2`
	return r.queryOne(ctx, query, id, ownerID)
}

// Lock takes a row lock on the event; it must run inside WithinTx.
func (r *repository) Lock(ctx context.Context, id uuid.UUID) (*Event, error) {
	if !database.InTx(ctx) {
		return nil, errors.New("locking recurring transaction outside a transaction")
	}
	query := selectColumns + ` WHERE id = $1 FOR UPDATE`
	return r.queryOne(ctx, query, id)
}

func (r *repository) ListForOwner(ctx context.Context, ownerID uuid.UUID, activeOnly bool) ([]Event, error) {
	query := selectColumns + ` WHERE user_id = $1 AND ($2 = false OR is_active) ORDER BY next_occurrence ASC, id ASC`
	return r.queryMany(ctx, query, ownerID, activeOnly)
}

// findDueQuery is IsDue and DueFilter.Matches in SQL; dueArgs fills its placeholders.
const findDueQuery = selectColumns + `
              WHERE is_active
                AND next_occurrence <= $1
                AND (end_date IS NULL OR next_occurrence <= end_date)
                AND (max_occurrences IS NULL OR occurrences_processed < max_occurrences)
                AND ($2::uuid IS NULL OR user_id = $2)
                AND ($3::uuid IS NULL OR id = $3)
              ORDER BY next_occurrence ASC, id ASC`

func dueArgs(f DueFilter) []any {
	return []any{f.AsOf, nullUUID(f.OwnerID), nullUUID(f.EventID)}
}

func (r *repository) FindDue(ctx context.Context, f DueFilter) ([]Event, error) {
	return r.queryMany(ctx, findDueQuery, dueArgs(f)...)
}

func (r *repository) queryOne(ctx context.Context, query string, args ...any) (*Event, error) {
	row := database.Conn(ctx, r.db).QueryRowContext(ctx, query, args...)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying recurring transaction: %w", err)
	}
	return e, nil
}

func (r *repository) queryMany(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying recurring transactions: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}

	return events, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (*Event, error) {
	var e Event
	var endDate sql.NullTime
	var maxOccurrences sql.NullInt64
	err := s.Scan(
		&e.ID,
		&e.OwnerID,
		&e.Kind,
		&e.Amount,
		&e.CategoryID,
		&e.Description,
		&e.Frequency,
		&e.StartDate,
		&endDate,
		&e.NextOccurrence,
		&e.IsActive,
		&e.OccurrencesProcessed,
		&maxOccurrences,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.StartDate = clock.DateOf(e.StartDate)
	e.NextOccurrence = clock.DateOf(e.NextOccurrence)
	if endDate.Valid {
		d := clock.DateOf(endDate.Time)
		e.EndDate = &d
	}
	if maxOccurrences.Valid {
		limit := int(maxOccurrences.Int64)
		e.MaxOccurrences = &limit
	}

	return &e, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}
