package budget

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/billbatista/budgetwise/database"
)

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

// RecomputeProgress recalculates spent-to-date for every budget the owner has
// on categoryID. It joins the caller's transaction when ctx carries one, so a
// new expense and the budget it affects commit together.
func (r *repository) RecomputeProgress(ctx context.Context, ownerID, categoryID uuid.UUID) error {
	query := `UPDATE budgets b SET
                spent = COALESCE((
                    SELECT SUM(t.amount) FROM transactions t
                    WHERE t.user_id = b.user_id
                      AND t.category_id = b.category_id
                      AND t.type = 'EXPENSE'
                      AND t.transaction_date BETWEEN b.start_date AND b.end_date
                ), 0),
                updated_at = NOW()
              WHERE b.user_id = $1 AND b.category_id = $2`

	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, ownerID, categoryID); err != nil {
		return fmt.Errorf("recomputing budget progress: %w", err)
	}
	return nil
}

func (r *repository) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]Budget, error) {
	query := `SELECT id, user_id, category_id, amount, spent, start_date, end_date, updated_at
              FROM budgets WHERE user_id = $1 ORDER BY start_date DESC`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	budgets := make([]Budget, 0)
	for rows.Next() {
		var b Budget
		err := rows.Scan(&b.ID, &b.OwnerID, &b.CategoryID, &b.Amount, &b.Spent, &b.StartDate, &b.EndDate, &b.UpdatedAt)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}

	return budgets, rows.Err()
}
