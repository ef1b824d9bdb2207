package category

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

// Exists reports whether categoryID is a category owner may use.
func (r *repository) Exists(ctx context.Context, ownerID, categoryID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1 AND (user_id IS NULL OR user_id = $2))`

	var exists bool
	if err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, categoryID, ownerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking category: %w", err)
	}
	return exists, nil
}

func (r *repository) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]Category, error) {
	query := `SELECT id, user_id, name, created_at FROM categories
              WHERE user_id IS NULL OR user_id = $1
              ORDER BY name`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		var owner uuid.NullUUID
		if err := rows.Scan(&c.ID, &owner, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		if owner.Valid {
			id := owner.UUID
			c.OwnerID = &id
		}
		categories = append(categories, c)
	}

	return categories, rows.Err()
}
