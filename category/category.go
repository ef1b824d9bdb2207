package category

import (
	"time"

	"github.com/google/uuid"
)

// Category groups transactions. A nil OwnerID marks a shared default category.
type Category struct {
	ID        uuid.UUID  `json:"id"`
	OwnerID   *uuid.UUID `json:"owner_id,omitempty"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
}

// VisibleTo reports whether owner may reference c.
func (c Category) VisibleTo(owner uuid.UUID) bool {
	return c.OwnerID == nil || *c.OwnerID == owner
}

// Names indexes categories by id.
func Names(categories []Category) map[uuid.UUID]string {
	out := make(map[uuid.UUID]string, len(categories))
	for _, c := range categories {
		out[c.ID] = c.Name
	}
	return out
}
