package budget

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Budget caps spending for one category over [StartDate, EndDate].
// Spent is derived from the ledger by RecomputeProgress.
type Budget struct {
	ID         uuid.UUID       `json:"id"`
	OwnerID    uuid.UUID       `json:"owner_id"`
	CategoryID uuid.UUID       `json:"category_id"`
	Amount     decimal.Decimal `json:"amount"`
	Spent      decimal.Decimal `json:"spent"`
	StartDate  time.Time       `json:"start_date"`
	EndDate    time.Time       `json:"end_date"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Progress is Spent as a percentage of Amount, rounded to two places.
func (b Budget) Progress() decimal.Decimal {
	if !b.Amount.IsPositive() {
		return decimal.Zero
	}
	return b.Spent.Div(b.Amount).Mul(decimal.NewFromInt(100)).Round(2)
}

func (b Budget) Remaining() decimal.Decimal {
	return b.Amount.Sub(b.Spent)
}

func (b Budget) Exceeded() bool {
	return b.Spent.GreaterThan(b.Amount)
}
