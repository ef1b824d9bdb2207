package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/billbatista/budgetwise/clock"
)

// Summary is the month-to-date aggregate shown on the dashboard.
type Summary struct {
	Month    string          `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Expense  decimal.Decimal `json:"expense"`
	Net      decimal.Decimal `json:"net"`
	Computed time.Time       `json:"computed_at"`
}

type Totals interface {
	SumBetween(ctx context.Context, ownerID uuid.UUID, from, to time.Time) (income, expense decimal.Decimal, err error)
}

type cacheKey struct {
	owner uuid.UUID
	month string
}

// generation identifies a cache epoch for one owner. A summary computed in
// one epoch is only stored if no invalidation happened while it was computed.
type generation struct {
	global uint64
	owner  uint64
}

// Service computes summaries and caches them per owner and month until
// InvalidateAggregates clears them.
type Service struct {
	totals Totals
	clock  clock.Clock

	mu     sync.RWMutex
	cache  map[cacheKey]Summary
	global uint64
	owners map[uuid.UUID]uint64
}

func NewService(totals Totals, clk clock.Clock) *Service {
	return &Service{
		totals: totals,
		clock:  clk,
		cache:  make(map[cacheKey]Summary),
		owners: make(map[uuid.UUID]uint64),
	}
}

// generationOf must be called with mu held.
func (s *Service) generationOf(ownerID uuid.UUID) generation {
	return generation{global: s.global, owner: s.owners[ownerID]}
}

func (s *Service) Summary(ctx context.Context, ownerID uuid.UUID) (Summary, error) {
	today := clock.Today(s.clock)
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	key := cacheKey{owner: ownerID, month: first.Format("2006-01")}

	s.mu.RLock()
	cached, ok := s.cache[key]
	gen := s.generationOf(ownerID)
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	income, expense, err := s.totals.SumBetween(ctx, ownerID, first, last)
	if err != nil {
		return Summary{}, fmt.Errorf("computing summary: %w", err)
	}

	sum := Summary{
		Month:    key.month,
		Income:   income,
		Expense:  expense,
		Net:      income.Sub(expense),
		Computed: s.clock.Now(),
	}

	s.mu.Lock()
	if s.generationOf(ownerID) == gen {
		s.cache[key] = sum
	}
	s.mu.Unlock()

	return sum, nil
}

// InvalidateAggregates drops cached summaries for ownerID, or for every
// owner when ownerID is uuid.Nil.
func (s *Service) InvalidateAggregates(ctx context.Context, ownerID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ownerID == uuid.Nil {
		s.global++
		n := len(s.cache)
		clear(s.cache)
		slog.Debug("dashboard cache cleared", "entries", n)
		return
	}
	s.owners[ownerID]++
	for k := range s.cache {
		if k.owner == ownerID {
			delete(s.cache, k)
		}
	}
	slog.Debug("dashboard cache cleared", "owner_id", ownerID)
}
