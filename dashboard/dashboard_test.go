package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billbatista/budgetwise/clock"
)

type countingTotals struct {
	calls   int
	from    time.Time
	to      time.Time
	income  decimal.Decimal
	expense decimal.Decimal
}

func (c *countingTotals) SumBetween(ctx context.Context, ownerID uuid.UUID, from, to time.Time) (decimal.Decimal, decimal.Decimal, error) {
	c.calls++
	c.from, c.to = from, to
	return c.income, c.expense, nil
}

func newTestService() (*Service, *countingTotals) {
	totals := &countingTotals{
		income:  decimal.RequireFromString("4000"),
		expense: decimal.RequireFromString("1500.25"),
	}
	clk := clock.NewFixed(time.Date(2025, time.February, 14, 9, 0, 0, 0, time.UTC))
	return NewService(totals, clk), totals
}

func TestSummary_ComputesMonthToDate(t *testing.T) {
	svc, totals := newTestService()

	sum, err := svc.Summary(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, "2025-02", sum.Month)
	assert.Equal(t, "2499.75", sum.Net.StringFixed(2))
	assert.Equal(t, clock.Date(2025, time.February, 1), totals.from)
	assert.Equal(t, clock.Date(2025, time.February, 28), totals.to)
}

func TestSummary_CachedUntilInvalidated(t *testing.T) {
	svc, totals := newTestService()
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.Summary(ctx, owner)
	require.NoError(t, err)
	_, err = svc.Summary(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, totals.calls)

	svc.InvalidateAggregates(ctx, owner)
	_, err = svc.Summary(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, totals.calls)
}

func TestInvalidateAggregates_ScopedToOwner(t *testing.T) {
	svc, totals := newTestService()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	svc.Summary(ctx, a)
	svc.Summary(ctx, b)
	require.Equal(t, 2, totals.calls)

	svc.InvalidateAggregates(ctx, a)
	svc.Summary(ctx, a)
	svc.Summary(ctx, b)
	assert.Equal(t, 3, totals.calls)

	svc.InvalidateAggregates(ctx, uuid.Nil)
	svc.Summary(ctx, a)
	svc.Summary(ctx, b)
	assert.Equal(t, 5, totals.calls)
}

type blockingTotals struct {
	mu      sync.Mutex
	income  decimal.Decimal
	entered chan struct{}
	release chan struct{}
}

func (b *blockingTotals) SumBetween(ctx context.Context, ownerID uuid.UUID, from, to time.Time) (decimal.Decimal, decimal.Decimal, error) {
	b.mu.Lock()
	income := b.income
	b.mu.Unlock()

	if b.entered != nil {
		close(b.entered)
		b.entered = nil
		<-b.release
	}
	return income, decimal.Zero, nil
}

func (b *blockingTotals) set(income int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.income = decimal.NewFromInt(income)
}

func TestSummary_InvalidationDuringComputeIsNotCached(t *testing.T) {
	for _, scope := range []string{"all", "owner"} {
		t.Run(scope, func(t *testing.T) {
			totals := &blockingTotals{
				income:  decimal.NewFromInt(100),
				entered: make(chan struct{}),
				release: make(chan struct{}),
			}
			entered := totals.entered
			clk := clock.NewFixed(time.Date(2025, time.February, 14, 9, 0, 0, 0, time.UTC))
			svc := NewService(totals, clk)
			ctx := context.Background()
			owner := uuid.New()

			done := make(chan Summary)
			go func() {
				sum, err := svc.Summary(ctx, owner)
				assert.NoError(t, err)
				done <- sum
			}()

			<-entered
			totals.set(200)
			if scope == "all" {
				svc.InvalidateAggregates(ctx, uuid.Nil)
			} else {
				svc.InvalidateAggregates(ctx, owner)
			}
			close(totals.release)

			stale := <-done
			assert.Equal(t, "100", stale.Income.String())

			fresh, err := svc.Summary(ctx, owner)
			require.NoError(t, err)
			assert.Equal(t, "200", fresh.Income.String())
		})
	}
}

func TestSummary_OtherOwnerInvalidationKeepsResult(t *testing.T) {
	totals := &blockingTotals{
		income:  decimal.NewFromInt(100),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	entered := totals.entered
	clk := clock.NewFixed(time.Date(2025, time.February, 14, 9, 0, 0, 0, time.UTC))
	svc := NewService(totals, clk)
	ctx := context.Background()
	owner := uuid.New()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.Summary(ctx, owner)
		assert.NoError(t, err)
	}()

	<-entered
	svc.InvalidateAggregates(ctx, uuid.New())
	totals.set(200)
	close(totals.release)
	<-done

	sum, err := svc.Summary(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "100", sum.Income.String())
}
