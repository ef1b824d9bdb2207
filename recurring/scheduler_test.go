package recurring

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billbatista/budgetwise/clock"
)

type countingSweeper struct {
	mu   sync.Mutex
	asOf []time.Time
}

func (s *countingSweeper) RunSweep(ctx context.Context, asOf time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asOf = append(s.asOf, asOf)
	return 0, nil
}

func (s *countingSweeper) calls() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.asOf...)
}

func TestSchedulerRunsStartupSweep(t *testing.T) {
	sweeper := &countingSweeper{}
	clk := clock.NewFixed(time.Date(2025, time.March, 10, 23, 30, 0, 0, time.UTC))

	s, err := NewScheduler(sweeper, clk, "0 1 * * *", 10*time.Millisecond, time.UTC)
	require.NoError(t, err)

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool { return len(sweeper.calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, clock.Date(2025, time.March, 10), sweeper.calls()[0])
}

func TestSchedulerStopCancelsPendingStartup(t *testing.T) {
	sweeper := &countingSweeper{}

	s, err := NewScheduler(sweeper, clock.NewFixed(time.Now()), "@daily", time.Hour, nil)
	require.NoError(t, err)

	s.Start(context.Background())
	s.Stop()

	s.sweep(TriggerSweep)
	assert.Empty(t, sweeper.calls(), "no sweep after stop")
}

func TestSchedulerRejectsInvalidSchedule(t *testing.T) {
	_, err := NewScheduler(&countingSweeper{}, clock.NewFixed(time.Now()), "every day", time.Minute, time.UTC)
	assert.ErrorContains(t, err, "parsing sweep schedule")
}
