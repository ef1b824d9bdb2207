package recurring

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/billbatista/budgetwise/clock"
	"github.com/billbatista/budgetwise/logging"
)

// Sweeper is the processing entry point driven by the scheduler.
type Sweeper interface {
	RunSweep(ctx context.Context, asOf time.Time) (int, error)
}

// Scheduler fires the periodic sweep on a cron schedule and once shortly
// after start, to catch events that fell due while the process was down.
type Scheduler struct {
	sweeper      Sweeper
	clock        clock.Clock
	cron         *cron.Cron
	startupDelay time.Duration

	mu      sync.Mutex
	stopped bool
	startup *time.Timer
	running sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler validates schedule (five-field cron syntax, evaluated in loc).
func NewScheduler(sweeper Sweeper, clk clock.Clock, schedule string, startupDelay time.Duration, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	logger := logging.Cron(slog.Default())

	s := &Scheduler{
		sweeper:      sweeper,
		clock:        clk,
		startupDelay: startupDelay,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.sweep(TriggerSweep) }); err != nil {
		return nil, fmt.Errorf("parsing sweep schedule %q: %w", schedule, err)
	}

	return s, nil
}

// Start begins firing. ctx bounds every sweep the scheduler starts.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.startup = time.AfterFunc(s.startupDelay, func() { s.sweep("startup") })

	slog.Info("recurring scheduler started", "startup_delay", s.startupDelay.String())
}

// Stop prevents new sweeps and waits for a running one to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.startup != nil {
		s.startup.Stop()
	}
	cronDone := s.cron.Stop()
	s.mu.Unlock()

	<-cronDone.Done()
	s.running.Wait()
	if s.cancel != nil {
		s.cancel()
	}
	slog.Info("recurring scheduler stopped")
}

func (s *Scheduler) sweep(trigger string) {
	s.mu.Lock()
	if s.stopped || s.ctx == nil {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	asOf := clock.Today(s.clock)
	slog.Info("starting recurring sweep", "trigger", trigger, "as_of", asOf.Format(time.DateOnly))

	n, err := s.sweeper.RunSweep(ctx, asOf)
	if err != nil {
		slog.Error("recurring sweep failed", "error", err, "trigger", trigger, "processed", n)
		return
	}
	slog.Info("recurring sweep complete", "trigger", trigger, "processed", n)
}
