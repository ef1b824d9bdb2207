package cli

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/billbatista/budgetwise/api"
	"github.com/billbatista/budgetwise/budget"
	"github.com/billbatista/budgetwise/category"
	"github.com/billbatista/budgetwise/clock"
	"github.com/billbatista/budgetwise/config"
	"github.com/billbatista/budgetwise/dashboard"
	"github.com/billbatista/budgetwise/database"
	"github.com/billbatista/budgetwise/eventlogger"
	"github.com/billbatista/budgetwise/ledger"
	"github.com/billbatista/budgetwise/recurring"
	"github.com/billbatista/budgetwise/session"
	"github.com/billbatista/budgetwise/user"
)

// app is the dependency graph shared by serve and sweep.
type app struct {
	db        *sql.DB
	clock     clock.Clock
	worker    *eventlogger.Worker
	processor *recurring.Processor
	deps      api.Deps
}

// openApp connects to the database, applies migrations and wires the
// engine. The caller owns close.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "database connection", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, WrapExitError(ExitFailure, "running migrations", err)
	}

	clk := clock.System{Location: cfg.Location()}

	events := eventlogger.NewSqlEventLogger(db)
	worker := eventlogger.NewWorker(events, cfg.EventBuffer)
	worker.Start()

	entries := ledger.NewRepository(db)
	categories := category.NewRepository(db)
	budgets := budget.NewRepository(db)
	summaries := dashboard.NewService(entries, clk)
	tx := database.NewTransactor(db)
	store := recurring.NewRepository(db)

	materializer := recurring.NewMaterializer(entries, budgets, clk)
	processor := recurring.NewProcessor(store, tx, materializer, summaries, clk, recurring.WithAuditor(worker))
	service := recurring.NewService(store, tx, categories, processor, clk, recurring.WithAuditor(worker))

	return &app{
		db:        db,
		clock:     clk,
		worker:    worker,
		processor: processor,
		deps: api.Deps{
			Recurring:  service,
			Sweeper:    processor,
			Categories: categories,
			Entries:    entries,
			Budgets:    budgets,
			Summaries:  summaries,
			Users:      user.NewRepository(db),
			Sessions:   session.NewRepository(db, clk),
			Audit:      worker,
			History:    events,
			Clock:      clk,
		},
	}, nil
}

func (a *app) close() {
	a.worker.Shutdown()
	if err := a.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
