package recurring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/billbatista/budgetwise/clock"
	"github.com/billbatista/budgetwise/eventlogger"
	"github.com/billbatista/budgetwise/ledger"
)

const (
	TriggerSweep     = "sweep"
	TriggerImmediate = "immediate"
)

// Auditor receives audit events once the write they describe is committed.
type Auditor interface {
	Log(event eventlogger.Event)
}

type noopAuditor struct{}

func (noopAuditor) Log(eventlogger.Event) {}

type Option func(*options)

type options struct {
	audit Auditor
}

func WithAuditor(a Auditor) Option {
	return func(o *options) {
		if a != nil {
			o.audit = a
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{audit: noopAuditor{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Processor turns due events into ledger entries. Both the periodic sweep and
// the immediate check go through it; at most one materialization per event id
// is in flight at a time, enforced here in-process and by the store's row lock
// across processes.
type Processor struct {
	store        Store
	tx           Transactor
	materializer *Materializer
	cache        Invalidator
	clock        clock.Clock
	audit        Auditor
	locks        *keyedMutex
}

func NewProcessor(store Store, tx Transactor, m *Materializer, cache Invalidator, clk clock.Clock, opts ...Option) *Processor {
	o := buildOptions(opts)
	return &Processor{
		store:        store,
		tx:           tx,
		materializer: m,
		cache:        cache,
		clock:        clk,
		audit:        o.audit,
		locks:        newKeyedMutex(),
	}
}

// RunSweep materializes one occurrence of every event due as of asOf and
// returns how many succeeded. Failed events are logged and stay due.
func (p *Processor) RunSweep(ctx context.Context, asOf time.Time) (int, error) {
	return p.run(ctx, DueFilter{AsOf: clock.DateOf(asOf)}, TriggerSweep)
}

// RunImmediate is RunSweep restricted to one event, as of today.
func (p *Processor) RunImmediate(ctx context.Context, eventID uuid.UUID) (int, error) {
	return p.run(ctx, DueFilter{AsOf: clock.Today(p.clock), EventID: eventID}, TriggerImmediate)
}

func (p *Processor) run(ctx context.Context, f DueFilter, trigger string) (int, error) {
	due, err := p.store.FindDue(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("finding due recurring transactions: %w", err)
	}

	var processed, failed int
	owners := make(map[uuid.UUID]struct{})
	for _, e := range due {
		if err = ctx.Err(); err != nil {
			break
		}

		ok, perr := p.processOne(ctx, e.ID, f.AsOf, trigger)
		if perr != nil {
			failed++
			slog.Error("failed to process recurring transaction",
				"error", perr,
				"recurring_id", e.ID,
				"owner_id", e.OwnerID,
				"trigger", trigger,
			)
			continue
		}
		if ok {
			processed++
			owners[e.OwnerID] = struct{}{}
		}
	}

	if processed > 0 {
		scope := uuid.Nil
		if trigger == TriggerImmediate && len(owners) == 1 {
			for owner := range owners {
				scope = owner
			}
		}
		p.cache.InvalidateAggregates(context.WithoutCancel(ctx), scope)
	}

	slog.Info("processed recurring transactions",
		"trigger", trigger,
		"as_of", f.AsOf.Format(time.DateOnly),
		"due", len(due),
		"processed", processed,
		"failed", failed,
	)

	return processed, err
}

// processOne runs the unit of work for one event: lock, re-check, write the
// entry, update the budget and save the advanced schedule. It reports false
// without error when the event is no longer due once locked.
func (p *Processor) processOne(ctx context.Context, id uuid.UUID, asOf time.Time, trigger string) (bool, error) {
	unlock := p.locks.Lock(id)
	defer unlock()

	var res *Result
	err := p.tx.WithinTx(ctx, func(ctx context.Context) error {
		e, err := p.store.Lock(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("locking recurring transaction: %w", err)
		}
		if !IsDue(*e, asOf) {
			return nil
		}

		r, err := p.materializer.Materialize(ctx, *e)
		if err != nil {
			return err
		}
		if err := p.store.Update(ctx, r.Event); err != nil {
			return &TransientError{EventID: id, Err: fmt.Errorf("saving schedule: %w", err)}
		}
		res = &r
		return nil
	})
	if err != nil || res == nil {
		return false, err
	}

	slog.Info("materialized recurring transaction",
		"recurring_id", id,
		"entry_id", res.Entry.ID,
		"anchor_date", res.Entry.Date.Format(time.DateOnly),
		"next_occurrence", res.Event.NextOccurrence.Format(time.DateOnly),
		"active", res.Event.IsActive,
		"trigger", trigger,
	)
	p.audit.Log(ledger.NewEntryCreatedEvent(res.Entry))
	p.audit.Log(newAuditEvent(EventMaterialized, res.Event, map[string]string{
		"trigger":  trigger,
		"entry_id": res.Entry.ID.String(),
		"anchor":   res.Entry.Date.Format(time.DateOnly),
	}))
	if !res.Event.IsActive {
		p.audit.Log(newAuditEvent(EventRetired, res.Event, nil))
	}

	return true, nil
}
