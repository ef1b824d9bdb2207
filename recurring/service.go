package recurring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/billbatista/budgetwise/clock"
	"github.com/billbatista/budgetwise/ledger"
)

// CreateInput holds the user-supplied fields of a new event. StartDate
// defaults to today.
type CreateInput struct {
	Kind           ledger.Kind
	Amount         decimal.Decimal
	CategoryID     uuid.UUID
	Description    string
	Frequency      Frequency
	StartDate      *time.Time
	EndDate        *time.Time
	MaxOccurrences *int
}

// Service is the user-facing side of the engine. Every write is followed by
// an immediate check so an event that is already due does not wait for the
// next sweep.
type Service struct {
	store      Store
	tx         Transactor
	categories Categories
	processor  *Processor
	clock      clock.Clock
	audit      Auditor
}

func NewService(store Store, tx Transactor, categories Categories, processor *Processor, clk clock.Clock, opts ...Option) *Service {
	o := buildOptions(opts)
	return &Service{
		store:      store,
		tx:         tx,
		categories: categories,
		processor:  processor,
		clock:      clk,
		audit:      o.audit,
	}
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, in CreateInput) (*Event, error) {
	start := clock.Today(s.clock)
	if in.StartDate != nil {
		start = clock.DateOf(*in.StartDate)
	}
	now := s.clock.Now().UTC()

	e := Event{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		Kind:           in.Kind,
		Amount:         in.Amount,
		CategoryID:     in.CategoryID,
		Description:    in.Description,
		Frequency:      in.Frequency,
		StartDate:      start,
		EndDate:        dateOrNil(in.EndDate),
		NextOccurrence: start,
		IsActive:       true,
		MaxOccurrences: in.MaxOccurrences,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, ownerID, e.CategoryID); err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("creating recurring transaction: %w", err)
	}
	slog.Info("created recurring transaction", "recurring_id", e.ID, "owner_id", ownerID, "state", e.State(clock.Today(s.clock)))
	s.audit.Log(newAuditEvent(EventCreated, e, nil))

	return s.checkNow(ctx, e)
}

// Update applies a partial patch. Counters and NextOccurrence are never
// touched by an edit.
func (s *Service) Update(ctx context.Context, ownerID, id uuid.UUID, p Patch) (*Event, error) {
	var updated Event
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		e, err := s.lockOwned(ctx, id, ownerID)
		if err != nil {
			return err
		}

		p.Apply(e)
		e.EndDate = dateOrNil(e.EndDate)
		if err := e.Validate(); err != nil {
			return err
		}
		if p.CategoryID != nil {
			if err := s.checkCategory(ctx, ownerID, e.CategoryID); err != nil {
				return err
			}
		}

		e.UpdatedAt = s.clock.Now().UTC()
		if err := s.store.Update(ctx, *e); err != nil {
			return fmt.Errorf("updating recurring transaction: %w", err)
		}
		updated = *e
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("updated recurring transaction", "recurring_id", id, "owner_id", ownerID)
	s.audit.Log(newAuditEvent(EventUpdated, updated, nil))

	return s.checkNow(ctx, updated)
}

// ToggleActive flips IsActive without resetting dates or counters.
func (s *Service) ToggleActive(ctx context.Context, ownerID, id uuid.UUID) (*Event, error) {
	var toggled Event
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		e, err := s.lockOwned(ctx, id, ownerID)
		if err != nil {
			return err
		}

		e.IsActive = !e.IsActive
		e.UpdatedAt = s.clock.Now().UTC()
		if err := s.store.Update(ctx, *e); err != nil {
			return fmt.Errorf("toggling recurring transaction: %w", err)
		}
		toggled = *e
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("toggled recurring transaction", "recurring_id", id, "owner_id", ownerID, "active", toggled.IsActive)
	s.audit.Log(newAuditEvent(EventToggled, toggled, nil))

	return s.checkNow(ctx, toggled)
}

func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	e, err := s.store.GetByID(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id, ownerID); err != nil {
		return err
	}

	slog.Info("deleted recurring transaction", "recurring_id", id, "owner_id", ownerID)
	s.audit.Log(newAuditEvent(EventDeleted, *e, nil))
	return nil
}

func (s *Service) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*Event, error) {
	return s.store.GetByID(ctx, id, ownerID)
}

// ListForOwner returns the owner's events, earliest NextOccurrence first.
func (s *Service) ListForOwner(ctx context.Context, ownerID uuid.UUID, activeOnly bool) ([]Event, error) {
	return s.store.ListForOwner(ctx, ownerID, activeOnly)
}

// Today is the date the service currently considers "today".
func (s *Service) Today() time.Time {
	return clock.Today(s.clock)
}

func (s *Service) checkNow(ctx context.Context, e Event) (*Event, error) {
	if _, err := s.processor.RunImmediate(ctx, e.ID); err != nil {
		slog.Error("immediate check failed", "error", err, "recurring_id", e.ID)
	}
	return s.store.GetByID(ctx, e.ID, e.OwnerID)
}

func (s *Service) lockOwned(ctx context.Context, id, ownerID uuid.UUID) (*Event, error) {
	e, err := s.store.Lock(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	if e.OwnerID != ownerID {
		return nil, ErrEventNotFound
	}
	return e, nil
}

func (s *Service) checkCategory(ctx context.Context, ownerID, categoryID uuid.UUID) error {
	ok, err := s.categories.Exists(ctx, ownerID, categoryID)
	if err != nil {
		return fmt.Errorf("looking up category: %w", err)
	}
	if !ok {
		return &ValidationError{Field: "category_id", Err: ErrCategoryNotFound}
	}
	return nil
}

func dateOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := clock.DateOf(*t)
	return &d
}
