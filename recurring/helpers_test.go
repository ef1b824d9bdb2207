package recurring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/billbatista/budgetwise/clock"
	"github.com/billbatista/budgetwise/eventlogger"
	"github.com/billbatista/budgetwise/ledger"
)

// journal collects undo funcs for one fake transaction.
type journal struct {
	mu   sync.Mutex
	undo []func()
}

type journalKey struct{}

func onRollback(ctx context.Context, fn func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.mu.Lock()
		j.undo = append(j.undo, fn)
		j.mu.Unlock()
	}
}

type memTx struct{}

func (memTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}
	j := &journal{}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		return err
	}
	return nil
}

type memStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]Event
}

func newMemStore() *memStore {
	return &memStore{events: make(map[uuid.UUID]Event)}
}

func (s *memStore) put(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
}

func (s *memStore) get(id uuid.UUID) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id]
}

func (s *memStore) Create(ctx context.Context, e Event) error {
	s.put(e)
	onRollback(ctx, func() {
		s.mu.Lock()
		delete(s.events, e.ID)
		s.mu.Unlock()
	})
	return nil
}

func (s *memStore) Update(ctx context.Context, e Event) error {
	s.mu.Lock()
	prev, ok := s.events[e.ID]
	if !ok {
		s.mu.Unlock()
		return ErrEventNotFound
	}
	s.events[e.ID] = e
	s.mu.Unlock()

	onRollback(ctx, func() { s.put(prev) })
	return nil
}

func (s *memStore) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok || e.OwnerID != ownerID {
		return ErrEventNotFound
	}
	delete(s.events, id)
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id, ownerID uuid.UUID) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok || e.OwnerID != ownerID {
		return nil, ErrEventNotFound
	}
	return &e, nil
}

func (s *memStore) ListForOwner(ctx context.Context, ownerID uuid.UUID, activeOnly bool) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0)
	for _, e := range s.events {
		if e.OwnerID != ownerID || (activeOnly && !e.IsActive) {
			continue
		}
		out = append(out, e)
	}
	SortDue(out)
	return out, nil
}

func (s *memStore) FindDue(ctx context.Context, f DueFilter) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0)
	for _, e := range s.events {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	SortDue(out)
	return out, nil
}

func (s *memStore) Lock(ctx context.Context, id uuid.UUID) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return &e, nil
}

type fakeLedger struct {
	mu      sync.Mutex
	entries []ledger.Entry
	// failCategory makes entries for that category fail, like a category
	// deleted between selection and materialization.
	failCategory uuid.UUID
}

func (l *fakeLedger) CreateEntry(ctx context.Context, e ledger.Entry) (uuid.UUID, error) {
	if err := e.Validate(); err != nil {
		return uuid.Nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if e.CategoryID == l.failCategory {
		return uuid.Nil, ledger.ErrCategoryNotFound
	}
	for _, got := range l.entries {
		if e.RecurringID != nil && got.RecurringID != nil && *got.RecurringID == *e.RecurringID && got.Date.Equal(e.Date) {
			return uuid.Nil, ledger.ErrDuplicateOccurrence
		}
	}
	e.ID = uuid.New()
	l.entries = append(l.entries, e)

	id := e.ID
	onRollback(ctx, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, got := range l.entries {
			if got.ID == id {
				l.entries = append(l.entries[:i], l.entries[i+1:]...)
				return
			}
		}
	})
	return e.ID, nil
}

func (l *fakeLedger) all() []ledger.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ledger.Entry(nil), l.entries...)
}

func (l *fakeLedger) forEvent(id uuid.UUID) []ledger.Entry {
	var out []ledger.Entry
	for _, e := range l.all() {
		if e.RecurringID != nil && *e.RecurringID == id {
			out = append(out, e)
		}
	}
	return out
}

type budgetCall struct {
	owner    uuid.UUID
	category uuid.UUID
}

type fakeBudget struct {
	mu    sync.Mutex
	calls []budgetCall
	err   error
}

func (b *fakeBudget) RecomputeProgress(ctx context.Context, ownerID, categoryID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.calls = append(b.calls, budgetCall{owner: ownerID, category: categoryID})
	return nil
}

type fakeCache struct {
	mu     sync.Mutex
	scopes []uuid.UUID
}

func (c *fakeCache) InvalidateAggregates(ctx context.Context, ownerID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopes = append(c.scopes, ownerID)
}

func (c *fakeCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.scopes)
}

type fakeCategories struct {
	known map[uuid.UUID]uuid.UUID // category -> owner
	err   error
}

func (c *fakeCategories) Exists(ctx context.Context, ownerID, categoryID uuid.UUID) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	owner, ok := c.known[categoryID]
	return ok && owner == ownerID, nil
}

type fakeAuditor struct {
	mu     sync.Mutex
	events []eventlogger.Event
}

func (a *fakeAuditor) Log(e eventlogger.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *fakeAuditor) types() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	owner      uuid.UUID
	category   uuid.UUID
	clock      *clock.Fixed
	store      *memStore
	ledger     *fakeLedger
	budget     *fakeBudget
	cache      *fakeCache
	categories *fakeCategories
	audit      *fakeAuditor
	processor  *Processor
	service    *Service
}

func newHarness(t *testing.T, today time.Time) *harness {
	t.Helper()

	h := &harness{
		owner:    uuid.New(),
		category: uuid.New(),
		clock:    clock.NewFixed(today.Add(9 * time.Hour)),
		store:    newMemStore(),
		ledger:   &fakeLedger{},
		budget:   &fakeBudget{},
		cache:    &fakeCache{},
		audit:    &fakeAuditor{},
	}
	h.categories = &fakeCategories{known: map[uuid.UUID]uuid.UUID{h.category: h.owner}}

	m := NewMaterializer(h.ledger, h.budget, h.clock)
	h.processor = NewProcessor(h.store, memTx{}, m, h.cache, h.clock, WithAuditor(h.audit))
	h.service = NewService(h.store, memTx{}, h.categories, h.processor, h.clock, WithAuditor(h.audit))
	return h
}

// seed stores an active event for the harness owner anchored at next.
func (h *harness) seed(kind ledger.Kind, freq Frequency, next time.Time, mutate ...func(*Event)) Event {
	e := Event{
		ID:             uuid.New(),
		OwnerID:        h.owner,
		Kind:           kind,
		Amount:         decimal.RequireFromString("100.00"),
		CategoryID:     h.category,
		Description:    "Rent",
		Frequency:      freq,
		StartDate:      next,
		NextOccurrence: next,
		IsActive:       true,
	}
	for _, fn := range mutate {
		fn(&e)
	}
	h.store.put(e)
	return e
}

func ptr[T any](v T) *T {
	return &v
}

var errBudgetDown = errors.New("budget service unavailable")
