// Package api exposes the JSON HTTP surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/billbatista/budgetwise/budget"
	"github.com/billbatista/budgetwise/category"
	"github.com/billbatista/budgetwise/clock"
	"github.com/billbatista/budgetwise/dashboard"
	"github.com/billbatista/budgetwise/eventlogger"
	"github.com/billbatista/budgetwise/ledger"
	"github.com/billbatista/budgetwise/middleware"
	"github.com/billbatista/budgetwise/recurring"
	"github.com/billbatista/budgetwise/session"
	"github.com/billbatista/budgetwise/user"
)

type RecurringService interface {
	Create(ctx context.Context, ownerID uuid.UUID, in recurring.CreateInput) (*recurring.Event, error)
	Update(ctx context.Context, ownerID, id uuid.UUID, p recurring.Patch) (*recurring.Event, error)
	ToggleActive(ctx context.Context, ownerID, id uuid.UUID) (*recurring.Event, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*recurring.Event, error)
	ListForOwner(ctx context.Context, ownerID uuid.UUID, activeOnly bool) ([]recurring.Event, error)
}

type Sweeper interface {
	RunSweep(ctx context.Context, asOf time.Time) (int, error)
}

type Categories interface {
	ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]category.Category, error)
}

type Entries interface {
	GetRecentEntries(ctx context.Context, ownerID uuid.UUID, limit int) ([]ledger.Entry, error)
}

type Budgets interface {
	ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]budget.Budget, error)
}

type Summaries interface {
	Summary(ctx context.Context, ownerID uuid.UUID) (dashboard.Summary, error)
}

type Users interface {
	Register(ctx context.Context, email, password string) (*user.User, error)
	Authenticate(ctx context.Context, email, password string) (*user.User, error)
}

type Sessions interface {
	Create(ctx context.Context, userID uuid.UUID) (*session.Session, error)
	GetByToken(ctx context.Context, token string) (*session.Session, error)
	Delete(ctx context.Context, token string) error
}

type Auditor interface {
	Log(event eventlogger.Event)
}

type AuditTrail interface {
	GetBySubject(ctx context.Context, kind, id string) ([]eventlogger.Event, error)
}

// Deps wires the router to its collaborators.
type Deps struct {
	Recurring  RecurringService
	Sweeper    Sweeper
	Categories Categories
	Entries    Entries
	Budgets    Budgets
	Summaries  Summaries
	Users      Users
	Sessions   Sessions
	Audit      Auditor
	History    AuditTrail
	Clock      clock.Clock

	// SecureCookies marks session cookies Secure.
	SecureCookies bool
}

type handler struct {
	Deps
}

func NewRouter(d Deps) http.Handler {
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	h := &handler{Deps: d}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.AuthMiddleware(d.Sessions))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)

		// Protected routes - require authentication
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Post("/auth/logout", h.logout)
			r.Get("/dashboard/summary", h.summary)
			r.Get("/transactions", h.listTransactions)
			r.Get("/budgets", h.listBudgets)
			r.Get("/categories", h.listCategories)

			r.Route("/recurring-transactions", func(r chi.Router) {
				r.Get("/", h.listRecurring)
				r.Post("/", h.createRecurring)
				r.Post("/process", h.processRecurring)
				r.Get("/calendar.ics", h.recurringCalendar)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.getRecurring)
					r.Put("/", h.updateRecurring)
					r.Delete("/", h.deleteRecurring)
					r.Patch("/toggle", h.toggleRecurring)
					r.Get("/upcoming", h.upcomingRecurring)
					r.Get("/history", h.recurringHistory)
				})
			})
		})
	})

	return router
}

// requestError is a malformed request, reported as 400.
type requestError struct {
	msg string
}

func (e *requestError) Error() string {
	return e.msg
}

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, recurring.ErrNotFound), errors.Is(err, user.ErrNotFound):
		status = http.StatusNotFound
	case recurring.IsValidation(err), errors.As(err, &reqErr),
		errors.Is(err, user.ErrInvalidEmail), errors.Is(err, user.ErrBlankPassword):
		status = http.StatusBadRequest
	case errors.Is(err, user.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, user.ErrEmailExists):
		status = http.StatusConflict
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path,
			"request_id", chimiddleware.GetReqID(r.Context()))
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

// owner is only called behind RequireAuth.
func owner(r *http.Request) uuid.UUID {
	id, _ := middleware.GetUserID(r.Context())
	return id
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, badRequest("invalid id")
	}
	return id, nil
}

func (h *handler) audit(e eventlogger.Event) {
	if h.Audit != nil {
		h.Audit.Log(e)
	}
}
