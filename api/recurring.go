package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/billbatista/budgetwise/calendar"
	"github.com/billbatista/budgetwise/category"
	"github.com/billbatista/budgetwise/clock"
	"github.com/billbatista/budgetwise/ledger"
	"github.com/billbatista/budgetwise/recurring"
)

type recurringRequest struct {
	Type           *ledger.Kind         `json:"type"`
	Amount         *decimal.Decimal     `json:"amount"`
	CategoryID     *uuid.UUID           `json:"category_id"`
	Description    *string              `json:"description"`
	Frequency      *recurring.Frequency `json:"frequency"`
	StartDate      *string              `json:"start_date"`
	EndDate        *string              `json:"end_date"`
	IsActive       *bool                `json:"is_active"`
	MaxOccurrences *int                 `json:"max_occurrences"`
}

func (req recurringRequest) createInput() (recurring.CreateInput, error) {
	var in recurring.CreateInput
	if req.Type != nil {
		in.Kind = *req.Type
	}
	if req.Amount != nil {
		in.Amount = *req.Amount
	}
	if req.CategoryID != nil {
		in.CategoryID = *req.CategoryID
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.Frequency != nil {
		in.Frequency = *req.Frequency
	}
	in.MaxOccurrences = req.MaxOccurrences

	var err error
	if in.StartDate, err = parseDate("start_date", req.StartDate); err != nil {
		return in, err
	}
	if in.EndDate, err = parseDate("end_date", req.EndDate); err != nil {
		return in, err
	}
	return in, nil
}

func (req recurringRequest) patch() (recurring.Patch, error) {
	p := recurring.Patch{
		Kind:           req.Type,
		Amount:         req.Amount,
		CategoryID:     req.CategoryID,
		Description:    req.Description,
		Frequency:      req.Frequency,
		IsActive:       req.IsActive,
		MaxOccurrences: req.MaxOccurrences,
	}
	if req.StartDate != nil {
		return p, badRequest("start_date can't be changed")
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return p, err
	}
	p.EndDate = end
	return p, nil
}

func parseDate(field string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := time.Parse(time.DateOnly, *s)
	if err != nil {
		return nil, badRequest(field + " must be YYYY-MM-DD")
	}
	return &d, nil
}

type recurringResponse struct {
	ID                   uuid.UUID           `json:"id"`
	Type                 ledger.Kind         `json:"type"`
	Amount               decimal.Decimal     `json:"amount"`
	CategoryID           uuid.UUID           `json:"category_id"`
	CategoryName         string              `json:"category_name,omitempty"`
	Description          string              `json:"description,omitempty"`
	Frequency            recurring.Frequency `json:"frequency"`
	FrequencyDisplay     string              `json:"frequency_display"`
	StartDate            string              `json:"start_date"`
	EndDate              string              `json:"end_date,omitempty"`
	NextOccurrence       string              `json:"next_occurrence"`
	IsActive             bool                `json:"is_active"`
	OccurrencesProcessed int                 `json:"occurrences_processed"`
	MaxOccurrences       *int                `json:"max_occurrences,omitempty"`
	State                recurring.State     `json:"state"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

func toResponse(e recurring.Event, names map[uuid.UUID]string, today time.Time) recurringResponse {
	resp := recurringResponse{
		ID:                   e.ID,
		Type:                 e.Kind,
		Amount:               e.Amount,
		CategoryID:           e.CategoryID,
		CategoryName:         names[e.CategoryID],
		Description:          e.Description,
		Frequency:            e.Frequency,
		FrequencyDisplay:     e.Frequency.Display(),
		StartDate:            e.StartDate.Format(time.DateOnly),
		NextOccurrence:       e.NextOccurrence.Format(time.DateOnly),
		IsActive:             e.IsActive,
		OccurrencesProcessed: e.OccurrencesProcessed,
		MaxOccurrences:       e.MaxOccurrences,
		State:                e.State(today),
		CreatedAt:            e.CreatedAt,
		UpdatedAt:            e.UpdatedAt,
	}
	if e.EndDate != nil {
		resp.EndDate = e.EndDate.Format(time.DateOnly)
	}
	return resp
}

// categoryNames never fails the request: a missing name only drops the
// category_name field.
func (h *handler) categoryNames(r *http.Request) map[uuid.UUID]string {
	if h.Categories == nil {
		return nil
	}
	cats, err := h.Categories.ListForOwner(r.Context(), owner(r))
	if err != nil {
		return nil
	}
	return category.Names(cats)
}

func (h *handler) respondEvent(w http.ResponseWriter, r *http.Request, status int, e *recurring.Event) {
	writeJSON(w, status, toResponse(*e, h.categoryNames(r), clock.Today(h.Clock)))
}

func (h *handler) listRecurring(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if v := r.URL.Query().Get("activeOnly"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, badRequest("activeOnly must be a boolean"))
			return
		}
		activeOnly = b
	}

	events, err := h.Recurring.ListForOwner(r.Context(), owner(r), activeOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}

	names := h.categoryNames(r)
	today := clock.Today(h.Clock)
	out := make([]recurringResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toResponse(e, names, today))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) createRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := req.createInput()
	if err != nil {
		writeError(w, r, err)
		return
	}

	e, err := h.Recurring.Create(r.Context(), owner(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondEvent(w, r, http.StatusCreated, e)
}

func (h *handler) getRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.Recurring.GetByID(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondEvent(w, r, http.StatusOK, e)
}

func (h *handler) updateRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req recurringRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := req.patch()
	if err != nil {
		writeError(w, r, err)
		return
	}

	e, err := h.Recurring.Update(r.Context(), owner(r), id, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondEvent(w, r, http.StatusOK, e)
}

func (h *handler) deleteRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Recurring.Delete(r.Context(), owner(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) toggleRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.Recurring.ToggleActive(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondEvent(w, r, http.StatusOK, e)
}

func (h *handler) upcomingRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n := 5
	if v := r.URL.Query().Get("count"); v != "" {
		n, err = strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(w, r, badRequest("count must be between 1 and 100"))
			return
		}
	}

	e, err := h.Recurring.GetByID(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	dates := make([]string, 0, n)
	for _, d := range recurring.Upcoming(*e, n) {
		dates = append(dates, d.Format(time.DateOnly))
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": e.ID, "dates": dates})
}

// recurringHistory lists the audit trail of one event the caller owns.
func (h *handler) recurringHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.Recurring.GetByID(r.Context(), owner(r), id); err != nil {
		writeError(w, r, err)
		return
	}

	events, err := h.History.GetBySubject(r.Context(), "recurring", id.String())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// processRecurring runs a sweep as of today for every owner, the same work
// the scheduled job does.
func (h *handler) processRecurring(w http.ResponseWriter, r *http.Request) {
	n, err := h.Sweeper.RunSweep(r.Context(), clock.Today(h.Clock))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"processed": n})
}

func (h *handler) recurringCalendar(w http.ResponseWriter, r *http.Request) {
	events, err := h.Recurring.ListForOwner(r.Context(), owner(r), true)
	if err != nil {
		writeError(w, r, err)
		return
	}

	body := calendar.Export(events, h.categoryNames(r), h.Clock.Now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="recurring-transactions.ics"`)
	w.Write([]byte(body))
}
