package api

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/billbatista/budgetwise/budget"
)

const (
	defaultEntryLimit = 50
	maxEntryLimit     = 500
)

func (h *handler) summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Summaries.Summary(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	limit := defaultEntryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxEntryLimit {
			writeError(w, r, badRequest("limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	entries, err := h.Entries.GetRecentEntries(r.Context(), owner(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type budgetResponse struct {
	budget.Budget
	Progress  decimal.Decimal `json:"progress"`
	Remaining decimal.Decimal `json:"remaining"`
	Exceeded  bool            `json:"exceeded"`
}

func (h *handler) listBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := h.Budgets.ListForOwner(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]budgetResponse, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, budgetResponse{
			Budget:    b,
			Progress:  b.Progress(),
			Remaining: b.Remaining(),
			Exceeded:  b.Exceeded(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Categories.ListForOwner(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}
