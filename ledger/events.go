package ledger

import (
	"github.com/billbatista/budgetwise/eventlogger"
)

const EventEntryCreated = "ledger.entry_created"

// EntryCreatedEvent is the audit payload written for every new entry.
type EntryCreatedEvent struct {
	EntryID     string `json:"entry_id"`
	OwnerID     string `json:"owner_id"`
	Kind        Kind   `json:"type"`
	Amount      string `json:"amount"`
	CategoryID  string `json:"category_id"`
	Date        string `json:"transaction_date"`
	Source      Source `json:"source"`
	RecurringID string `json:"recurring_id,omitempty"`
}

// NewEntryCreatedEvent builds the audit event for a committed entry.
func NewEntryCreatedEvent(e Entry) eventlogger.Event {
	data := EntryCreatedEvent{
		EntryID:    e.ID.String(),
		OwnerID:    e.OwnerID.String(),
		Kind:       e.Kind,
		Amount:     e.Amount.StringFixed(2),
		CategoryID: e.CategoryID.String(),
		Date:       e.Date.Format("2006-01-02"),
		Source:     e.Source,
	}
	if e.RecurringID != nil {
		data.RecurringID = e.RecurringID.String()
	}
	return eventlogger.NewEvent(
		eventlogger.WithType(EventEntryCreated),
		eventlogger.WithData(data),
		eventlogger.WithSubject("user", e.OwnerID.String()),
	)
}
