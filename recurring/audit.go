package recurring

import (
	"strconv"
	"time"

	"github.com/billbatista/budgetwise/eventlogger"
)

const (
	EventCreated      = "recurring.created"
	EventUpdated      = "recurring.updated"
	EventToggled      = "recurring.toggled"
	EventDeleted      = "recurring.deleted"
	EventMaterialized = "recurring.materialized"
	EventRetired      = "recurring.retired"
)

func newAuditEvent(eventType string, e Event, extra map[string]string) eventlogger.Event {
	data := map[string]string{
		"recurring_id":          e.ID.String(),
		"owner_id":              e.OwnerID.String(),
		"type":                  string(e.Kind),
		"amount":                e.Amount.StringFixed(2),
		"frequency":             string(e.Frequency),
		"next_occurrence":       e.NextOccurrence.Format(time.DateOnly),
		"is_active":             strconv.FormatBool(e.IsActive),
		"occurrences_processed": strconv.Itoa(e.OccurrencesProcessed),
	}
	for k, v := range extra {
		data[k] = v
	}

	return eventlogger.NewEvent(
		eventlogger.WithType(eventType),
		eventlogger.WithData(data),
		eventlogger.WithSubject("recurring", e.ID.String()),
	)
}
