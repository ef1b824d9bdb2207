// Package calendar renders recurring transactions as an iCalendar feed.
package calendar

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	"github.com/billbatista/budgetwise/ledger"
	"github.com/billbatista/budgetwise/recurring"
)

const (
	productID = "-//budgetwise//recurring transactions//EN"
	uidDomain = "budgetwise"

	// ExpandLimit caps how many dates are listed for an event whose schedule
	// has no exact RRULE equivalent.
	ExpandLimit = 24
)

// Export builds a VCALENDAR with one series per active event. categoryNames
// is optional and only used for the event description.
func Export(events []recurring.Event, categoryNames map[uuid.UUID]string, stamp time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName("Recurring transactions")

	for _, e := range events {
		if !e.IsActive {
			continue
		}
		summary := summaryFor(e)
		description := descriptionFor(e, categoryNames[e.CategoryID])

		if rule, ok := RuleFor(e); ok {
			ev := cal.AddEvent(fmt.Sprintf("%s@%s", e.ID, uidDomain))
			fill(ev, e.NextOccurrence, summary, description, stamp)
			ev.AddRrule(rule)
			continue
		}

		for _, d := range recurring.Upcoming(e, ExpandLimit) {
			ev := cal.AddEvent(fmt.Sprintf("%s-%s@%s", e.ID, d.Format("20060102"), uidDomain))
			fill(ev, d, summary, description, stamp)
		}
	}

	return cal.Serialize()
}

// RuleFor returns the RRULE value for e's remaining occurrences, or false
// when RFC 5545 month arithmetic would disagree with the engine's clamping
// (anchors past the 28th of the month).
func RuleFor(e recurring.Event) (string, bool) {
	opt := rrule.ROption{Dtstart: e.NextOccurrence, Interval: 1}

	switch e.Frequency {
	case recurring.Daily:
		opt.Freq = rrule.DAILY
	case recurring.Weekly:
		opt.Freq = rrule.WEEKLY
	case recurring.BiWeekly:
		opt.Freq = rrule.WEEKLY
		opt.Interval = 2
	case recurring.Monthly:
		opt.Freq = rrule.MONTHLY
	case recurring.Quarterly:
		opt.Freq = rrule.MONTHLY
		opt.Interval = 3
	case recurring.Yearly:
		opt.Freq = rrule.YEARLY
	default:
		return "", false
	}

	if opt.Freq != rrule.DAILY && opt.Freq != rrule.WEEKLY && e.NextOccurrence.Day() > 28 {
		return "", false
	}

	if e.MaxOccurrences != nil {
		remaining := *e.MaxOccurrences - e.OccurrencesProcessed
		if remaining <= 0 {
			return "", false
		}
		opt.Count = remaining
	}
	if e.EndDate == nil {
		return opt.RRuleString(), true
	}
	if e.EndDate.Before(e.NextOccurrence) {
		return "", false
	}
	// COUNT and UNTIL are mutually exclusive; keep whichever ends the series first.
	if opt.Count > 0 && !lastOccurrence(e, opt.Count).After(*e.EndDate) {
		return opt.RRuleString(), true
	}
	opt.Count = 0

	// UNTIL takes the value type of the all-day DTSTART.
	return opt.RRuleString() + ";UNTIL=" + e.EndDate.Format(rrule.DateFormat), true
}

// lastOccurrence is the date of the n-th occurrence counted from e.NextOccurrence.
func lastOccurrence(e recurring.Event, n int) time.Time {
	d := e.NextOccurrence
	for i := 1; i < n; i++ {
		d = recurring.Advance(d, e.Frequency)
	}
	return d
}

func fill(ev *ics.VEvent, day time.Time, summary, description string, stamp time.Time) {
	ev.SetDtStampTime(stamp.UTC())
	ev.SetAllDayStartAt(day)
	ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
	ev.SetSummary(summary)
	ev.SetDescription(description)
}

func summaryFor(e recurring.Event) string {
	name := e.Description
	if name == "" {
		name = "Recurring Transaction"
	}
	sign := "-"
	if e.Kind == ledger.KindIncome {
		sign = "+"
	}
	return fmt.Sprintf("%s %s%s", name, sign, e.Amount.StringFixed(2))
}

func descriptionFor(e recurring.Event, category string) string {
	d := fmt.Sprintf("%s %s", e.Frequency.Display(), e.Kind)
	if category != "" {
		d += " in " + category
	}
	return d
}
