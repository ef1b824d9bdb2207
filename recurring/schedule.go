package recurring

import "time"

// Advance returns the anchor date that follows d for frequency f.
//
// Month and year steps keep the day of month when the target month has it
// and clamp to the target month's last day otherwise, so Jan 31 advances to
// Feb 28 (Feb 29 in leap years) rather than overflowing into March.
func Advance(d time.Time, f Frequency) time.Time {
	switch f {
	case Daily:
		return d.AddDate(0, 0, 1)
	case Weekly:
		return d.AddDate(0, 0, 7)
	case BiWeekly:
		return d.AddDate(0, 0, 14)
	case Monthly:
		return addMonths(d, 1)
	case Quarterly:
		return addMonths(d, 3)
	case Yearly:
		return addMonths(d, 12)
	default:
		return addMonths(d, 1)
	}
}

func addMonths(d time.Time, months int) time.Time {
	y, m, day := d.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, d.Location())
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	hour, minute, sec := d.Clock()
	return time.Date(first.Year(), first.Month(), day, hour, minute, sec, d.Nanosecond(), d.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Upcoming lists up to n anchor dates the event will still materialize,
// starting with NextOccurrence and honoring EndDate and MaxOccurrences.
func Upcoming(e Event, n int) []time.Time {
	if !e.IsActive || n <= 0 {
		return nil
	}

	out := make([]time.Time, 0, n)
	next := e.NextOccurrence
	processed := e.OccurrencesProcessed
	for len(out) < n {
		if e.EndDate != nil && next.After(*e.EndDate) {
			break
		}
		if e.MaxOccurrences != nil && processed >= *e.MaxOccurrences {
			break
		}
		out = append(out, next)
		next = Advance(next, e.Frequency)
		processed++
	}
	return out
}
