package domain

import "time"

// DateInterval is an inclusive span of instants at millisecond precision.
type DateInterval struct {
	Start time.Time
	End   time.Time
}

// NewDateInterval truncates both ends to the millisecond.
func NewDateInterval(start, end time.Time) DateInterval {
	return DateInterval{
		Start: start.UTC().Truncate(time.Millisecond),
		End:   end.UTC().Truncate(time.Millisecond),
	}
}

// Valid reports whether Start <= End.
func (i DateInterval) Valid() bool {
	return !i.Start.After(i.End)
}

// Contains reports whether t falls inside the interval.
func (i DateInterval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && !t.After(i.End)
}

// Days returns every UTC calendar day touched by the interval, in order.
func (i DateInterval) Days() []DayKey {
	if !i.Valid() {
		return nil
	}
	first := StartOfDay(i.Start)
	last := StartOfDay(i.End)

	days := make([]DayKey, 0, int(last.Sub(first).Hours()/24)+1)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, DayKeyOf(d))
	}
	return days
}
