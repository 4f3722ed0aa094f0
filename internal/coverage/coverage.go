// Package coverage tracks which date windows already hold fresh data.
package coverage

import (
	"slices"
	"time"

	"drive-time-scheduler/internal/domain"
)

// Merge returns set plus add as sorted, disjoint intervals.
//
// Two intervals merge when next.Start <= prev.End + 1ms, so adjacent
// intervals become one. Invalid intervals (Start after End) are dropped.
// The result never aliases the inputs and Merge(Merge(s)) == Merge(s).
func Merge(set []domain.DateInterval, add ...domain.DateInterval) []domain.DateInterval {
	all := make([]domain.DateInterval, 0, len(set)+len(add))
	for _, iv := range slices.Concat(set, add) {
		if iv.Valid() {
			all = append(all, iv)
		}
	}
	if len(all) == 0 {
		return []domain.DateInterval{}
	}

	slices.SortFunc(all, func(a, b domain.DateInterval) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return a.End.Compare(b.End)
	})

	out := make([]domain.DateInterval, 0, len(all))
	cur := all[0]
	for _, next := range all[1:] {
		if !next.Start.After(cur.End.Add(time.Millisecond)) {
			if next.End.After(cur.End) {
				cur.End = next.End
			}
			continue
		}
		out = append(out, cur)
		cur = next
	}
	return append(out, cur)
}

// IsCovered reports whether required is spanned by set with no gap.
// set must be sorted by Start, as Merge returns it. An invalid required
// interval is never covered.
func IsCovered(required domain.DateInterval, set []domain.DateInterval) bool {
	if !required.Valid() {
		return false
	}

	cursor := required.Start
	for _, iv := range set {
		if iv.End.Before(cursor) {
			continue
		}
		if iv.Start.After(cursor) {
			return false
		}
		cursor = iv.End.Add(time.Millisecond)
		if cursor.After(required.End) {
			return true
		}
	}
	return false
}

// Subtract removes cut from set. Members that straddle cut are split; the
// pieces end 1ms before cut.Start and begin 1ms after cut.End.
func Subtract(set []domain.DateInterval, cut domain.DateInterval) []domain.DateInterval {
	if !cut.Valid() {
		return slices.Clone(set)
	}
	out := make([]domain.DateInterval, 0, len(set)+1)
	for _, iv := range set {
		if iv.End.Before(cut.Start) || iv.Start.After(cut.End) {
			out = append(out, iv)
			continue
		}
		if iv.Start.Before(cut.Start) {
			out = append(out, domain.DateInterval{Start: iv.Start, End: cut.Start.Add(-time.Millisecond)})
		}
		if iv.End.After(cut.End) {
			out = append(out, domain.DateInterval{Start: cut.End.Add(time.Millisecond), End: iv.End})
		}
	}
	return out
}

// FetchWindow pads anchor to [midnight daysBefore days earlier, end of the day
// monthsAfter months later], all in UTC. The padding is independent of what is
// visible so that scrolling is absorbed by fewer, larger fetches.
func FetchWindow(anchor time.Time, daysBefore, monthsAfter int) domain.DateInterval {
	day := domain.StartOfDay(anchor)
	return domain.DateInterval{
		Start: day.AddDate(0, 0, -daysBefore),
		End:   domain.EndOfDay(day.AddDate(0, monthsAfter, 0)),
	}
}

// Tracker owns the covered range set of one session. It is not safe for
// concurrent use; the owning cache serializes access.
type Tracker struct {
	DaysBefore  int
	MonthsAfter int

	ranges []domain.DateInterval
}

func NewTracker(daysBefore, monthsAfter int) *Tracker {
	return &Tracker{DaysBefore: daysBefore, MonthsAfter: monthsAfter}
}

// Add merges iv into the covered set.
func (t *Tracker) Add(iv domain.DateInterval) {
	t.ranges = Merge(t.ranges, iv)
}

// Remove uncovers iv.
func (t *Tracker) Remove(iv domain.DateInterval) {
	t.ranges = Subtract(t.ranges, iv)
}

// Covers reports whether iv is already fully covered.
func (t *Tracker) Covers(iv domain.DateInterval) bool {
	return IsCovered(iv, t.ranges)
}

// Window returns the padded fetch window for anchor.
func (t *Tracker) Window(anchor time.Time) domain.DateInterval {
	return FetchWindow(anchor, t.DaysBefore, t.MonthsAfter)
}

// Ranges returns a copy of the covered set.
func (t *Tracker) Ranges() []domain.DateInterval {
	return slices.Clone(t.ranges)
}

// Reset forgets everything that was covered.
func (t *Tracker) Reset() {
	t.ranges = nil
}
