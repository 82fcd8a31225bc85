package migrate

import (
	"iter"
	"time"
)

// DateFormat is the civil date layout used for CLI flags, window labels
// and the Matomo date range parameter.
const DateFormat = "2006-01-02"

// Window is one contiguous [From, To] sub-range of the migration date
// range, inclusive on both ends. From and To are civil dates pinned to
// UTC midnight; a one-day window has From == To.
type Window struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether the window is the zero value. Run errors that
// occur outside any particular window carry a zero window.
func (w Window) IsZero() bool { return w.From.IsZero() && w.To.IsZero() }

func (w Window) String() string {
	return w.From.Format(DateFormat) + ".." + w.To.Format(DateFormat)
}

// Range is a validated [Start, End] date interval, inclusive on both
// ends, with both bounds pinned to UTC midnight.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange validates and normalizes a date interval. Both bounds are
// truncated to their civil date in UTC. Returns InvalidRangeError when
// start is after end.
func NewRange(start, end time.Time) (Range, error) {
	start = midnightUTC(start)
	end = midnightUTC(end)
	if start.After(end) {
		return Range{}, &InvalidRangeError{Start: start, End: end}
	}
	return Range{Start: start, End: end}, nil
}

// Days returns the total number of civil days covered by the range.
func (r Range) Days() int {
	return int(r.End.Sub(r.Start)/(24*time.Hour)) + 1
}

func (r Range) String() string {
	return r.Start.Format(DateFormat) + ".." + r.End.Format(DateFormat)
}

// Windows returns a lazy sequence of non-overlapping, contiguous
// windows covering the range in ascending order. Each window spans at
// most days civil days; the final window is truncated so it never
// extends past the range end. The sequence is restartable: ranging over
// it twice yields the same windows.
func (r Range) Windows(days int) iter.Seq[Window] {
	if days < 1 {
		days = 1
	}
	return func(yield func(Window) bool) {
		for from := r.Start; !from.After(r.End); from = from.AddDate(0, 0, days) {
			to := from.AddDate(0, 0, days-1)
			if to.After(r.End) {
				to = r.End
			}
			if !yield(Window{From: from, To: to}) {
				return
			}
		}
	}
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
