// Package dateutil provides date parsing and day-granular intervals, used for
// matching issue dates against historical title validity ranges.
package dateutil

import (
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/jinzhu/now"
)

// Interval groups start and end.
type Interval struct {
	Start time.Time
	End   time.Time
}

// String renders an interval.
func (iv Interval) String() string {
	return fmt.Sprintf("%s %s", iv.Start.Format("2006-01-02"), iv.End.Format("2006-01-02"))
}

// Validate checks if the interval is valid (end after start).
func (iv Interval) Validate() error {
	if iv.End.Before(iv.Start) {
		return fmt.Errorf("invalid interval: end %v before start %v", iv.End, iv.Start)
	}
	return nil
}

// Contains reports whether t falls within the interval, at day granularity.
// Publication validity ranges are given as dates, so we pad the interval to
// the beginning and end of its first and last day.
func (iv Interval) Contains(t time.Time) bool {
	var (
		start = now.With(iv.Start).BeginningOfDay()
		end   = now.With(iv.End).EndOfDay()
	)
	return !t.Before(start) && !t.After(end)
}

// Parse parses a date string in a strict manner.
func Parse(value string) (time.Time, error) {
	return dateparse.ParseStrict(value)
}

// MustParse is like Parse but panics on error.
func MustParse(value string) time.Time {
	t, err := dateparse.ParseStrict(value)
	if err != nil {
		panic(err)
	}
	return t
}
