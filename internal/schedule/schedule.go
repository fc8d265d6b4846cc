// Package schedule holds the interval arithmetic behind booking: the half-open overlap
// test and the generation of fixed-length slots inside business hours.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether a and b share any instant. Touching intervals do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Conflicts reports whether candidate overlaps any of busy.
func Conflicts(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(candidate, b) {
			return true
		}
	}
	return false
}

// Free returns the slots that overlap none of busy, in input order.
func Free(slots, busy []Interval) []Interval {
	free := make([]Interval, 0, len(slots))
	for _, s := range slots {
		if !Conflicts(s, busy) {
			free = append(free, s)
		}
	}
	return free
}

// Hours describes the bookable part of a day. Open and Close are offsets from local midnight.
type Hours struct {
	Open     time.Duration
	Close    time.Duration
	Slot     time.Duration
	Location *time.Location
}

// DefaultHours is 09:00-17:00 in one-hour slots.
func DefaultHours() Hours {
	return Hours{
		Open:     9 * time.Hour,
		Close:    17 * time.Hour,
		Slot:     time.Hour,
		Location: time.UTC,
	}
}

func (h Hours) Validate() error {
	if h.Slot <= 0 {
		return errors.New("slot length must be positive")
	}
	if h.Open < 0 || h.Close > 24*time.Hour || h.Open >= h.Close {
		return fmt.Errorf("opening hours %s-%s are invalid", FormatClock(h.Open), FormatClock(h.Close))
	}
	return nil
}

func (h Hours) location() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

// Day returns the start of the local calendar day containing t. Where a zone skips
// midnight, the day starts at its first existing instant.
func (h Hours) Day(t time.Time) time.Time {
	return h.clock(t, 0)
}

// clock returns the wall-clock time off after midnight on the local day containing t.
func (h Hours) clock(t time.Time, off time.Duration) time.Time {
	y, m, d := t.In(h.location()).Date()
	return wallClock(y, m, d, off, h.location())
}

func wallClock(y int, m time.Month, d int, off time.Duration, loc *time.Location) time.Time {
	hh, mm, ss := int(off/time.Hour), int(off%time.Hour/time.Minute), int(off%time.Minute/time.Second)
	at := time.Date(y, m, d, hh, mm, ss, 0, loc)
	if at.Day() != d {
		// A skipped wall-clock time normalized into the previous day.
		at = at.Add(time.Hour)
	}
	return at
}

// Slots lists the consecutive slots of the given day that end no later than Close. Slot
// boundaries are wall-clock times, so a daylight-saving change does not shift them.
func (h Hours) Slots(day time.Time) []Interval {
	var slots []Interval
	for off := h.Open; off+h.Slot <= h.Close; off += h.Slot {
		slots = append(slots, Interval{Start: h.clock(day, off), End: h.clock(day, off+h.Slot)})
	}
	return slots
}

// SameDay reports whether the interval starts and ends on one local calendar day.
// An interval ending exactly at the following midnight counts as same-day.
func (h Hours) SameDay(i Interval) bool {
	day := h.Day(i.Start)
	return !i.End.After(day.AddDate(0, 0, 1))
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q, expected HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func FormatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// ParseDate parses a YYYY-MM-DD date as the start of that day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	y, m, day := d.Date()
	return wallClock(y, m, day, 0, loc), nil
}
