package slots

import (
	"fmt"
	"time"
)

// Interval is a busy period on the external calendar, half-open [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Bounds resolves the slot's wall-clock times on its date in loc.
func (s TimeSlot) Bounds(loc *time.Location) (time.Time, time.Time, error) {
	day, err := ParseDate(s.Date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := ParseClock(s.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := ParseClock(s.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end <= start {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: slot %s ends before it starts", ErrInvalidClock, s.ID)
	}
	// Wall-clock construction keeps DST transition days right.
	at := func(d time.Duration) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), int(d/time.Hour), int(d%time.Hour/time.Minute), 0, 0, loc)
	}
	return at(start), at(end), nil
}

// Overlaps reports whether [start, end) intersects the interval.
func (i Interval) Overlaps(start, end time.Time) bool {
	return start.Before(i.End) && i.Start.Before(end)
}

// CheckSlotAvailability returns a copy of slots where every slot overlapping
// a busy interval is marked unavailable and every other slot available.
// Slots whose times cannot be resolved are marked unavailable.
func CheckSlotAvailability(slots []TimeSlot, busy []Interval, loc *time.Location) []TimeSlot {
	out := make([]TimeSlot, len(slots))
	for i, slot := range slots {
		out[i] = slot
		start, end, err := slot.Bounds(loc)
		if err != nil {
			out[i].Available = false
			continue
		}
		out[i].Available = true
		for _, b := range busy {
			if b.Overlaps(start, end) {
				out[i].Available = false
				break
			}
		}
	}
	return out
}
