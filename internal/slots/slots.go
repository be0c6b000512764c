// Package slots holds the bookable time slot model and the rules for
// generating a day's slots and deriving their availability.
package slots

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire format of TimeSlot.Date.
const DateLayout = "2006-01-02"

// ClockLayout is the wire format of TimeSlot.StartTime and TimeSlot.EndTime.
const ClockLayout = "15:04"

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidClock  = errors.New("invalid time of day")
	ErrInvalidWindow = errors.New("invalid booking window")
)

// TimeSlot is a single bookable consultation slot.
type TimeSlot struct {
	ID        string `json:"id" db:"id"`
	Date      string `json:"date" db:"date"`
	StartTime string `json:"startTime" db:"start_time"`
	EndTime   string `json:"endTime" db:"end_time"`
	Available bool   `json:"available" db:"available"`
	Title     string `json:"title" db:"title"`
}

// CalendarData is the complete persisted slot document.
type CalendarData struct {
	Slots       []TimeSlot `json:"slots"`
	LastUpdated Timestamp  `json:"lastUpdated"`
}

// Empty returns a CalendarData without slots, stamped with now.
func Empty(now time.Time) CalendarData {
	return CalendarData{
		Slots:       []TimeSlot{},
		LastUpdated: NewTimestamp(now),
	}
}

// Clone returns a deep copy so callers can mutate slots freely.
func (d CalendarData) Clone() CalendarData {
	out := CalendarData{
		Slots:       make([]TimeSlot, len(d.Slots)),
		LastUpdated: d.LastUpdated,
	}
	copy(out.Slots, d.Slots)
	return out
}

// Supersedes reports whether d holds slots and was updated after other. A
// document without slots never supersedes, since reading an empty store
// stamps it with the read time.
func (d CalendarData) Supersedes(other CalendarData) bool {
	return len(d.Slots) > 0 && d.LastUpdated.NewerThan(other.LastUpdated)
}

// Find returns the index of the first slot with the given id, or -1.
func (d CalendarData) Find(slotID string) int {
	for i, s := range d.Slots {
		if s.ID == slotID {
			return i
		}
	}
	return -1
}

// Window describes the daily bookable period as offsets from midnight.
type Window struct {
	Start time.Duration
	End   time.Duration
	Step  time.Duration
}

// DefaultWindow is 19:00 to 21:00 in 30 minute steps.
var DefaultWindow = Window{
	Start: 19 * time.Hour,
	End:   21 * time.Hour,
	Step:  30 * time.Minute,
}

// NewWindow parses "HH:MM" bounds into a Window.
func NewWindow(start, end string, step time.Duration) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	w := Window{Start: s, End: e, Step: step}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

func (w Window) Validate() error {
	if w.Step <= 0 {
		return fmt.Errorf("%w: step must be positive", ErrInvalidWindow)
	}
	if w.Start < 0 || w.End > 24*time.Hour || w.Start+w.Step > w.End {
		return fmt.Errorf("%w: %s-%s does not fit a %s slot", ErrInvalidWindow, FormatClock(w.Start), FormatClock(w.End), w.Step)
	}
	return nil
}

// ParseClock converts "HH:MM" into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// FormatClock converts an offset from midnight into "HH:MM".
func FormatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}

// ParseDate validates a "YYYY-MM-DD" date.
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t, nil
}

// SlotID derives a stable id from the slot's date and start time, so a day
// regenerated later yields the same ids as the stored slots.
func SlotID(date, startTime string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("informatik-booking:slot:"+date+"T"+startTime)).String()
}

// GenerateTimeSlots returns the window's slots for date, sorted by start
// time and all available.
func GenerateTimeSlots(date string, w Window) ([]TimeSlot, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	var out []TimeSlot
	for start := w.Start; start+w.Step <= w.End; start += w.Step {
		startTime := FormatClock(start)
		endTime := FormatClock(start + w.Step)
		out = append(out, TimeSlot{
			ID:        SlotID(date, startTime),
			Date:      date,
			StartTime: startTime,
			EndTime:   endTime,
			Available: true,
			Title:     startTime + " - " + endTime,
		})
	}
	return out, nil
}
