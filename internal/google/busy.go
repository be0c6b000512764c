package google

import (
	"time"

	"google.golang.org/api/calendar/v3"

	"informatik-booking/internal/slots"
)

// localDateTime is an RFC 3339 date-time without offset, which Calendar
// accepts together with an explicit timeZone.
const localDateTime = "2006-01-02T15:04:05"

// BusyIntervals converts calendar events into busy intervals. All-day events
// span whole days in loc; the end date is exclusive. Cancelled and
// unparseable events are skipped.
func BusyIntervals(events []*calendar.Event, loc *time.Location) []slots.Interval {
	var out []slots.Interval
	for _, ev := range events {
		if ev == nil || ev.Status == "cancelled" {
			continue
		}
		start, end, ok := EventTimes(ev, loc)
		if !ok {
			continue
		}
		out = append(out, slots.Interval{Start: start, End: end})
	}
	return out
}

// EventTimes resolves an event's start and end instants.
func EventTimes(ev *calendar.Event, loc *time.Location) (time.Time, time.Time, bool) {
	start, ok := eventTime(ev.Start, loc)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	end, ok := eventTime(ev.End, loc)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func eventTime(t *calendar.EventDateTime, loc *time.Location) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	if t.TimeZone != "" {
		if tz, err := time.LoadLocation(t.TimeZone); err == nil {
			loc = tz
		}
	}
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return parsed, true
		}
		parsed, err := time.ParseInLocation(localDateTime, t.DateTime, loc)
		return parsed, err == nil
	}
	if t.Date != "" {
		parsed, err := time.ParseInLocation(slots.DateLayout, t.Date, loc)
		return parsed, err == nil
	}
	return time.Time{}, false
}
