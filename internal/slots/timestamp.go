package slots

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout matches JavaScript's Date.prototype.toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp is an ISO-8601 instant with millisecond precision, always UTC.
// Ordering is done on the parsed time, never on the string form.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Millisecond)}
}

// ParseTimestamp accepts any RFC 3339 instant.
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return NewTimestamp(t), nil
}

func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimestampLayout)
}

// NewerThan reports whether t is strictly later than o.
func (t Timestamp) NewerThan(o Timestamp) bool {
	return t.Time.After(o.Time)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("lastUpdated must be a string: %w", err)
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// NextTimestamp returns now, or prev plus one millisecond when the clock has
// not moved past prev. Successive writes therefore always advance.
func NextTimestamp(prev Timestamp, now time.Time) Timestamp {
	next := NewTimestamp(now)
	if !next.NewerThan(prev) {
		return Timestamp{prev.Add(time.Millisecond)}
	}
	return next
}
