package storage

import "informatik-booking/internal/slots"

// slotRow is a time_slots row. Position preserves document order.
type slotRow struct {
	Position int `db:"position"`
	slots.TimeSlot
}
