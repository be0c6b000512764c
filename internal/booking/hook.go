// Package booking drives a single visitor's booking attempt: pick a date,
// see which slots are free, select one, submit the form.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/calendar/v3"

	"informatik-booking/internal/access"
	"informatik-booking/internal/google"
	"informatik-booking/internal/slots"
)

type State int

const (
	Idle State = iota
	SlotSelected
	Submitting
	Success
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SlotSelected:
		return "slot-selected"
	case Submitting:
		return "submitting"
	case Success:
		return "success"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrBusy            = errors.New("a booking is already being submitted")
	ErrNoSlotSelected  = errors.New("no slot selected")
	ErrSlotNotFound    = errors.New("slot not found")
	ErrSlotUnavailable = errors.New("slot is not available")
	ErrMissingName     = errors.New("name is required")
	ErrNoEventCreated  = errors.New("calendar returned no event")
)

// Alert messages shown to the visitor.
const (
	alertMissingFields = "Bitte füllen Sie alle Pflichtfelder aus."
	alertInvalidEmail  = "Bitte geben Sie eine gültige E-Mail-Adresse ein."
	alertNoSlot        = "Bitte wählen Sie einen Termin aus."
	alertFailed        = "Die Buchung ist fehlgeschlagen. Bitte versuchen Sie es erneut."
)

// Calendar is the external calendar as seen through the proxy.
type Calendar interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]*calendar.Event, error)
	CreateEvent(ctx context.Context, event *calendar.Event) (*calendar.Event, error)
}

// SlotStore is the persisted slot store.
type SlotStore interface {
	UpdateSlotAvailability(ctx context.Context, slotID string, available bool) error
}

// Alerter surfaces a human readable failure to the visitor.
type Alerter interface {
	Alert(message string)
}

type AlertFunc func(message string)

func (f AlertFunc) Alert(message string) { f(message) }

// FormData is the visitor's booking form.
type FormData struct {
	Name    string
	Email   string
	Phone   string
	Company string
	Message string
}

type Config struct {
	Window     slots.Window
	Location   *time.Location
	ResetDelay time.Duration
}

// Hook holds the state of one booking attempt. It is safe for concurrent
// use; only one submission can be in flight.
type Hook struct {
	calendar Calendar
	store    SlotStore
	alerter  Alerter
	cfg      Config
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	date     string
	slots    []slots.TimeSlot
	selected slots.TimeSlot
	created  *calendar.Event
	reset    *time.Timer
}

// New creates a hook. store and alerter may be nil.
func New(cal Calendar, store SlotStore, cfg Config, alerter Alerter) *Hook {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Window == (slots.Window{}) {
		cfg.Window = slots.DefaultWindow
	}
	if alerter == nil {
		alerter = AlertFunc(func(string) {})
	}
	return &Hook{
		calendar: cal,
		store:    store,
		alerter:  alerter,
		cfg:      cfg,
		logger:   slog.With("component", "booking"),
	}
}

func (h *Hook) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Slots returns the slots of the last loaded date.
func (h *Hook) Slots() []slots.TimeSlot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]slots.TimeSlot(nil), h.slots...)
}

// Selected returns the selected slot, if any.
func (h *Hook) Selected() (slots.TimeSlot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.selected, h.state == SlotSelected || h.state == Submitting
}

// Created returns the event of the last successful booking.
func (h *Hook) Created() *calendar.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.created
}

// LoadAvailableSlots generates the date's slots and marks those overlapping
// an external event unavailable. When the calendar cannot be read every slot
// is offered.
func (h *Hook) LoadAvailableSlots(ctx context.Context, date string) ([]slots.TimeSlot, error) {
	generated, err := slots.GenerateTimeSlots(date, h.cfg.Window)
	if err != nil {
		return nil, err
	}

	day, _ := slots.ParseDate(date)
	loc := h.cfg.Location
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, 1)

	available := generated
	events, err := h.calendar.ListEvents(ctx, from, to)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		h.logger.Warn("Failed to load calendar events, offering all slots", "date", date, "error", err)
	} else {
		available = slots.CheckSlotAvailability(generated, google.BusyIntervals(events, loc), loc)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.date = date
	h.slots = available
	if h.state == SlotSelected && !offered(available, h.selected.ID) {
		h.state = Idle
		h.selected = slots.TimeSlot{}
	}
	return append([]slots.TimeSlot(nil), available...), nil
}

func offered(list []slots.TimeSlot, id string) bool {
	for _, s := range list {
		if s.ID == id {
			return s.Available
		}
	}
	return false
}

// SelectSlot picks one of the loaded slots.
func (h *Hook) SelectSlot(slotID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == Submitting {
		return ErrBusy
	}
	i := slots.CalendarData{Slots: h.slots}.Find(slotID)
	if i < 0 {
		return ErrSlotNotFound
	}
	if !h.slots[i].Available {
		return ErrSlotUnavailable
	}

	h.stopResetLocked()
	h.selected = h.slots[i]
	h.state = SlotSelected
	return nil
}

// Cancel drops the selection. It cannot interrupt a running submission.
func (h *Hook) Cancel() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == Submitting {
		return ErrBusy
	}
	h.stopResetLocked()
	h.toIdleLocked()
	return nil
}

func (h *Hook) toIdleLocked() {
	h.state = Idle
	h.selected = slots.TimeSlot{}
}

func (h *Hook) stopResetLocked() {
	if h.reset != nil {
		h.reset.Stop()
		h.reset = nil
	}
}

// Close stops a pending reset.
func (h *Hook) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopResetLocked()
}

// validate checks the form and returns the alert to show.
func validate(form FormData) (string, error) {
	if strings.TrimSpace(form.Name) == "" {
		return alertMissingFields, ErrMissingName
	}
	if err := access.ValidEmail(strings.TrimSpace(form.Email)); err != nil {
		if errors.Is(err, access.ErrMissingEmail) {
			return alertMissingFields, err
		}
		return alertInvalidEmail, err
	}
	return "", nil
}

// HandleBookingSubmit books the selected slot. On success the slot is marked
// unavailable in the store, availability is reloaded and the hook returns to
// idle after the configured delay. Failures, including invalid form data,
// are alerted, returned and drop the hook back to idle.
func (h *Hook) HandleBookingSubmit(ctx context.Context, form FormData) (*calendar.Event, error) {
	h.mu.Lock()
	switch h.state {
	case Submitting:
		h.mu.Unlock()
		return nil, ErrBusy
	case SlotSelected:
	default:
		h.mu.Unlock()
		h.alerter.Alert(alertNoSlot)
		return nil, ErrNoSlotSelected
	}
	if msg, err := validate(form); err != nil {
		h.toIdleLocked()
		h.mu.Unlock()
		h.alerter.Alert(msg)
		return nil, err
	}
	slot, date := h.selected, h.date
	h.state = Submitting
	h.mu.Unlock()

	event, err := h.buildEvent(slot, form)
	if err == nil {
		event, err = h.calendar.CreateEvent(ctx, event)
	}
	if err == nil && event == nil {
		err = ErrNoEventCreated
	}
	if err != nil {
		h.logger.Error("Booking failed", "slot", slot.ID, "error", err)
		h.mu.Lock()
		h.toIdleLocked()
		h.mu.Unlock()
		h.alerter.Alert(alertFailed)
		return nil, err
	}

	h.mu.Lock()
	h.state = Success
	h.created = event
	h.reset = time.AfterFunc(h.cfg.ResetDelay, h.resetAfterSuccess)
	h.mu.Unlock()

	h.logger.Info("Booking created", "slot", slot.ID, "event", event.Id)

	if h.store != nil {
		if err := h.store.UpdateSlotAvailability(ctx, slot.ID, false); err != nil {
			h.logger.Warn("Failed to mark slot unavailable", "slot", slot.ID, "error", err)
		}
	}
	if _, err := h.LoadAvailableSlots(ctx, date); err != nil {
		h.logger.Warn("Failed to reload availability", "date", date, "error", err)
	}
	return event, nil
}

func (h *Hook) resetAfterSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Success {
		h.toIdleLocked()
		h.created = nil
	}
	h.reset = nil
}

func (h *Hook) buildEvent(slot slots.TimeSlot, form FormData) (*calendar.Event, error) {
	loc := h.cfg.Location
	start, end, err := slot.Bounds(loc)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(form.Name)
	email := strings.TrimSpace(form.Email)

	return &calendar.Event{
		Summary:     "Beratungstermin: " + name,
		Description: describe(form),
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: loc.String()},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: loc.String()},
		Attendees:   []*calendar.EventAttendee{{Email: email, DisplayName: name}},
	}, nil
}

func describe(form FormData) string {
	var b strings.Builder
	line := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	line("Name", form.Name)
	line("E-Mail", form.Email)
	line("Telefon", form.Phone)
	line("Unternehmen", form.Company)
	if msg := strings.TrimSpace(form.Message); msg != "" {
		fmt.Fprintf(&b, "\nNachricht:\n%s\n", msg)
	}
	return strings.TrimRight(b.String(), "\n")
}
