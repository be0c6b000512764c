package routes

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"

	"informatik-booking/internal/email"
	"informatik-booking/internal/google"
)

type fakeCalendar struct {
	list   func(timeMin, timeMax string) ([]*calendar.Event, error)
	create func(ev *calendar.Event) (*calendar.Event, error)
	update func(id string, ev *calendar.Event) (*calendar.Event, error)
	delete func(id string) error
}

func (f *fakeCalendar) ListEvents(ctx context.Context, timeMin, timeMax string) ([]*calendar.Event, error) {
	return f.list(timeMin, timeMax)
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, ev *calendar.Event) (*calendar.Event, error) {
	return f.create(ev)
}

func (f *fakeCalendar) UpdateEvent(ctx context.Context, id string, ev *calendar.Event) (*calendar.Event, error) {
	return f.update(id, ev)
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, id string) error {
	return f.delete(id)
}

type fakeConnector struct {
	api    *fakeCalendar
	tokens []string
}

func (f *fakeConnector) Connect(ctx context.Context, accessToken string) (google.CalendarAPI, error) {
	f.tokens = append(f.tokens, accessToken)
	return f.api, nil
}

type notifierFunc func(ctx context.Context, b email.Booking) error

func (f notifierFunc) NotifyBooking(ctx context.Context, b email.Booking) error {
	return f(ctx, b)
}

func newCalendarEnv(t *testing.T, api *fakeCalendar, notifier BookingNotifier) (*testEnv, *fakeConnector) {
	t.Helper()
	env := newTestEnv(t)
	connector := &fakeConnector{api: api}
	CalendarRoutes(env.router.Group("/api/calendar"), connector, notifier, time.UTC)
	return env, connector
}

func TestCalendarRequiresAccessToken(t *testing.T) {
	env, connector := newCalendarEnv(t, &fakeCalendar{}, nil)

	requests := []struct {
		method string
		target string
		body   any
	}{
		{http.MethodGet, "/api/calendar", nil},
		{http.MethodPost, "/api/calendar", map[string]any{"event": map[string]any{"summary": "x"}}},
		{http.MethodPut, "/api/calendar", map[string]any{"eventId": "e1", "event": map[string]any{}}},
		{http.MethodDelete, "/api/calendar?eventId=e1", nil},
	}
	for _, r := range requests {
		w := env.do(t, r.method, r.target, r.body, nil)
		expectError(t, w, http.StatusBadRequest, "Access token required")
	}
	if len(connector.tokens) != 0 {
		t.Errorf("connector used %d times", len(connector.tokens))
	}
}

func TestCalendarListEvents(t *testing.T) {
	api := &fakeCalendar{list: func(timeMin, timeMax string) ([]*calendar.Event, error) {
		if timeMin != "2025-03-10T00:00:00Z" || timeMax != "2025-03-11T00:00:00Z" {
			t.Errorf("range %s - %s", timeMin, timeMax)
		}
		return []*calendar.Event{{Id: "e1", Summary: "Busy"}}, nil
	}}
	env, connector := newCalendarEnv(t, api, nil)

	w := env.do(t, http.MethodGet, "/api/calendar?accessToken=at&timeMin=2025-03-10T00:00:00Z&timeMax=2025-03-11T00:00:00Z", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	events, _ := decode(t, w)["events"].([]any)
	if len(events) != 1 {
		t.Fatalf("events = %v", events)
	}
	if len(connector.tokens) != 1 || connector.tokens[0] != "at" {
		t.Errorf("tokens = %v", connector.tokens)
	}
}

func TestCalendarUpstreamFailure(t *testing.T) {
	upstream := errors.New("googleapi: Error 401: Invalid Credentials")
	api := &fakeCalendar{
		list:   func(string, string) ([]*calendar.Event, error) { return nil, upstream },
		create: func(*calendar.Event) (*calendar.Event, error) { return nil, upstream },
		update: func(string, *calendar.Event) (*calendar.Event, error) { return nil, upstream },
		delete: func(string) error { return upstream },
	}
	env, _ := newCalendarEnv(t, api, nil)

	w := env.do(t, http.MethodGet, "/api/calendar?accessToken=at", nil, nil)
	expectError(t, w, http.StatusInternalServerError, "Failed to fetch calendar events")

	w = env.do(t, http.MethodPost, "/api/calendar", map[string]any{"accessToken": "at", "event": map[string]any{}}, nil)
	expectError(t, w, http.StatusInternalServerError, "Failed to create calendar event")

	w = env.do(t, http.MethodPut, "/api/calendar", map[string]any{"accessToken": "at", "eventId": "e1", "event": map[string]any{}}, nil)
	expectError(t, w, http.StatusInternalServerError, "Failed to update calendar event")

	w = env.do(t, http.MethodDelete, "/api/calendar?accessToken=at&eventId=e1", nil, nil)
	expectError(t, w, http.StatusInternalServerError, "Failed to delete calendar event")
}

func TestCalendarCreateNotifies(t *testing.T) {
	api := &fakeCalendar{create: func(ev *calendar.Event) (*calendar.Event, error) {
		created := *ev
		created.Id = "new-id"
		return &created, nil
	}}
	sent := make(chan email.Booking, 1)
	notifier := notifierFunc(func(ctx context.Context, b email.Booking) error {
		sent <- b
		return nil
	})
	env, _ := newCalendarEnv(t, api, notifier)

	event := map[string]any{
		"summary":   "Beratungstermin: Ada",
		"start":     map[string]any{"dateTime": "2025-03-10T19:00:00Z"},
		"end":       map[string]any{"dateTime": "2025-03-10T19:30:00Z"},
		"attendees": []map[string]any{{"email": "ada@example.com"}},
	}
	w := env.do(t, http.MethodPost, "/api/calendar", map[string]any{"accessToken": "at", "event": event}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	created, _ := decode(t, w)["event"].(map[string]any)
	if created["id"] != "new-id" {
		t.Errorf("event = %v", created)
	}

	select {
	case b := <-sent:
		if b.Summary != "Beratungstermin: Ada" || len(b.Attendees) != 1 || b.Attendees[0] != "ada@example.com" {
			t.Errorf("booking = %+v", b)
		}
		if !b.Start.Equal(time.Date(2025, 3, 10, 19, 0, 0, 0, time.UTC)) {
			t.Errorf("start = %s", b.Start)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification sent")
	}
}

func TestCalendarUpdateAndDelete(t *testing.T) {
	var deleted string
	api := &fakeCalendar{
		update: func(id string, ev *calendar.Event) (*calendar.Event, error) {
			ev.Id = id
			return ev, nil
		},
		delete: func(id string) error {
			deleted = id
			return nil
		},
	}
	env, _ := newCalendarEnv(t, api, nil)

	w := env.do(t, http.MethodPut, "/api/calendar", map[string]any{"accessToken": "at", "eventId": "e1", "event": map[string]any{"summary": "moved"}}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", w.Code, w.Body.String())
	}
	if ev, _ := decode(t, w)["event"].(map[string]any); ev["id"] != "e1" || ev["summary"] != "moved" {
		t.Errorf("updated event %v", ev)
	}

	w = env.do(t, http.MethodPut, "/api/calendar", map[string]any{"accessToken": "at", "event": map[string]any{}}, nil)
	expectError(t, w, http.StatusBadRequest, "Event ID required")

	w = env.do(t, http.MethodDelete, "/api/calendar?accessToken=at&eventId=e1", nil, nil)
	if w.Code != http.StatusOK || decode(t, w)["success"] != true {
		t.Fatalf("delete: %d %s", w.Code, w.Body.String())
	}
	if deleted != "e1" {
		t.Errorf("deleted %q", deleted)
	}
}
