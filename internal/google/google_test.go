package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"

	"informatik-booking/internal/config"
)

func tokenServer(t *testing.T, handler func(form url.Values) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		status, body := handler(r.PostForm)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExchange(t *testing.T) {
	srv := tokenServer(t, func(form url.Values) (int, string) {
		if form.Get("grant_type") != "authorization_code" || form.Get("code") != "the-code" {
			t.Errorf("unexpected form %v", form)
		}
		if form.Get("client_id") != "cid" || form.Get("client_secret") != "csecret" {
			t.Errorf("client credentials not sent: %v", form)
		}
		return http.StatusOK, `{"access_token":"at","refresh_token":"rt","expires_in":3600,"token_type":"Bearer","scope":"https://www.googleapis.com/auth/calendar"}`
	})

	o := NewOAuth(config.GoogleConfig{ClientID: "cid", ClientSecret: "csecret", RedirectURI: "http://localhost/cb", TokenURL: srv.URL})
	before := time.Now()
	tok, err := o.Exchange(context.Background(), "the-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if tok.AccessToken != "at" || tok.RefreshToken != "rt" || tok.TokenType != "Bearer" {
		t.Errorf("unexpected token %+v", tok)
	}
	if tok.Scope != "https://www.googleapis.com/auth/calendar" {
		t.Errorf("scope not carried: %q", tok.Scope)
	}
	if tok.ExpiryDate < before.Add(59*time.Minute).UnixMilli() {
		t.Errorf("expiry_date %d not in milliseconds an hour ahead", tok.ExpiryDate)
	}
}

func TestExchangeMissingCodeMakesNoCall(t *testing.T) {
	called := false
	srv := tokenServer(t, func(url.Values) (int, string) {
		called = true
		return http.StatusOK, `{}`
	})
	o := NewOAuth(config.GoogleConfig{TokenURL: srv.URL})
	if _, err := o.Exchange(context.Background(), ""); !errors.Is(err, ErrMissingCode) {
		t.Fatalf("expected ErrMissingCode, got %v", err)
	}
	if called {
		t.Error("token endpoint was called without a code")
	}
}

func TestExchangeProviderError(t *testing.T) {
	srv := tokenServer(t, func(url.Values) (int, string) {
		return http.StatusBadRequest, `{"error":"invalid_grant"}`
	})
	o := NewOAuth(config.GoogleConfig{TokenURL: srv.URL})
	if _, err := o.Exchange(context.Background(), "stale"); err == nil {
		t.Fatal("expected error")
	}
}

func TestRefreshKeepsRefreshToken(t *testing.T) {
	srv := tokenServer(t, func(form url.Values) (int, string) {
		if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "rt" {
			t.Errorf("unexpected form %v", form)
		}
		return http.StatusOK, `{"access_token":"fresh","expires_in":3600,"token_type":"Bearer"}`
	})
	o := NewOAuth(config.GoogleConfig{TokenURL: srv.URL})
	tok, err := o.Refresh(context.Background(), "rt")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if tok.AccessToken != "fresh" || tok.RefreshToken != "rt" {
		t.Errorf("unexpected token %+v", tok)
	}
	if _, err := o.Refresh(context.Background(), ""); !errors.Is(err, ErrMissingRefreshToken) {
		t.Errorf("expected ErrMissingRefreshToken, got %v", err)
	}
}

func TestAuthCodeURL(t *testing.T) {
	o := NewOAuth(config.GoogleConfig{ClientID: "cid", RedirectURI: "http://localhost/cb"})
	u, err := url.Parse(o.AuthCodeURL("st"))
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("state") != "st" || q.Get("access_type") != "offline" || q.Get("prompt") != "consent" {
		t.Errorf("unexpected query %v", q)
	}
	if !strings.Contains(q.Get("scope"), "auth/calendar") {
		t.Errorf("calendar scope missing: %v", q.Get("scope"))
	}
}

// calendarServer fakes the Calendar v3 events collection of "primary".
type calendarServer struct {
	t        *testing.T
	inserted *calendar.Event
	query    url.Values
	auth     string
}

func (s *calendarServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.auth = r.Header.Get("Authorization")
	const base = "/calendar/v3/calendars/primary/events"
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == base:
		s.query = r.URL.Query()
		io.WriteString(w, `{"items":[{"id":"e1","summary":"Busy","start":{"dateTime":"2025-03-14T19:00:00+01:00"},"end":{"dateTime":"2025-03-14T19:30:00+01:00"}}]}`)
	case r.Method == http.MethodPost && r.URL.Path == base:
		s.query = r.URL.Query()
		var ev calendar.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			s.t.Errorf("decode: %v", err)
		}
		s.inserted = &ev
		ev.Id = "new"
		json.NewEncoder(w).Encode(&ev)
	case r.Method == http.MethodPut && r.URL.Path == base+"/e1":
		var ev calendar.Event
		json.NewDecoder(r.Body).Decode(&ev)
		ev.Id = "e1"
		json.NewEncoder(w).Encode(&ev)
	case r.Method == http.MethodDelete && r.URL.Path == base+"/e1":
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"code":404,"message":"Not Found"}}`)
	default:
		s.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func connect(t *testing.T) (CalendarAPI, *calendarServer) {
	t.Helper()
	fake := &calendarServer{t: t}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	api, err := NewConnector(config.GoogleConfig{APIEndpoint: srv.URL + "/calendar/v3/"}).Connect(context.Background(), "at")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return api, fake
}

func TestConnectRequiresToken(t *testing.T) {
	if _, err := NewConnector(config.GoogleConfig{}).Connect(context.Background(), ""); !errors.Is(err, ErrMissingAccessToken) {
		t.Fatalf("expected ErrMissingAccessToken, got %v", err)
	}
}

func TestListEvents(t *testing.T) {
	api, fake := connect(t)
	events, err := api.ListEvents(context.Background(), "2025-03-14T00:00:00Z", "")
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 || events[0].Id != "e1" {
		t.Fatalf("unexpected events %+v", events)
	}
	if fake.auth != "Bearer at" {
		t.Errorf("access token not forwarded: %q", fake.auth)
	}
	if fake.query.Get("singleEvents") != "true" || fake.query.Get("orderBy") != "startTime" {
		t.Errorf("unexpected query %v", fake.query)
	}
	if fake.query.Get("timeMin") != "2025-03-14T00:00:00Z" || fake.query.Has("timeMax") {
		t.Errorf("time bounds not passed as given: %v", fake.query)
	}
}

func TestCreateEventAppliesBookingPolicy(t *testing.T) {
	api, fake := connect(t)
	in := &calendar.Event{
		Summary:   "Beratungstermin: Ada",
		Start:     &calendar.EventDateTime{DateTime: "2025-03-14T19:00:00", TimeZone: "Europe/Berlin"},
		End:       &calendar.EventDateTime{DateTime: "2025-03-14T19:30:00", TimeZone: "Europe/Berlin"},
		Attendees: []*calendar.EventAttendee{{Email: "ada@example.com"}},
	}
	created, err := api.CreateEvent(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if created.Id != "new" {
		t.Errorf("unexpected id %q", created.Id)
	}
	if fake.query.Get("sendUpdates") != "all" {
		t.Errorf("attendees not notified: %v", fake.query)
	}

	got := fake.inserted
	if got.Reminders == nil || got.Reminders.UseDefault || len(got.Reminders.Overrides) != 2 {
		t.Fatalf("unexpected reminders %+v", got.Reminders)
	}
	if r := got.Reminders.Overrides[0]; r.Method != "email" || r.Minutes != 1440 {
		t.Errorf("unexpected email reminder %+v", r)
	}
	if r := got.Reminders.Overrides[1]; r.Method != "popup" || r.Minutes != 30 {
		t.Errorf("unexpected popup reminder %+v", r)
	}
	if got.GuestsCanInviteOthers == nil || *got.GuestsCanInviteOthers || got.GuestsCanSeeOtherGuests == nil || *got.GuestsCanSeeOtherGuests {
		t.Errorf("guest permissions not restricted: %+v", got)
	}
	if in.Reminders != nil {
		t.Error("caller's event was modified")
	}
}

func TestUpdateAndDeleteEvent(t *testing.T) {
	api, _ := connect(t)
	ctx := context.Background()

	updated, err := api.UpdateEvent(ctx, "e1", &calendar.Event{Summary: "Moved"})
	if err != nil || updated.Summary != "Moved" {
		t.Fatalf("UpdateEvent: %+v, %v", updated, err)
	}
	if err := api.DeleteEvent(ctx, "e1"); err != nil {
		t.Fatalf("DeleteEvent: %v", err)
	}
	if err := api.DeleteEvent(ctx, "gone"); err == nil {
		t.Fatal("expected error for missing event")
	}
}

func TestBusyIntervals(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	events := []*calendar.Event{
		{Start: &calendar.EventDateTime{DateTime: "2025-03-14T19:00:00+01:00"}, End: &calendar.EventDateTime{DateTime: "2025-03-14T19:30:00+01:00"}},
		{Start: &calendar.EventDateTime{Date: "2025-03-15"}, End: &calendar.EventDateTime{Date: "2025-03-16"}},
		{Status: "cancelled", Start: &calendar.EventDateTime{Date: "2025-03-17"}, End: &calendar.EventDateTime{Date: "2025-03-18"}},
		{Start: &calendar.EventDateTime{DateTime: "garbage"}, End: &calendar.EventDateTime{DateTime: "garbage"}},
		nil,
	}
	got := BusyIntervals(events, loc)
	if len(got) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(got))
	}
	if want := time.Date(2025, 3, 15, 0, 0, 0, 0, loc); !got[1].Start.Equal(want) {
		t.Errorf("all-day start %v, want %v", got[1].Start, want)
	}
	if want := time.Date(2025, 3, 16, 0, 0, 0, 0, loc); !got[1].End.Equal(want) {
		t.Errorf("all-day end %v, want %v", got[1].End, want)
	}
}
