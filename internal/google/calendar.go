package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"informatik-booking/internal/config"
)

var ErrMissingAccessToken = errors.New("access token required")

// Reminders attached to every booking created through the service.
var bookingReminders = []*calendar.EventReminder{
	{Method: "email", Minutes: 24 * 60},
	{Method: "popup", Minutes: 30},
}

// CalendarAPI is the event surface the HTTP proxy and the booking flow use.
type CalendarAPI interface {
	ListEvents(ctx context.Context, timeMin, timeMax string) ([]*calendar.Event, error)
	CreateEvent(ctx context.Context, event *calendar.Event) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// Connector builds per-request Calendar clients from a caller-supplied
// access token. The server never stores Google credentials.
type Connector struct {
	calendarID  string
	apiEndpoint string
}

func NewConnector(cfg config.GoogleConfig) *Connector {
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Connector{calendarID: calendarID, apiEndpoint: cfg.APIEndpoint}
}

func (c *Connector) Connect(ctx context.Context, accessToken string) (CalendarAPI, error) {
	if accessToken == "" {
		return nil, ErrMissingAccessToken
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(c.apiEndpoint))
	}

	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create calendar service: %w", err)
	}

	return &Calendar{
		service:    service,
		calendarID: c.calendarID,
		logger:     slog.Default().With(slog.String("component", "google-calendar")),
	}, nil
}

// Calendar operates on one calendar with one access token.
type Calendar struct {
	service    *calendar.Service
	calendarID string
	logger     *slog.Logger
}

// ListEvents returns single (expanded) events ordered by start time. Empty
// bounds are omitted from the query.
func (c *Calendar) ListEvents(ctx context.Context, timeMin, timeMax string) ([]*calendar.Event, error) {
	call := c.service.Events.List(c.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		OrderBy("startTime")
	if timeMin != "" {
		call = call.TimeMin(timeMin)
	}
	if timeMax != "" {
		call = call.TimeMax(timeMax)
	}

	events := []*calendar.Event{}
	err := call.Pages(ctx, func(page *calendar.Events) error {
		events = append(events, page.Items...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// CreateEvent inserts event with the booking reminder and guest policy and
// notifies attendees.
func (c *Calendar) CreateEvent(ctx context.Context, event *calendar.Event) (*calendar.Event, error) {
	created, err := c.service.Events.Insert(c.calendarID, withBookingPolicy(event)).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	c.logger.Info("Event created", "id", created.Id)
	return created, nil
}

func (c *Calendar) UpdateEvent(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error) {
	updated, err := c.service.Events.Update(c.calendarID, eventID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("update event %s: %w", eventID, err)
	}
	return updated, nil
}

func (c *Calendar) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.service.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return nil
}

// withBookingPolicy returns a copy of event with fixed reminders and guests
// unable to invite, modify or see each other.
func withBookingPolicy(event *calendar.Event) *calendar.Event {
	out := *event
	out.Reminders = &calendar.EventReminders{
		UseDefault:      false,
		Overrides:       bookingReminders,
		ForceSendFields: []string{"UseDefault"},
	}
	out.GuestsCanInviteOthers = googleapi.Bool(false)
	out.GuestsCanModify = false
	out.GuestsCanSeeOtherGuests = googleapi.Bool(false)
	out.ForceSendFields = append(append([]string(nil), event.ForceSendFields...), "GuestsCanModify")
	return &out
}
