package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/api/calendar/v3"

	"informatik-booking/internal/email"
	"informatik-booking/internal/google"
)

// How long a booking notification may take after the response was sent.
const notifyTimeout = 30 * time.Second

// CalendarConnector opens the external calendar with a caller's access token.
type CalendarConnector interface {
	Connect(ctx context.Context, accessToken string) (google.CalendarAPI, error)
}

// BookingNotifier is told about events created through the proxy.
type BookingNotifier interface {
	NotifyBooking(ctx context.Context, b email.Booking) error
}

type calendarProxy struct {
	connector CalendarConnector
	notifier  BookingNotifier
	loc       *time.Location
}

// CalendarRoutes proxies event operations to the external calendar. notifier
// may be nil.
func CalendarRoutes(r *gin.RouterGroup, connector CalendarConnector, notifier BookingNotifier, loc *time.Location) {
	p := &calendarProxy{connector: connector, notifier: notifier, loc: loc}
	r.GET("", p.listEvents)
	r.POST("", p.createEvent)
	r.PUT("", p.updateEvent)
	r.DELETE("", p.deleteEvent)
}

// connect resolves the calendar client, aborting the request on failure.
func (p *calendarProxy) connect(c *gin.Context, accessToken, failure string) (google.CalendarAPI, bool) {
	if accessToken == "" {
		AbortWithError(c, google.ErrMissingAccessToken)
		return nil, false
	}
	api, err := p.connector.Connect(c.Request.Context(), accessToken)
	if err != nil {
		AbortWithHTTPError(c, http.StatusInternalServerError, errors.Join(ErrCalendarProvider, err), failure)
		return nil, false
	}
	return api, true
}

func (p *calendarProxy) listEvents(c *gin.Context) {
	const failure = "Failed to fetch calendar events"
	api, ok := p.connect(c, c.Query("accessToken"), failure)
	if !ok {
		return
	}

	events, err := api.ListEvents(c.Request.Context(), c.Query("timeMin"), c.Query("timeMax"))
	if err != nil {
		AbortWithHTTPError(c, http.StatusInternalServerError, errors.Join(ErrCalendarProvider, err), failure)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type eventRequest struct {
	AccessToken string          `json:"accessToken"`
	EventID     string          `json:"eventId"`
	Event       *calendar.Event `json:"event"`
}

func bindEventRequest(c *gin.Context, needID bool) (eventRequest, bool) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return req, false
	}
	if req.AccessToken == "" {
		AbortWithError(c, google.ErrMissingAccessToken)
		return req, false
	}
	if needID && req.EventID == "" {
		AbortWithHTTPError(c, http.StatusBadRequest, ErrMissingParameter, "Event ID required", "MISSING_PARAMETER")
		return req, false
	}
	if req.Event == nil {
		AbortWithHTTPError(c, http.StatusBadRequest, ErrMissingParameter, "Event data required", "MISSING_PARAMETER")
		return req, false
	}
	return req, true
}

func (p *calendarProxy) createEvent(c *gin.Context) {
	const failure = "Failed to create calendar event"
	req, ok := bindEventRequest(c, false)
	if !ok {
		return
	}
	api, ok := p.connect(c, req.AccessToken, failure)
	if !ok {
		return
	}

	created, err := api.CreateEvent(c.Request.Context(), req.Event)
	if err != nil {
		AbortWithHTTPError(c, http.StatusInternalServerError, errors.Join(ErrCalendarProvider, err), failure)
		return
	}

	p.notify(created)
	c.JSON(http.StatusOK, gin.H{"event": created})
}

func (p *calendarProxy) updateEvent(c *gin.Context) {
	const failure = "Failed to update calendar event"
	req, ok := bindEventRequest(c, true)
	if !ok {
		return
	}
	api, ok := p.connect(c, req.AccessToken, failure)
	if !ok {
		return
	}

	updated, err := api.UpdateEvent(c.Request.Context(), req.EventID, req.Event)
	if err != nil {
		AbortWithHTTPError(c, http.StatusInternalServerError, errors.Join(ErrCalendarProvider, err), failure)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": updated})
}

func (p *calendarProxy) deleteEvent(c *gin.Context) {
	const failure = "Failed to delete calendar event"
	api, ok := p.connect(c, c.Query("accessToken"), failure)
	if !ok {
		return
	}
	eventID := c.Query("eventId")
	if eventID == "" {
		AbortWithHTTPError(c, http.StatusBadRequest, ErrMissingParameter, "Event ID required", "MISSING_PARAMETER")
		return
	}

	if err := api.DeleteEvent(c.Request.Context(), eventID); err != nil {
		AbortWithHTTPError(c, http.StatusInternalServerError, errors.Join(ErrCalendarProvider, err), failure)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// notify sends the booking notification in the background. Failures are
// only logged.
func (p *calendarProxy) notify(ev *calendar.Event) {
	if p.notifier == nil || ev == nil {
		return
	}
	booking := bookingFromEvent(ev, p.loc)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := p.notifier.NotifyBooking(ctx, booking); err != nil {
			slog.Warn("Failed to send booking notification", "event", ev.Id, "error", err)
		}
	}()
}

func bookingFromEvent(ev *calendar.Event, loc *time.Location) email.Booking {
	b := email.Booking{
		Summary:     ev.Summary,
		Description: ev.Description,
		Link:        ev.HtmlLink,
	}
	if start, end, ok := google.EventTimes(ev, loc); ok {
		b.Start, b.End = start.In(loc), end.In(loc)
	}
	for _, a := range ev.Attendees {
		if a != nil && a.Email != "" {
			b.Attendees = append(b.Attendees, a.Email)
		}
	}
	return b
}
