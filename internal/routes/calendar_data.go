package routes

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/emersion/go-ical"
	"github.com/gin-gonic/gin"

	"informatik-booking/internal/access"
	"informatik-booking/internal/slots"
)

const icsProductID = "-//Informatik-AI//Booking//DE"

// CalendarDataRoutes serves the persisted slot store. loc is the zone slot
// wall-clock times are expressed in.
func CalendarDataRoutes(r *gin.RouterGroup, loc *time.Location) {
	r.GET("", getCalendarData)
	// Writes without a valid admin token are refused like non-admin writes.
	r.POST("", AuthMiddleware(ErrForbidden), RequirePermission(access.ResourceCalendarData, access.ActionWrite), saveCalendarData)
	r.PUT("", updateSlotAvailability)
	r.GET("/ics", RequirePermission(access.ResourceCalendarFeed, access.ActionRead), calendarFeed(loc))
}

func getCalendarData(c *gin.Context) {
	provider, err := GetStorageProvider(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, provider.Load(c.Request.Context()))
}

type saveCalendarRequest struct {
	CalendarData json.RawMessage `json:"calendarData"`
	UserEmail    string          `json:"userEmail"`
}

func saveCalendarData(c *gin.Context) {
	user, err := GetUser(c)
	if err != nil {
		AbortWithError(c, ErrForbidden)
		return
	}
	provider, err := GetStorageProvider(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req saveCalendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	// The claimed email is advisory; only the verified identity counts.
	if req.UserEmail != "" && !access.SameIdentity(req.UserEmail, user) {
		slog.Warn("Calendar save with mismatching identity", "claimed", req.UserEmail, "verified", user)
		AbortWithError(c, ErrForbidden)
		return
	}

	data, err := parseCalendarData(req.CalendarData)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	saved, err := provider.Replace(c.Request.Context(), data)
	if err != nil {
		AbortWithHTTPError(c, http.StatusInternalServerError, err, "Failed to save calendar data")
		return
	}

	slog.Info("Calendar data saved", "userID", user, "slots", len(saved.Slots))
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Calendar data saved successfully",
		"lastUpdated": saved.LastUpdated,
	})
}

// parseCalendarData accepts only documents whose slots field is a JSON array.
func parseCalendarData(raw json.RawMessage) (slots.CalendarData, error) {
	var envelope struct {
		Slots json.RawMessage `json:"slots"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &envelope) != nil {
		return slots.CalendarData{}, ErrInvalidCalendarData
	}
	list := bytes.TrimSpace(envelope.Slots)
	if len(list) == 0 || list[0] != '[' {
		return slots.CalendarData{}, ErrInvalidCalendarData
	}

	data := slots.CalendarData{Slots: []slots.TimeSlot{}}
	if err := json.Unmarshal(list, &data.Slots); err != nil {
		return slots.CalendarData{}, ErrInvalidCalendarData
	}
	return data, nil
}

type updateSlotRequest struct {
	SlotID    string `json:"slotId"`
	Available *bool  `json:"available"`
}

func updateSlotAvailability(c *gin.Context) {
	provider, err := GetStorageProvider(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithHTTPError(c, http.StatusBadRequest, ErrInvalidParameter, "slotId and boolean available are required", "INVALID_PARAMETER")
		return
	}
	if req.SlotID == "" || req.Available == nil {
		AbortWithHTTPError(c, http.StatusBadRequest, ErrMissingParameter, "slotId and boolean available are required", "MISSING_PARAMETER")
		return
	}

	saved, err := provider.SetSlotAvailability(c.Request.Context(), req.SlotID, *req.Available)
	if err != nil {
		if GetErrorStatus(err) == http.StatusNotFound {
			AbortWithError(c, err)
			return
		}
		AbortWithHTTPError(c, http.StatusInternalServerError, err, "Failed to update slot")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Slot updated successfully",
		"lastUpdated": saved.LastUpdated,
	})
}

// calendarFeed renders the available slots as an iCalendar document.
func calendarFeed(loc *time.Location) gin.HandlerFunc {
	return func(c *gin.Context) {
		provider, err := GetStorageProvider(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		cal := buildFeed(provider.Load(c.Request.Context()), loc)

		var buf bytes.Buffer
		if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
	}
}

func buildFeed(data slots.CalendarData, loc *time.Location) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icsProductID)
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")

	stamp := data.LastUpdated.Time
	if stamp.IsZero() {
		stamp = time.Now().UTC()
	}

	for _, slot := range data.Slots {
		if !slot.Available {
			continue
		}
		start, end, err := slot.Bounds(loc)
		if err != nil {
			slog.Warn("Skipping malformed slot in feed", "slot", slot.ID, "error", err)
			continue
		}

		event := ical.NewComponent(ical.CompEvent)
		event.Props.SetText(ical.PropUID, slot.ID+"@informatik-booking")
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		event.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
		event.Props.SetText(ical.PropSummary, slot.Title)
		event.Props.SetText(ical.PropTransparency, "TRANSPARENT")
		cal.Children = append(cal.Children, event)
	}
	return cal
}
