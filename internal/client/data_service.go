package client

import (
	"context"
	"net/http"

	"informatik-booking/internal/slots"
)

const calendarDataPath = "/api/calendar-data"

// DataService wraps the persisted slot store.
type DataService struct {
	api
	cache      *Cache
	legacy     *Cache
	adminToken string
}

type Option func(*DataService)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *DataService) {
		if c != nil {
			s.http = c
		}
	}
}

// WithCache mirrors fetched data into the file at path.
func WithCache(path string) Option {
	return func(s *DataService) { s.cache = NewCache(path) }
}

// WithLegacyCache names a pre-server cache file for MigrateFromLocalStorage.
func WithLegacyCache(path string) Option {
	return func(s *DataService) { s.legacy = NewCache(path) }
}

// WithAdminToken sets the bearer token sent with SaveCalendarData.
func WithAdminToken(token string) Option {
	return func(s *DataService) { s.adminToken = token }
}

func NewDataService(baseURL string, opts ...Option) *DataService {
	s := &DataService{api: newAPI(baseURL, nil, "calendar-data-client")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DataService) GetCalendarData(ctx context.Context) (slots.CalendarData, error) {
	var data slots.CalendarData
	if err := s.do(ctx, http.MethodGet, calendarDataPath, nil, nil, nil, &data); err != nil {
		return slots.CalendarData{}, err
	}
	if data.Slots == nil {
		data.Slots = []slots.TimeSlot{}
	}
	return data, nil
}

type saveRequest struct {
	CalendarData slots.CalendarData `json:"calendarData"`
	UserEmail    string             `json:"userEmail,omitempty"`
}

type saveResponse struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	LastUpdated slots.Timestamp `json:"lastUpdated"`
}

// SaveCalendarData replaces the whole store and returns the new lastUpdated.
func (s *DataService) SaveCalendarData(ctx context.Context, data slots.CalendarData, userEmail string) (slots.Timestamp, error) {
	if data.Slots == nil {
		data.Slots = []slots.TimeSlot{}
	}
	var header http.Header
	if s.adminToken != "" {
		header = http.Header{"Authorization": {"Bearer " + s.adminToken}}
	}

	var resp saveResponse
	if err := s.do(ctx, http.MethodPost, calendarDataPath, nil, header, saveRequest{data, userEmail}, &resp); err != nil {
		return slots.Timestamp{}, err
	}
	return resp.LastUpdated, nil
}

type updateRequest struct {
	SlotID    string `json:"slotId"`
	Available bool   `json:"available"`
}

func (s *DataService) UpdateSlotAvailability(ctx context.Context, slotID string, available bool) error {
	return s.do(ctx, http.MethodPut, calendarDataPath, nil, nil, updateRequest{slotID, available}, nil)
}

// MigrateFromLocalStorage copies the legacy cache into the server store once.
// It is skipped when there is no legacy data or the server holds slots newer
// than the legacy copy.
// The legacy cache is removed after a successful copy.
func (s *DataService) MigrateFromLocalStorage(ctx context.Context, userEmail string) (bool, error) {
	legacy, ok := s.legacy.Load()
	if !ok || len(legacy.Slots) == 0 {
		return false, nil
	}

	current, err := s.GetCalendarData(ctx)
	if err != nil {
		return false, err
	}
	if current.Supersedes(legacy) {
		s.logger.Info("Server data is newer, skipping migration",
			"server", current.LastUpdated, "legacy", legacy.LastUpdated)
		return false, nil
	}

	if _, err := s.SaveCalendarData(ctx, legacy, userEmail); err != nil {
		return false, err
	}
	if err := s.legacy.Remove(); err != nil {
		s.logger.Warn("Failed to remove legacy cache", "error", err)
	}
	s.logger.Info("Migrated legacy calendar data", "slots", len(legacy.Slots))
	return true, nil
}

// SyncData fetches the store and mirrors it into the cache. When the server
// cannot be reached the cached copy is served, and failing that an empty
// document. The returned error is the fetch error, for callers that want to
// show a stale-data hint.
func (s *DataService) SyncData(ctx context.Context) (slots.CalendarData, error) {
	data, err := s.GetCalendarData(ctx)
	if err == nil {
		if cerr := s.cache.Store(data); cerr != nil {
			s.logger.Warn("Failed to update cache", "error", cerr)
		}
		return data, nil
	}

	s.logger.Warn("Fetching calendar data failed, using cache", "error", err)
	if cached, ok := s.cache.Load(); ok {
		return cached, err
	}
	return slots.Empty(timeNow()), err
}
