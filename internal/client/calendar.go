package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"

	"informatik-booking/internal/google"
)

const (
	calendarPath = "/api/calendar"
	authPath     = "/api/auth/google"
)

// ErrNoRefreshToken is returned when an expired access token cannot be
// renewed.
var ErrNoRefreshToken = errors.New("access token expired and no refresh token is available")

// AuthClient talks to the OAuth relay.
type AuthClient struct {
	api
}

func NewAuthClient(baseURL string, httpClient *http.Client) *AuthClient {
	return &AuthClient{api: newAPI(baseURL, httpClient, "auth-client")}
}

// AuthURL returns the consent URL and the state to echo back on exchange.
func (a *AuthClient) AuthURL(ctx context.Context) (authURL, state string, err error) {
	var resp struct {
		URL   string `json:"url"`
		State string `json:"state"`
	}
	if err := a.do(ctx, http.MethodGet, authPath+"/url", nil, nil, nil, &resp); err != nil {
		return "", "", err
	}
	return resp.URL, resp.State, nil
}

func (a *AuthClient) Exchange(ctx context.Context, code, state string) (google.Token, error) {
	var token google.Token
	body := map[string]string{"code": code}
	if state != "" {
		body["state"] = state
	}
	err := a.do(ctx, http.MethodPost, authPath, nil, nil, body, &token)
	return token, err
}

func (a *AuthClient) Refresh(ctx context.Context, refreshToken string) (google.Token, error) {
	var token google.Token
	err := a.do(ctx, http.MethodGet, authPath, url.Values{"refresh_token": {refreshToken}}, nil, nil, &token)
	return token, err
}

// relaySource renews tokens through the relay. oauth2.ReuseTokenSource only
// calls it once the current token has expired.
type relaySource struct {
	ctx  context.Context
	auth *AuthClient

	mu      sync.Mutex
	refresh string
}

func (s *relaySource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refresh == "" {
		return nil, ErrNoRefreshToken
	}
	t, err := s.auth.Refresh(s.ctx, s.refresh)
	if err != nil {
		return nil, err
	}
	if t.RefreshToken != "" {
		s.refresh = t.RefreshToken
	}
	return oauthToken(t), nil
}

func oauthToken(t google.Token) *oauth2.Token {
	out := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}
	if t.ExpiryDate > 0 {
		out.Expiry = time.UnixMilli(t.ExpiryDate)
	}
	return out
}

// TokenSource serves token until it expires and then refreshes through the
// relay. ctx bounds the refresh calls.
func (a *AuthClient) TokenSource(ctx context.Context, token google.Token) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(oauthToken(token), &relaySource{
		ctx:     ctx,
		auth:    a,
		refresh: token.RefreshToken,
	})
}

// CalendarClient talks to the calendar proxy with tokens from a token source.
type CalendarClient struct {
	api
	tokens oauth2.TokenSource
}

func NewCalendarClient(baseURL string, httpClient *http.Client, tokens oauth2.TokenSource) *CalendarClient {
	return &CalendarClient{api: newAPI(baseURL, httpClient, "calendar-client"), tokens: tokens}
}

func (c *CalendarClient) accessToken() (string, error) {
	if c.tokens == nil {
		return "", google.ErrMissingAccessToken
	}
	t, err := c.tokens.Token()
	if err != nil {
		return "", err
	}
	if t.AccessToken == "" {
		return "", google.ErrMissingAccessToken
	}
	return t.AccessToken, nil
}

// ListEvents returns the events between timeMin and timeMax.
func (c *CalendarClient) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	token, err := c.accessToken()
	if err != nil {
		return nil, err
	}
	query := url.Values{
		"accessToken": {token},
		"timeMin":     {timeMin.Format(time.RFC3339)},
		"timeMax":     {timeMax.Format(time.RFC3339)},
	}

	var resp struct {
		Events []*calendar.Event `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, calendarPath, query, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *CalendarClient) CreateEvent(ctx context.Context, event *calendar.Event) (*calendar.Event, error) {
	token, err := c.accessToken()
	if err != nil {
		return nil, err
	}

	var resp struct {
		Event *calendar.Event `json:"event"`
	}
	body := map[string]any{"accessToken": token, "event": event}
	if err := c.do(ctx, http.MethodPost, calendarPath, nil, nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.Event == nil {
		return nil, ErrEmptyResponse
	}
	return resp.Event, nil
}

func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	token, err := c.accessToken()
	if err != nil {
		return err
	}
	query := url.Values{"accessToken": {token}, "eventId": {eventID}}
	return c.do(ctx, http.MethodDelete, calendarPath, query, nil, nil, nil)
}
