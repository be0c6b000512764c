// Package google wraps the Google OAuth 2.0 token endpoint and the Calendar
// v3 API used by the booking service.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"informatik-booking/internal/config"
)

var (
	ErrMissingCode         = errors.New("authorization code required")
	ErrMissingRefreshToken = errors.New("refresh token required")
	ErrNoAccessToken       = errors.New("provider returned no access token")
)

// Token is the token set handed to the browser. ExpiryDate is in unix
// milliseconds.
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiryDate   int64  `json:"expiry_date,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

func tokenFromOAuth(t *oauth2.Token) Token {
	out := Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
	}
	if !t.Expiry.IsZero() {
		out.ExpiryDate = t.Expiry.UnixMilli()
	}
	if scope, ok := t.Extra("scope").(string); ok {
		out.Scope = scope
	}
	return out
}

// OAuth relays authorization codes and refresh tokens to Google's token
// endpoint using the server's client credentials.
type OAuth struct {
	config *oauth2.Config
	logger *slog.Logger
}

func NewOAuth(cfg config.GoogleConfig) *OAuth {
	endpoint := googleoauth.Endpoint
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	return &OAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{calendar.CalendarScope},
			Endpoint:     endpoint,
		},
		logger: slog.Default().With(slog.String("component", "google-oauth")),
	}
}

// AuthCodeURL returns the consent page URL. Offline access with a forced
// consent prompt makes Google return a refresh token every time.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token set.
func (o *OAuth) Exchange(ctx context.Context, code string) (Token, error) {
	if code == "" {
		return Token{}, ErrMissingCode
	}
	tok, err := o.config.Exchange(ctx, code)
	if err != nil {
		o.logger.Warn("Code exchange failed", "error", err)
		return Token{}, fmt.Errorf("exchange authorization code: %w", err)
	}
	if tok.AccessToken == "" {
		return Token{}, ErrNoAccessToken
	}
	return tokenFromOAuth(tok), nil
}

// Refresh obtains a new access token. The refresh token is carried over when
// Google does not rotate it.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	if refreshToken == "" {
		return Token{}, ErrMissingRefreshToken
	}
	tok, err := o.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		o.logger.Warn("Token refresh failed", "error", err)
		return Token{}, fmt.Errorf("refresh access token: %w", err)
	}
	if tok.AccessToken == "" {
		return Token{}, ErrNoAccessToken
	}
	return tokenFromOAuth(tok), nil
}
