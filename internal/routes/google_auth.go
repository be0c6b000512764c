package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"informatik-booking/internal/google"
	"informatik-booking/internal/nonce"
)

// TokenRelay exchanges codes and refresh tokens with the OAuth provider.
type TokenRelay interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (google.Token, error)
	Refresh(ctx context.Context, refreshToken string) (google.Token, error)
}

// GoogleAuthRoutes relays the browser's OAuth flow without storing tokens.
// State nonces live stateTTL seconds.
func GoogleAuthRoutes(r *gin.RouterGroup, relay TokenRelay, stateTTL uint) {
	r.POST("", exchangeCode(relay))
	r.GET("", refreshToken(relay))
	r.GET("/url", authURL(relay, stateTTL))
}

type exchangeRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

func exchangeCode(relay TokenRelay) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req exchangeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		if req.Code == "" {
			AbortWithError(c, google.ErrMissingCode)
			return
		}

		// State is optional for clients that started the flow elsewhere, but
		// a state that was supplied must be one we issued and not yet used.
		if req.State != "" {
			ok, err := nonce.Consume(c.Request.Context(), req.State)
			if !ok {
				slog.Warn("Rejected OAuth state", "error", err)
				AbortWithError(c, ErrInvalidState)
				return
			}
		}

		token, err := relay.Exchange(c.Request.Context(), req.Code)
		if err != nil {
			if errors.Is(err, google.ErrNoAccessToken) {
				AbortWithError(c, err)
				return
			}
			AbortWithHTTPError(c, http.StatusBadRequest, err, "Failed to exchange authorization code", "EXCHANGE_FAILED")
			return
		}

		c.JSON(http.StatusOK, token)
	}
}

func refreshToken(relay TokenRelay) gin.HandlerFunc {
	return func(c *gin.Context) {
		refresh := c.Query("refresh_token")
		if refresh == "" {
			AbortWithError(c, google.ErrMissingRefreshToken)
			return
		}

		token, err := relay.Refresh(c.Request.Context(), refresh)
		if err != nil {
			AbortWithHTTPError(c, http.StatusInternalServerError, errors.Join(ErrTokenProvider, err), "Failed to refresh access token")
			return
		}

		c.JSON(http.StatusOK, token)
	}
}

func authURL(relay TokenRelay, stateTTL uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := nonce.Nonce(c.Request.Context(), stateTTL)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"url":   relay.AuthCodeURL(state),
			"state": state,
		})
	}
}
