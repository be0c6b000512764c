// Package jwt issues and verifies the bearer tokens that identify admins to
// the calendar-data write endpoint.
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"informatik-booking/internal/config"
)

const Issuer = "informatik-booking"

var (
	ErrNonValidToken    = errors.New("token did not pass validation")
	ErrInvalidClaimType = errors.New("invalid claim type")
	ErrMissingIdentity  = errors.New("token carries no identity")
	ErrMissingSecret    = errors.New("secret is not configured")
)

var tokenSignatureAlg = gojwt.SigningMethodHS256

// AdminClaim binds an email identity to a token. The identity is only
// trusted after the signature verifies; authorization is decided by RBAC.
type AdminClaim struct {
	Email string `json:"email"`
	gojwt.RegisteredClaims
}

// NewAdminClaim creates a claim for email valid for ttl minutes.
func NewAdminClaim(email string, ttl uint) AdminClaim {
	return AdminClaim{
		Email:            email,
		RegisteredClaims: newRegisteredClaim(email, time.Duration(ttl)*time.Minute),
	}
}

func newRegisteredClaim(subject string, ttl time.Duration) gojwt.RegisteredClaims {
	if ttl <= 0 {
		panic("invalid token TTL")
	}
	now := time.Now().UTC()
	return gojwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    Issuer,
		Subject:   subject,
		IssuedAt:  gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
	}
}

func secret() ([]byte, error) {
	if config.Cfg == nil || config.Cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	return []byte(config.Cfg.Secret), nil
}

// Generic JWT token generation function
func GenerateJWT(claims gojwt.Claims) (string, error) {
	key, err := secret()
	if err != nil {
		return "", err
	}
	token := gojwt.NewWithClaims(tokenSignatureAlg, claims)
	return token.SignedString(key)
}

// DecodeAdminJWT verifies tokenString and returns its claim.
func DecodeAdminJWT(tokenString string) (*AdminClaim, error) {
	claims, err := decodeJWT(tokenString, &AdminClaim{})
	if err != nil {
		return nil, err
	}
	if claims.Email == "" {
		return nil, ErrMissingIdentity
	}
	return claims, nil
}

func decodeJWT[T gojwt.Claims](tokenString string, claimsType T) (T, error) {
	var zero T

	key, err := secret()
	if err != nil {
		return zero, err
	}

	parsedToken, err := gojwt.ParseWithClaims(tokenString, claimsType, func(token *gojwt.Token) (interface{}, error) {
		return key, nil
	}, gojwt.WithValidMethods([]string{tokenSignatureAlg.Alg()}), gojwt.WithIssuer(Issuer), gojwt.WithExpirationRequired())

	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrNonValidToken, err)
	} else if parsedToken == nil || !parsedToken.Valid {
		return zero, ErrNonValidToken
	} else if claims, ok := parsedToken.Claims.(T); ok {
		return claims, nil
	}

	return zero, ErrInvalidClaimType
}
