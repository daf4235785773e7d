// Package auth acquires Entra ID access tokens for the Power Platform and
// Dataverse APIs via device-code or client-credential OAuth flows, with
// in-process caching driven by the token's own expiry claim.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Provider supplies bearer tokens.
type Provider interface {
	Token(ctx context.Context) (string, error)
}

// ErrNotConfigured indicates no usable credential source (no PACX_ACCESS_TOKEN
// and no default profile).
var ErrNotConfigured = errors.New("no access token and no default profile configured")

// Static wraps a fixed token (e.g. from PACX_ACCESS_TOKEN).
type Static struct {
	token string
}

// NewStatic builds a Static provider.
func NewStatic(token string) *Static {
	return &Static{token: token}
}

// Token returns the wrapped token, erroring when it has already expired so
// the failure happens before a confusing 401.
func (s *Static) Token(ctx context.Context) (string, error) {
	if exp, ok := Expiry(s.token); ok && time.Now().After(exp) {
		return "", fmt.Errorf("access token expired at %s", exp.Format(time.RFC3339))
	}
	return s.token, nil
}

// Claims decodes the JWT claims without verifying the signature. The token
// is only inspected for display and expiry scheduling, never trusted.
func Claims(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parsing access token: %w", err)
	}
	return claims, nil
}

// Expiry returns the exp claim. ok is false for opaque or malformed tokens.
func Expiry(token string) (time.Time, bool) {
	claims, err := Claims(token)
	if err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TenantID returns the tid claim when present.
func TenantID(token string) string {
	claims, err := Claims(token)
	if err != nil {
		return ""
	}
	if tid, ok := claims["tid"].(string); ok {
		return tid
	}
	return ""
}
