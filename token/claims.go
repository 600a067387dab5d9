package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by Inspect when the bearer token is not a decodable JWT.
var ErrNotJWT = errors.New("token is not a jwt")

// Claims is the claim set carried by backend-issued tokens.
type Claims struct {
	UserID     int64  `json:"user_id"`
	Role       string `json:"role"`
	UsageCount int    `json:"usage_count"`
	jwt.RegisteredClaims
}

// ExpiresIn returns the time left until expiry at now. Tokens without an exp claim
// report zero.
func (c *Claims) ExpiresIn(now time.Time) time.Duration {
	if c == nil || c.ExpiresAt == nil {
		return 0
	}
	left := c.ExpiresAt.Time.Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Expired reports whether the exp claim is at or before now.
func (c *Claims) Expired(now time.Time) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return !c.ExpiresAt.Time.After(now)
}

// Inspect decodes raw without verifying its signature. The result is informational
// only and must never drive an authorization decision.
func Inspect(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Count(raw, ".") != 2 {
		return nil, ErrNotJWT
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotJWT, err)
	}
	return claims, nil
}
