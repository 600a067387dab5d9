package statsclient

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config holds everything a [Client] needs besides its collaborators.
//
// Config values are copied by [Builder.WithConfig]; later changes to the caller's value
// have no effect on a built Client.
type Config struct {
	BaseURL   string
	UserAgent string
	HTTP      HTTPConfig
	RateLimit RateLimitConfig
	Expiry    ExpiryConfig
	Events    EventsConfig
	Metrics   MetricsConfig
}

/*
====================================
HTTP CONFIG
====================================
*/

// HTTPConfig tunes the default *http.Client. It is ignored when the Builder is given a
// client of its own.
type HTTPConfig struct {
	Timeout time.Duration
	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64
}

// RateLimitConfig paces outgoing calls on the client side.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// ExpiryConfig lists the 401 message fragments that mean the token is dead. Matching is
// case-insensitive substring matching.
type ExpiryConfig struct {
	Markers []string
}

// EventsConfig controls lifecycle event delivery. With DropIfFull a full buffer drops
// events instead of blocking the call that emits them.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig turns the Client's counters and latency histogram on or off.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultExpiryMarkers are the messages the backend uses for expired or invalid tokens,
// in English and Turkish.
var DefaultExpiryMarkers = []string{
	"expired",
	"invalid token",
	"süresi dolmuş",
	"geçersiz token",
}

// DefaultConfig returns the configuration used by [New].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		BaseURL:   "http://localhost:8000",
		UserAgent: "statsclient/1",
		HTTP: HTTPConfig{
			Timeout:      10 * time.Second,
			MaxBodyBytes: 4 << 20,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Expiry: ExpiryConfig{
			Markers: append([]string(nil), DefaultExpiryMarkers...),
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 64,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Expiry.Markers = cloneStrings(cfg.Expiry.Markers)
	return out
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		return errors.New("BaseURL required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return errors.New("BaseURL is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("BaseURL scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("BaseURL host required")
	}

	if c.HTTP.Timeout <= 0 {
		return errors.New("HTTP Timeout must be > 0")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return errors.New("HTTP MaxBodyBytes must be > 0")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return errors.New("RateLimit RequestsPerSecond must be > 0 when enabled")
		}
		if c.RateLimit.Burst < 1 {
			return errors.New("RateLimit Burst must be >= 1 when enabled")
		}
	}

	if len(c.Expiry.Markers) == 0 {
		return errors.New("Expiry Markers must not be empty")
	}
	for _, m := range c.Expiry.Markers {
		if strings.TrimSpace(m) == "" {
			return errors.New("Expiry Markers must not contain blank entries")
		}
	}

	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0 when enabled")
	}

	return nil
}
