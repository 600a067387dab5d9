package statsclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MrEthical07/statsclient/session"
)

// Backend endpoints.
const (
	EndpointLogin       = "/login"
	EndpointRegister    = "/register"
	EndpointPlayerStats = "/player-stats"
	EndpointUserInfo    = "/user-info"
	EndpointAdminPanel  = "/admin-only"
	EndpointSQLQuery    = "/admin/sql-query"
)

// HeaderNewToken is the response header carrying a rotated bearer token.
const HeaderNewToken = "New-Token"

// HeaderRequestID correlates a call with backend logs.
const HeaderRequestID = "X-Request-ID"

// Request describes one authenticated call. An empty Method means GET; a non-nil Body is
// sent as JSON.
type Request struct {
	Endpoint string
	Method   string
	Body     any
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// Response is the gateway's normalized result for a call that was not an auth failure.
type Response struct {
	StatusCode int
	Body       []byte
	// Rotated reports whether the response carried a New-Token that was applied.
	Rotated   bool
	RequestID string
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into v. Decoding failures wrap ErrMalformedResponse.
func (r *Response) Decode(v any) error {
	if r == nil {
		return fmt.Errorf("%w: nil response", ErrMalformedResponse)
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// LoginResult is the backend's answer to a successful login.
type LoginResult struct {
	Token     string `json:"token"`
	Role      string `json:"role"`
	RateLimit int    `json:"rate_limit"`
	Message   string `json:"message,omitempty"`
}

// Registration is the input to Register.
type Registration struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// RegisterResult is the backend's answer to a successful registration.
type RegisterResult struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
	Role    string `json:"role"`
}

// PlayerStats is the payload of /player-stats.
type PlayerStats struct {
	Username     string `json:"username,omitempty"`
	Nickname     string `json:"nickname,omitempty"`
	Level        int    `json:"level,omitempty"`
	Games        int    `json:"games"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
	TotalScore   int64  `json:"total_score"`
	HighestScore int64  `json:"highest_score"`
	Message      string `json:"message,omitempty"`
}

// WinRate returns wins over games, or zero without games.
func (p *PlayerStats) WinRate() float64 {
	if p == nil || p.Games <= 0 {
		return 0
	}
	return float64(p.Wins) / float64(p.Games)
}

// UserInfo is the payload of /user-info.
type UserInfo struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at,omitempty"`
}

// AdminPanel is the payload of /admin-only.
type AdminPanel struct {
	Message string           `json:"message"`
	Rows    []map[string]any `json:"data"`
}

// SQLResult is the payload of /admin/sql-query. Result is kept raw; its shape depends on
// the query.
type SQLResult struct {
	Query  string          `json:"-"`
	Result json.RawMessage `json:"result"`
}

// Status describes the client's current login for display.
type Status struct {
	State     session.State
	Role      string
	UpdatedAt time.Time
	// Endpoints lists the endpoints the role is expected to reach.
	Endpoints []string

	// Claim details, filled only when the token is a decodable JWT.
	HasClaims  bool
	UserID     int64
	UsageCount int
	ExpiresAt  time.Time
	ExpiresIn  time.Duration
}

type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Result  json.RawMessage `json:"result"`
}

func (e envelope) failed() bool {
	return e.Success != nil && !*e.Success
}

func hasPayload(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
