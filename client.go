package statsclient

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/statsclient/session"
	"github.com/MrEthical07/statsclient/token"
	"golang.org/x/time/rate"
)

// Client talks to the statistics backend on behalf of one session store.
type Client struct {
	config     Config
	baseURL    string
	store      *session.Store
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	markers    []string
	metrics    *Metrics
	events     *eventQueue
	closed     atomic.Bool
}

// Store returns the session store the Client reads and mutates.
func (c *Client) Store() *session.Store {
	if c == nil {
		return nil
	}
	return c.store
}

// Session returns a copy of the current session.
func (c *Client) Session() session.Session {
	if c == nil || c.store == nil {
		return session.Session{}
	}
	return c.store.Get()
}

// Status summarizes the current login. Claim fields are filled when the token is a JWT.
func (c *Client) Status() Status {
	s := c.Session()
	st := Status{
		State:     s.State(),
		Role:      s.Role,
		UpdatedAt: s.UpdatedAt,
	}
	if !s.Authenticated() {
		return st
	}

	st.Endpoints = RoleEndpoints(s.Role)
	claims, err := token.Inspect(s.Token)
	if err != nil {
		return st
	}
	st.HasClaims = true
	st.UserID = claims.UserID
	st.UsageCount = claims.UsageCount
	if claims.ExpiresAt != nil {
		st.ExpiresAt = claims.ExpiresAt.Time
		st.ExpiresIn = claims.ExpiresIn(time.Now())
	}
	return st
}

// MetricsSnapshot returns the Client's counters and latency buckets.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil {
		return MetricsSnapshot{}
	}
	return c.metrics.Snapshot()
}

// EventsDropped returns how many events were dropped under backpressure.
func (c *Client) EventsDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.events.Dropped()
}

// Close flushes pending events. Calls made after Close fail with ErrClientNotReady.
func (c *Client) Close() {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.events.Close()
}

func (c *Client) ready() bool {
	return c != nil && c.store != nil && !c.closed.Load()
}

func (c *Client) emit(ctx context.Context, event Event) {
	c.events.Emit(ctx, event)
}

func (c *Client) eventDropped(event Event) {
	c.logger.Debug("event dropped", "event_type", event.Type, "seq", event.Seq)
}

func (c *Client) persistFailed(ctx context.Context, op string, err error) {
	c.metrics.Inc(MetricPersistFailure)
	c.logger.Warn("session persistence failed", "op", op, "error", err)
	c.emit(ctx, Event{Type: EventPersistFailure, Error: err.Error(), Metadata: map[string]string{"op": op}})
}
