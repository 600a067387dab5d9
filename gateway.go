package statsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MrEthical07/statsclient/session"
)

const maxMessageLen = 256

type exchange struct {
	status int
	header http.Header
	body   []byte
}

// Send performs one authenticated call.
//
// A body that cannot be encoded yields ErrValidation before any network activity.
//
// Without a token Send fails with ErrUnauthenticated and makes no network call. A
// New-Token header is applied to the session before Send returns, whatever the status.
// A 401 whose message marks the token as expired or invalid clears the session and
// yields ErrExpiredSession; any other 401 or 403 yields ErrPermissionDenied and leaves
// the session alone. Transport failures yield ErrNetworkFailure. Every other status is
// returned as a *Response.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	if !c.ready() {
		return nil, ErrClientNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}

	current := c.store.Get()
	if !current.Authenticated() {
		c.metrics.Inc(MetricUnauthenticated)
		return nil, ErrUnauthenticated
	}

	requestID := requestIDFromContext(ctx)
	httpReq, err := c.newHTTPRequest(ctx, req, current.Token, requestID)
	if err != nil {
		return nil, c.validationFailed(err)
	}
	ex, err := c.roundTrip(ctx, httpReq, req, requestID)

	rotated := false
	if ex != nil {
		rotated = c.applyRotation(ctx, current, ex, req, requestID)
	}
	if err != nil {
		return nil, c.networkFailure(ctx, req, requestID, err)
	}

	switch ex.status {
	case http.StatusUnauthorized:
		msg := responseMessage(ex.body)
		if c.isExpiry(msg) {
			return nil, c.expire(ctx, current, ex, req, requestID, msg, rotated)
		}
		return nil, c.deny(ctx, current, ex, req, requestID, msg, rotated)
	case http.StatusForbidden:
		return nil, c.deny(ctx, current, ex, req, requestID, responseMessage(ex.body), rotated)
	}

	if ex.status >= 200 && ex.status < 300 {
		c.metrics.Inc(MetricRequestSuccess)
	} else {
		c.metrics.Inc(MetricRequestFailure)
	}

	return &Response{
		StatusCode: ex.status,
		Body:       ex.body,
		Rotated:    rotated,
		RequestID:  requestID,
	}, nil
}

// roundTrip sends httpReq, built from req by newHTTPRequest. Every error it returns is a
// transport failure. When the body cannot be read the partial exchange is returned with
// the error so its headers can still be honored.
func (c *Client) roundTrip(ctx context.Context, httpReq *http.Request, req Request, requestID string) (*exchange, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	c.metrics.Observe(MetricRequestLatency, time.Since(start))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	ex := &exchange{
		status: resp.StatusCode,
		header: resp.Header,
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.HTTP.MaxBodyBytes))
	ex.body = body
	if err != nil {
		return ex, fmt.Errorf("read response body: %w", err)
	}

	c.logger.Debug("backend call",
		"method", httpReq.Method,
		"endpoint", req.Endpoint,
		"status", ex.status,
		"request_id", requestID,
		"latency", time.Since(start),
	)
	return ex, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request, bearer, requestID string) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: encode request body: %v", ErrValidation, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method(), c.endpointURL(req.Endpoint), body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrValidation, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	httpReq.Header.Set(HeaderRequestID, requestID)
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}
	return httpReq, nil
}

func (c *Client) endpointURL(endpoint string) string {
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

func (c *Client) applyRotation(ctx context.Context, current session.Session, ex *exchange, req Request, requestID string) bool {
	next := strings.TrimSpace(ex.header.Get(HeaderNewToken))
	if next == "" || next == current.Token {
		return false
	}

	applied, err := c.store.RotateAt(ctx, current.Epoch, next)
	if err != nil {
		c.persistFailed(ctx, "rotate", err)
	}
	if !applied {
		c.metrics.Inc(MetricRotationDiscarded)
		c.logger.Debug("token rotation discarded", "endpoint", req.Endpoint, "request_id", requestID)
		c.emit(ctx, Event{
			Type:      EventRotationDiscarded,
			Role:      current.Role,
			Endpoint:  req.Endpoint,
			RequestID: requestID,
			Status:    ex.status,
		})
		return false
	}

	c.metrics.Inc(MetricTokenRotated)
	c.logger.Debug("token rotated", "endpoint", req.Endpoint, "request_id", requestID)
	c.emit(ctx, Event{
		Type:      EventTokenRotated,
		Role:      current.Role,
		Endpoint:  req.Endpoint,
		RequestID: requestID,
		Status:    ex.status,
		Success:   true,
	})
	return true
}

func (c *Client) expire(ctx context.Context, current session.Session, ex *exchange, req Request, requestID, msg string, rotated bool) error {
	cleared, err := c.store.ClearAt(ctx, current.Epoch)
	if err != nil {
		c.persistFailed(ctx, "expire", err)
	}

	c.metrics.Inc(MetricSessionExpired)
	c.logger.Info("session expired",
		"endpoint", req.Endpoint,
		"request_id", requestID,
		"cleared", cleared,
	)
	c.emit(ctx, Event{
		Type:      EventSessionExpired,
		Role:      current.Role,
		Endpoint:  req.Endpoint,
		RequestID: requestID,
		Status:    ex.status,
		Error:     msg,
	})
	return newAPIError(ErrExpiredSession, ex.status, msg, requestID, rotated)
}

func (c *Client) deny(ctx context.Context, current session.Session, ex *exchange, req Request, requestID, msg string, rotated bool) error {
	c.metrics.Inc(MetricPermissionDenied)
	c.logger.Info("permission denied",
		"endpoint", req.Endpoint,
		"status", ex.status,
		"request_id", requestID,
	)
	c.emit(ctx, Event{
		Type:      EventPermissionDenied,
		Role:      current.Role,
		Endpoint:  req.Endpoint,
		RequestID: requestID,
		Status:    ex.status,
		Error:     msg,
	})
	return newAPIError(ErrPermissionDenied, ex.status, msg, requestID, rotated)
}

func (c *Client) networkFailure(ctx context.Context, req Request, requestID string, err error) error {
	c.metrics.Inc(MetricNetworkFailure)
	c.logger.Warn("backend unreachable",
		"method", req.method(),
		"endpoint", req.Endpoint,
		"request_id", requestID,
		"error", err,
	)
	c.emit(ctx, Event{
		Type:      EventNetworkFailure,
		Endpoint:  req.Endpoint,
		RequestID: requestID,
		Error:     err.Error(),
	})
	return fmt.Errorf("%w: %s %s: %w", ErrNetworkFailure, req.method(), req.Endpoint, err)
}

func (c *Client) isExpiry(msg string) bool {
	lower := strings.ToLower(msg)
	for _, m := range c.markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// responseMessage extracts the backend's message from a JSON body, falling back to the
// raw text.
func responseMessage(body []byte) string {
	var m struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &m); err == nil {
		if m.Message != "" {
			return m.Message
		}
		if m.Error != "" {
			return m.Error
		}
		return ""
	}

	text := strings.TrimSpace(string(body))
	if !utf8.ValidString(text) {
		return ""
	}
	if len(text) > maxMessageLen {
		cut := maxMessageLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}
