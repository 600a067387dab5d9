package statsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sqlRequest struct {
	Query string `json:"query"`
}

// Login exchanges credentials for a token and stores it with its role. A previous login
// is replaced. When the backend accepted the login but the session could not be
// persisted, Login returns the result together with ErrSessionPersist.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if !c.ready() {
		return nil, ErrClientNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}

	username = strings.TrimSpace(username)
	if err := firstInvalid(
		required("username", username),
		required("password", password),
	); err != nil {
		return nil, c.validationFailed(err)
	}

	req := Request{
		Endpoint: EndpointLogin,
		Method:   http.MethodPost,
		Body:     loginRequest{Username: username, Password: password},
	}
	requestID := requestIDFromContext(ctx)

	httpReq, err := c.newHTTPRequest(ctx, req, "", requestID)
	if err != nil {
		return nil, c.validationFailed(err)
	}
	ex, err := c.roundTrip(ctx, httpReq, req, requestID)
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		return nil, c.networkFailure(ctx, req, requestID, err)
	}

	if ex.status < 200 || ex.status >= 300 {
		msg := responseMessage(ex.body)
		c.metrics.Inc(MetricLoginFailure)
		c.logger.Info("login rejected", "status", ex.status, "request_id", requestID)
		c.emit(ctx, Event{
			Type:      EventLoginFailed,
			Endpoint:  EndpointLogin,
			RequestID: requestID,
			Status:    ex.status,
			Error:     msg,
		})
		return nil, newAPIError(ErrLoginFailed, ex.status, msg, requestID, false)
	}

	var out LoginResult
	if err := json.Unmarshal(ex.body, &out); err != nil {
		c.metrics.Inc(MetricLoginFailure)
		return nil, fmt.Errorf("%w: login: %v", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(out.Token) == "" {
		c.metrics.Inc(MetricLoginFailure)
		return nil, fmt.Errorf("%w: login response carries no token", ErrMalformedResponse)
	}

	c.metrics.Inc(MetricLoginSuccess)
	c.logger.Info("logged in", "role", out.Role, "request_id", requestID)
	c.emit(ctx, Event{
		Type:      EventLogin,
		Role:      out.Role,
		Endpoint:  EndpointLogin,
		RequestID: requestID,
		Status:    ex.status,
		Success:   true,
	})

	if err := c.store.Set(ctx, out.Token, out.Role); err != nil {
		c.persistFailed(ctx, "login", err)
		return &out, fmt.Errorf("%w: %v", ErrSessionPersist, err)
	}
	return &out, nil
}

// Register creates an account. Input is validated locally first; rejected input yields
// a *ValidationError and no network call. Register never touches the session.
func (c *Client) Register(ctx context.Context, r Registration) (*RegisterResult, error) {
	if !c.ready() {
		return nil, ErrClientNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	if err := validateRegistration(r); err != nil {
		return nil, c.validationFailed(err)
	}

	req := Request{
		Endpoint: EndpointRegister,
		Method:   http.MethodPost,
		Body:     registerRequest{Username: r.Username, Email: r.Email, Password: r.Password},
	}
	requestID := requestIDFromContext(ctx)

	httpReq, err := c.newHTTPRequest(ctx, req, "", requestID)
	if err != nil {
		return nil, c.validationFailed(err)
	}
	ex, err := c.roundTrip(ctx, httpReq, req, requestID)
	if err != nil {
		c.metrics.Inc(MetricRegisterFailure)
		return nil, c.networkFailure(ctx, req, requestID, err)
	}

	if ex.status < 200 || ex.status >= 300 {
		msg := responseMessage(ex.body)
		c.metrics.Inc(MetricRegisterFailure)
		c.emit(ctx, Event{
			Type:      EventRegisterFailed,
			Endpoint:  EndpointRegister,
			RequestID: requestID,
			Status:    ex.status,
			Error:     msg,
		})
		return nil, newAPIError(ErrRequestFailed, ex.status, msg, requestID, false)
	}

	var out RegisterResult
	if err := json.Unmarshal(ex.body, &out); err != nil {
		c.metrics.Inc(MetricRegisterFailure)
		return nil, fmt.Errorf("%w: register: %v", ErrMalformedResponse, err)
	}

	c.metrics.Inc(MetricRegisterSuccess)
	c.emit(ctx, Event{
		Type:      EventRegister,
		Role:      out.Role,
		Endpoint:  EndpointRegister,
		RequestID: requestID,
		Status:    ex.status,
		Success:   true,
	})
	return &out, nil
}

// Logout clears the session locally. The backend keeps no server-side session, so no
// call is made.
func (c *Client) Logout(ctx context.Context) error {
	if !c.ready() {
		return ErrClientNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}

	role := c.store.Get().Role
	err := c.store.Clear(ctx)

	c.metrics.Inc(MetricLogout)
	c.logger.Info("logged out")
	c.emit(ctx, Event{Type: EventLogout, Role: role, Success: err == nil})

	if err != nil {
		c.persistFailed(ctx, "logout", err)
		return fmt.Errorf("%w: %v", ErrSessionPersist, err)
	}
	return nil
}

// PlayerStats fetches the caller's statistics. Both the {success,data} envelope and the
// older flat body are accepted.
func (c *Client) PlayerStats(ctx context.Context) (*PlayerStats, error) {
	res, env, err := c.call(ctx, Request{Endpoint: EndpointPlayerStats})
	if err != nil {
		return nil, err
	}

	var out PlayerStats
	if err := decodePayload(res, env.Data, &out); err != nil {
		return nil, err
	}
	if out.Message == "" {
		out.Message = env.Message
	}
	return &out, nil
}

// UserInfo fetches the profile of the logged-in user.
func (c *Client) UserInfo(ctx context.Context) (*UserInfo, error) {
	res, env, err := c.call(ctx, Request{Endpoint: EndpointUserInfo})
	if err != nil {
		return nil, err
	}

	var out UserInfo
	if err := decodePayload(res, env.Data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminPanel fetches the admin panel rows. Non-admin tokens get ErrPermissionDenied.
func (c *Client) AdminPanel(ctx context.Context) (*AdminPanel, error) {
	_, env, err := c.call(ctx, Request{Endpoint: EndpointAdminPanel})
	if err != nil {
		return nil, err
	}

	out := &AdminPanel{Message: env.Message}
	if !hasPayload(env.Data) {
		return out, nil
	}

	if err := json.Unmarshal(env.Data, &out.Rows); err == nil {
		return out, nil
	}
	var single map[string]any
	if err := json.Unmarshal(env.Data, &single); err != nil {
		return nil, fmt.Errorf("%w: admin panel data: %v", ErrMalformedResponse, err)
	}
	out.Rows = []map[string]any{single}
	return out, nil
}

// SQLQuery runs query on the backend's admin SQL endpoint.
func (c *Client) SQLQuery(ctx context.Context, query string) (*SQLResult, error) {
	if !c.ready() {
		return nil, ErrClientNotReady
	}
	query = strings.TrimSpace(query)
	if err := required("query", query); err != nil {
		return nil, c.validationFailed(err)
	}

	_, env, err := c.call(ctx, Request{
		Endpoint: EndpointSQLQuery,
		Method:   http.MethodPost,
		Body:     sqlRequest{Query: query},
	})
	if err != nil {
		return nil, err
	}

	out := &SQLResult{Query: query, Result: env.Result}
	if !hasPayload(out.Result) && hasPayload(env.Data) {
		out.Result = env.Data
	}
	return out, nil
}

// call sends req and turns non-2xx statuses and success:false bodies into errors.
func (c *Client) call(ctx context.Context, req Request) (*Response, envelope, error) {
	res, err := c.Send(ctx, req)
	if err != nil {
		return nil, envelope{}, err
	}

	var env envelope
	if !res.OK() {
		_ = json.Unmarshal(res.Body, &env)
		msg := env.Message
		if msg == "" {
			msg = responseMessage(res.Body)
		}
		return nil, env, newAPIError(ErrRequestFailed, res.StatusCode, msg, res.RequestID, res.Rotated)
	}

	if err := res.Decode(&env); err != nil {
		return nil, env, err
	}
	if env.failed() {
		return nil, env, newAPIError(ErrRequestFailed, res.StatusCode, env.Message, res.RequestID, res.Rotated)
	}
	return res, env, nil
}

func decodePayload(res *Response, data json.RawMessage, v any) error {
	if hasPayload(data) {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return nil
	}
	return res.Decode(v)
}

func (c *Client) validationFailed(err error) error {
	c.metrics.Inc(MetricValidationFailure)
	return err
}

func required(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	return nil
}

func firstInvalid(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func validateRegistration(r Registration) error {
	if err := firstInvalid(
		required("username", r.Username),
		required("email", r.Email),
		required("password", r.Password),
	); err != nil {
		return err
	}

	addr, err := mail.ParseAddress(r.Email)
	if err != nil || addr.Address != r.Email {
		return &ValidationError{Field: "email", Reason: "not a valid address"}
	}
	if r.Password != r.ConfirmPassword {
		return &ValidationError{Field: "confirm_password", Reason: "does not match password"}
	}
	return nil
}
