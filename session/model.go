package session

import "time"

// State is the authentication state label of a [Store].
type State uint8

const (
	// StateAnonymous means no token is held.
	StateAnonymous State = iota
	// StateAuthenticated means a bearer token is held.
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Session is a point-in-time copy of the client session.
//
// Role is meaningful only when Token is non-empty. Epoch changes on Set and Clear but
// not on Rotate, so it identifies one login.
type Session struct {
	Token     string
	Role      string
	UpdatedAt time.Time
	Epoch     uint64
}

// Authenticated reports whether a token is present.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// State returns the state label for s.
func (s Session) State() State {
	if s.Authenticated() {
		return StateAuthenticated
	}
	return StateAnonymous
}
