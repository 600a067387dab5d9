package statsclient

import "errors"

// Outcome is the user-facing result class of a call.
type Outcome uint8

// Outcomes, one per way a call can end.
const (
	OutcomeOK Outcome = iota
	OutcomeUnauthenticated
	OutcomeNetworkFailure
	OutcomeExpiredSession
	OutcomePermissionDenied
	OutcomeValidationFailure
	OutcomeUnexpected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeUnauthenticated:
		return "unauthenticated"
	case OutcomeNetworkFailure:
		return "network_failure"
	case OutcomeExpiredSession:
		return "expired_session"
	case OutcomePermissionDenied:
		return "permission_denied"
	case OutcomeValidationFailure:
		return "validation_failure"
	default:
		return "unexpected"
	}
}

// Classify maps err onto an Outcome. A nil error is OutcomeOK; anything not produced by
// this package is OutcomeUnexpected.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrUnauthenticated):
		return OutcomeUnauthenticated
	case errors.Is(err, ErrExpiredSession):
		return OutcomeExpiredSession
	case errors.Is(err, ErrPermissionDenied):
		return OutcomePermissionDenied
	case errors.Is(err, ErrNetworkFailure):
		return OutcomeNetworkFailure
	case errors.Is(err, ErrValidation):
		return OutcomeValidationFailure
	default:
		return OutcomeUnexpected
	}
}
