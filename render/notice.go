package render

import (
	"errors"
	"fmt"

	statsclient "github.com/MrEthical07/statsclient"
)

// Process exit statuses per outcome.
const (
	ExitOK           = 0
	ExitUnexpected   = 1
	ExitValidation   = 2
	ExitAuthRequired = 3
	ExitDenied       = 4
	ExitNetwork      = 5
)

// ExitCode maps err onto a process exit status.
func ExitCode(err error) int {
	switch statsclient.Classify(err) {
	case statsclient.OutcomeOK:
		return ExitOK
	case statsclient.OutcomeValidationFailure:
		return ExitValidation
	case statsclient.OutcomeUnauthenticated, statsclient.OutcomeExpiredSession:
		return ExitAuthRequired
	case statsclient.OutcomePermissionDenied:
		return ExitDenied
	case statsclient.OutcomeNetworkFailure:
		return ExitNetwork
	default:
		return ExitUnexpected
	}
}

// Notice prints the user-facing message for err. It prints nothing for nil.
func (r *Renderer) Notice(err error) {
	if err == nil {
		return
	}

	switch statsclient.Classify(err) {
	case statsclient.OutcomeUnauthenticated:
		fmt.Fprintln(r.w, "You are not logged in. Run `statsctl login` first.")
	case statsclient.OutcomeExpiredSession:
		fmt.Fprintln(r.w, "Your session has expired. Please log in again.")
	case statsclient.OutcomeNetworkFailure:
		fmt.Fprintln(r.w, "The server could not be reached. You are still logged in; try again shortly.")
	case statsclient.OutcomePermissionDenied:
		fmt.Fprintf(r.w, "Access denied: %s\n", r.apiMessage(err, "you do not have permission for this action"))
	case statsclient.OutcomeValidationFailure:
		var vErr *statsclient.ValidationError
		if errors.As(err, &vErr) {
			fmt.Fprintf(r.w, "Invalid %s: %s\n", vErr.Field, vErr.Reason)
			return
		}
		fmt.Fprintf(r.w, "Invalid input: %s\n", r.Clean(err.Error()))
	default:
		if errors.Is(err, statsclient.ErrLoginFailed) {
			fmt.Fprintf(r.w, "Login failed: %s\n", r.apiMessage(err, "check your username and password"))
			return
		}
		fmt.Fprintf(r.w, "Error: %s\n", r.apiMessage(err, r.Clean(err.Error())))
	}
}

func (r *Renderer) apiMessage(err error, fallback string) string {
	var apiErr *statsclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return r.Clean(apiErr.Message)
	}
	return fallback
}
