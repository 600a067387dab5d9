package internaldefs

import (
	"strconv"

	statsclient "github.com/MrEthical07/statsclient"
)

// CounterDef names one client counter.
type CounterDef struct {
	ID   statsclient.MetricID
	Name string
	Help string
}

// HistogramDef names one client histogram.
type HistogramDef struct {
	ID   statsclient.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: statsclient.MetricLoginSuccess, Name: "statsclient_login_success_total", Help: "Logins that stored a token."},
	{ID: statsclient.MetricLoginFailure, Name: "statsclient_login_failure_total", Help: "Logins rejected by the backend or the transport."},
	{ID: statsclient.MetricLogout, Name: "statsclient_logout_total", Help: "Local logouts."},
	{ID: statsclient.MetricRegisterSuccess, Name: "statsclient_register_success_total", Help: "Accepted registrations."},
	{ID: statsclient.MetricRegisterFailure, Name: "statsclient_register_failure_total", Help: "Rejected registrations."},
	{ID: statsclient.MetricValidationFailure, Name: "statsclient_validation_failure_total", Help: "Inputs rejected before any network call."},
	{ID: statsclient.MetricRequestSuccess, Name: "statsclient_request_success_total", Help: "Authenticated calls answered with 2xx."},
	{ID: statsclient.MetricRequestFailure, Name: "statsclient_request_failure_total", Help: "Authenticated calls answered with another non-auth status."},
	{ID: statsclient.MetricUnauthenticated, Name: "statsclient_unauthenticated_total", Help: "Calls refused locally for lack of a token."},
	{ID: statsclient.MetricNetworkFailure, Name: "statsclient_network_failure_total", Help: "Transport failures."},
	{ID: statsclient.MetricTokenRotated, Name: "statsclient_token_rotated_total", Help: "New-Token headers applied to the session."},
	{ID: statsclient.MetricRotationDiscarded, Name: "statsclient_rotation_discarded_total", Help: "New-Token headers dropped after the session changed."},
	{ID: statsclient.MetricSessionExpired, Name: "statsclient_session_expired_total", Help: "Sessions cleared on an expiry response."},
	{ID: statsclient.MetricPermissionDenied, Name: "statsclient_permission_denied_total", Help: "401/403 responses that kept the session."},
	{ID: statsclient.MetricPersistFailure, Name: "statsclient_persist_failure_total", Help: "Session persistence errors."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: statsclient.MetricRequestLatency, Name: "statsclient_request_latency_seconds", Help: "Backend round-trip latency."},
}

// Name and help of the dispatcher backpressure counter.
const (
	EventsDroppedName = "statsclient_events_dropped_total"
	EventsDroppedHelp = "Events dropped because the dispatcher buffer was full."
)

// BucketCount is the number of latency buckets, the last one unbounded.
const BucketCount = 8

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth bucket is +Inf.
var HistogramUpperBounds = [BucketCount - 1]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// BucketLabels returns the "le" label of every bucket, ending with "+Inf".
func BucketLabels() [BucketCount]string {
	var out [BucketCount]string
	for i, le := range HistogramUpperBounds {
		out[i] = strconv.FormatFloat(le, 'g', -1, 64)
	}
	out[BucketCount-1] = "+Inf"
	return out
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
