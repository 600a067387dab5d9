// Package prometheus exposes statsclient metrics through client_golang.
//
// [Collector] implements prometheus.Collector over any [Source] (a *statsclient.Client
// is one) and reports every counter as statsclient_*_total plus the
// statsclient_request_latency_seconds histogram. [Handler] serves a registry over HTTP
// and [WriteTextfile] dumps it for the node_exporter textfile collector, which suits a
// short-lived CLI process.
//
// # What this package must NOT do
//
//   - Register into the global Prometheus registry; callers pass a Registerer.
//   - Mutate client state.
package prometheus
