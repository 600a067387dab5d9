// Package internaldefs holds the metric names, help strings and latency bucket bounds
// shared by the exporters.
//
// Both the Prometheus and OTel exporters read these definitions so a counter has the
// same name everywhere. Changing a definition here changes every exporter.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
