// Package internaldefs holds the metric names and bucket bounds shared by the
// exporters, so the Prometheus and OpenTelemetry outputs never drift apart.
package internaldefs
