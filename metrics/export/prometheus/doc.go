// Package prometheus renders slateauth engine metrics in the Prometheus text
// exposition format.
//
// Counters are named slateauth_*_total and the single histogram is
// slateauth_sign_in_latency_seconds. Nothing is registered globally; mount
// [Exporter.Handler] where the scraper can reach it.
package prometheus
