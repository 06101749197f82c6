// Package prometheus exposes engine metrics as a prometheus.Collector.
//
// [Exporter] reads a snapshot on every scrape; it does not register itself in the
// global registry. Register it with your own registry, or mount [Exporter.Handler],
// which serves it from a private one. Counters are named sessionauth_*_total; the
// only histogram is sessionauth_authenticate_latency_seconds.
package prometheus
