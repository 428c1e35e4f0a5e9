// Package otel bridges engine metrics into an OpenTelemetry meter via
// observable instruments. Counters map directly; histograms are exposed
// as cumulative bucket gauges because the core tracks fixed buckets.
package otel
