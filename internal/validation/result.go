package validation

import (
	"fmt"
	"sort"
)

// Metric names recorded in Result.Metrics. The first four are always present.
const (
	MetricPcapSHA256        = "pcap_sha256"
	MetricHTTPTokenHeaders  = "http_token_headers"
	MetricDistinctServedBy  = "distinct_x_served_by"
	MetricDistinctBackendID = "distinct_x_backend_id"
	MetricDistinctBackends  = "distinct_backends"
	MetricCaptureFormat     = "capture_format"
	MetricCaptureFrames     = "capture_frames"
	MetricCaptureBytes      = "capture_bytes"
	MetricTCPHandshake      = "tcp_handshake"
	MetricDNSQuerySeen      = "dns_query_seen"
	MetricSignature         = "signature"
	MetricArtefactsDeclared = "artefacts_declared"
	MetricArtefactsVerified = "artefacts_verified"
	structuredMetricPrefix  = "structured_"
)

// Result is the outcome of one validation run. OK is true iff Errors is empty.
type Result struct {
	OK       bool                   `json:"ok"`
	Errors   []string               `json:"errors"`
	Warnings []string               `json:"warnings"`
	Metrics  map[string]interface{} `json:"metrics"`
}

// MetricNames returns the metric keys in sorted order.
func (r *Result) MetricNames() []string {
	names := make([]string, 0, len(r.Metrics))
	for name := range r.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builder accumulates problems across checks. Checks never stop on the first
// failure; only the caller decides to return early.
type Builder struct {
	errors   []string
	warnings []string
	metrics  map[string]interface{}
}

// NewBuilder returns a builder with the always-present metrics zeroed.
func NewBuilder() *Builder {
	return &Builder{
		metrics: map[string]interface{}{
			MetricPcapSHA256:        "",
			MetricHTTPTokenHeaders:  0,
			MetricDistinctServedBy:  0,
			MetricDistinctBackendID: 0,
		},
	}
}

// Errorf records a failure.
func (b *Builder) Errorf(format string, args ...interface{}) {
	b.errors = append(b.errors, fmt.Sprintf(format, args...))
}

// Warnf records a non-fatal observation.
func (b *Builder) Warnf(format string, args ...interface{}) {
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}

// Metric records a named fact.
func (b *Builder) Metric(name string, value interface{}) {
	b.metrics[name] = value
}

// ErrorCount returns the number of failures so far.
func (b *Builder) ErrorCount() int {
	return len(b.errors)
}

// Result freezes the builder into a Result.
func (b *Builder) Result() *Result {
	metrics := make(map[string]interface{}, len(b.metrics))
	for k, v := range b.metrics {
		metrics[k] = v
	}
	return &Result{
		OK:       len(b.errors) == 0,
		Errors:   append([]string{}, b.errors...),
		Warnings: append([]string{}, b.warnings...),
		Metrics:  metrics,
	}
}
