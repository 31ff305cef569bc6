// Package promexport exposes upload outcomes as Prometheus series, scraped
// on /metrics and optionally pushed to a Pushgateway or remote_write sink.
package promexport

import (
	"runtime"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "meterreadings"

const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// Collector owns the upload series. A nil Collector records nothing.
type Collector struct {
	registry       *prometheus.Registry
	rows           *prometheus.CounterVec
	uploads        *prometheus.CounterVec
	lastUploadRows *prometheus.GaugeVec
	memory         prometheus.Gauge
}

func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func New(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	c := &Collector{
		registry: registry,
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Uploaded data rows by outcome and rejection reason.",
		}, []string{"outcome", "reason"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Processed upload batches by outcome.",
		}, []string{"outcome"}),
		lastUploadRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_upload_rows",
			Help:      "Row counts of the most recent upload.",
		}, []string{"outcome"}),
		memory: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "process_memory_bytes",
			Help:      "Memory obtained from the OS by the Go runtime.",
		}),
	}
	registry.MustRegister(c.rows, c.uploads, c.lastUploadRows, c.memory)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordRows adds n rows with the given outcome. reason is empty for
// accepted rows.
func (c *Collector) RecordRows(outcome, reason string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.rows.WithLabelValues(normalizeLabel(outcome), strings.TrimSpace(reason)).Add(float64(n))
}

func (c *Collector) RecordUpload(success, failed int) {
	if c == nil {
		return
	}
	outcome := "empty"
	switch {
	case success > 0 && failed > 0:
		outcome = "partial"
	case success > 0:
		outcome = OutcomeAccepted
	case failed > 0:
		outcome = OutcomeRejected
	}
	c.uploads.WithLabelValues(outcome).Inc()
	c.lastUploadRows.WithLabelValues(OutcomeAccepted).Set(float64(success))
	c.lastUploadRows.WithLabelValues(OutcomeRejected).Set(float64(failed))
}

func (c *Collector) updateSystemMetrics() {
	if c == nil {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	c.memory.Set(float64(m.Sys))
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
