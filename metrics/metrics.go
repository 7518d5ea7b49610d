// Package metrics exposes Prometheus counters for probes and verdicts.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the mxprobe metric families.
type Collector struct {
	Probes        *prometheus.CounterVec
	ProbeDuration prometheus.Histogram
	Verdicts      *prometheus.CounterVec
	MXLookups     *prometheus.CounterVec
}

// New registers the metric families on reg. A nil reg means
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Collector{
		Probes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mxprobe_probes_total",
			Help: "SMTP probes by outcome (accepted, rejected, indeterminate, unavailable)",
		}, []string{"outcome"}),
		ProbeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mxprobe_probe_duration_seconds",
			Help:    "Duration of a single SMTP probe, connect included",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mxprobe_verdicts_total",
			Help: "Verification verdicts by status",
		}, []string{"status"}),
		MXLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mxprobe_mx_lookups_total",
			Help: "MX lookups by result (ok, failed)",
		}, []string{"result"}),
	}
}

func (c *Collector) ObserveProbe(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.Probes.WithLabelValues(outcome).Inc()
	c.ProbeDuration.Observe(d.Seconds())
}

func (c *Collector) ObserveVerdict(status string) {
	if c == nil {
		return
	}
	c.Verdicts.WithLabelValues(status).Inc()
}

func (c *Collector) ObserveMXLookup(ok bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.MXLookups.WithLabelValues(result).Inc()
}
