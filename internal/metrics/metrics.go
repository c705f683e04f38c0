// Package metrics exports sampling cycle statistics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/7c/schedprobe/internal/procscan"
	"github.com/7c/schedprobe/internal/sampler"
)

// Probe implements sampler.Observer.
type Probe struct {
	cycles    prometheus.Counter
	failures  prometheus.Counter
	processes *prometheus.GaugeVec
	diags     *prometheus.CounterVec
	duration  prometheus.Histogram
	lastCycle prometheus.Gauge

	gatherer prometheus.Gatherer
}

var _ sampler.Observer = (*Probe)(nil)

// New registers the probe metrics with reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Probe {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	p := &Probe{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "schedprobe_cycles_total",
			Help: "Sampling cycles completed.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "schedprobe_cycle_failures_total",
			Help: "Sampling cycles aborted because the process listing was unavailable.",
		}),
		processes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "schedprobe_processes",
			Help: "Processes seen by the last cycle, per pipeline stage.",
		}, []string{"stage"}),
		diags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schedprobe_diagnostics_total",
			Help: "Lines and processes dropped or degraded, by kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "schedprobe_cycle_duration_seconds",
			Help:    "Wall time of one sampling cycle.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "schedprobe_last_cycle_timestamp_seconds",
			Help: "Start time of the last completed cycle.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(p.cycles, p.failures, p.processes, p.diags, p.duration, p.lastCycle)
	for _, k := range allKinds {
		p.diags.WithLabelValues(string(k))
	}
	return p
}

// ObserveCycle records a completed cycle.
func (p *Probe) ObserveCycle(res *sampler.Result) {
	p.cycles.Inc()
	p.processes.WithLabelValues("enumerated").Set(float64(res.Enumerated))
	p.processes.WithLabelValues("resolved").Set(float64(res.Resolved))
	p.processes.WithLabelValues("sampled").Set(float64(res.Table.Len()))
	for kind, n := range res.Diagnostics.Counts() {
		p.diags.WithLabelValues(string(kind)).Add(float64(n))
	}
	p.duration.Observe(res.Duration.Seconds())
	p.lastCycle.Set(float64(res.Started.UnixNano()) / 1e9)
}

// ObserveFailure records an aborted cycle.
func (p *Probe) ObserveFailure(error) {
	p.failures.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Probe) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// allKinds pre-creates every diagnostic series so dashboards see zeros.
var allKinds = []procscan.Kind{
	procscan.KindDiscoveryParse, procscan.KindDuplicate, procscan.KindResolveMiss,
	procscan.KindReadFailure, procscan.KindFieldParse, procscan.KindNoSeparator,
	procscan.KindEmptyRecord,
}
