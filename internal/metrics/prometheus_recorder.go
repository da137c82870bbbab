package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	fileDuration    *prom.HistogramVec
	fileOutcomes    *prom.CounterVec
	runDuration     prom.Histogram
	runOutcomes     *prom.CounterVec
	filesDiscovered prom.Gauge
	lastRun         prom.Gauge
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil reg gets a fresh private registry.
func NewPrometheusRecorder(reg prom.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		fileDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docweave",
			Name:      "file_duration_seconds",
			Help:      "Time spent on one input file, by outcome",
			Buckets:   prom.DefBuckets,
		}, []string{"outcome"}),
		fileOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docweave",
			Name:      "file_outcomes_total",
			Help:      "Input files processed, by outcome",
		}, []string{"outcome"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docweave",
			Name:      "run_duration_seconds",
			Help:      "Total run duration",
			Buckets:   prom.DefBuckets,
		}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docweave",
			Name:      "run_outcomes_total",
			Help:      "Runs by final status",
		}, []string{"outcome"}),
		filesDiscovered: prom.NewGauge(prom.GaugeOpts{
			Namespace: "docweave",
			Name:      "files_discovered",
			Help:      "Input files found by the last scan",
		}),
		lastRun: prom.NewGauge(prom.GaugeOpts{
			Namespace: "docweave",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
	reg.MustRegister(pr.fileDuration, pr.fileOutcomes, pr.runDuration, pr.runOutcomes, pr.filesDiscovered, pr.lastRun)
	return pr
}

func (p *PrometheusRecorder) ObserveFileDuration(outcome OutcomeLabel, d time.Duration) {
	if p == nil {
		return
	}
	p.fileDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncFileOutcome(outcome OutcomeLabel) {
	if p == nil {
		return
	}
	p.fileOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
	p.lastRun.SetToCurrentTime()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome RunOutcomeLabel) {
	if p == nil {
		return
	}
	p.runOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetFilesDiscovered(n int) {
	if p == nil {
		return
	}
	p.filesDiscovered.Set(float64(n))
}
