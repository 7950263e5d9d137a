package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	registry         *prom.Registry
	compileDuration  *prom.HistogramVec
	runDuration      *prom.HistogramVec
	bootstrapSeconds prom.Histogram
	exampleResults   *prom.CounterVec
	runOutcomes      *prom.CounterVec
	fetchRetries     *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.compileDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docsmoke",
			Name:      "compile_duration_seconds",
			Help:      "Duration of individual example compilations",
			Buckets:   prom.DefBuckets,
		}, []string{"result"})
		pr.runDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docsmoke",
			Name:      "run_duration_seconds",
			Help:      "Duration of individual example executions",
			Buckets:   prom.DefBuckets,
		}, []string{"result"})
		pr.bootstrapSeconds = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docsmoke",
			Name:      "bootstrap_duration_seconds",
			Help:      "Duration of the dependency bootstrap stage",
			Buckets:   prom.DefBuckets,
		})
		pr.exampleResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docsmoke",
			Name:      "example_results_total",
			Help:      "Example results by status",
		}, []string{"status"})
		pr.runOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docsmoke",
			Name:      "run_outcomes_total",
			Help:      "Smoke run outcomes by final status",
		}, []string{"outcome"})
		pr.fetchRetries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docsmoke",
			Name:      "fetch_retries_total",
			Help:      "Dependency fetch retries by operation",
		}, []string{"op"})
		reg.MustRegister(pr.compileDuration, pr.runDuration, pr.bootstrapSeconds, pr.exampleResults, pr.runOutcomes, pr.fetchRetries)
	})
	return pr
}

// Registry exposes the backing registry for the /metrics handler.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.registry }

func result(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}

func (p *PrometheusRecorder) ObserveCompileDuration(d time.Duration, success bool) {
	if p == nil || p.compileDuration == nil {
		return
	}
	p.compileDuration.WithLabelValues(result(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration, success bool) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.WithLabelValues(result(success)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBootstrapDuration(d time.Duration) {
	if p == nil || p.bootstrapSeconds == nil {
		return
	}
	p.bootstrapSeconds.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncExampleResult(status string) {
	if p == nil || p.exampleResults == nil {
		return
	}
	p.exampleResults.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcomes == nil {
		return
	}
	p.runOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncFetchRetry(op string) {
	if p == nil || p.fetchRetries == nil {
		return
	}
	p.fetchRetries.WithLabelValues(op).Inc()
}
