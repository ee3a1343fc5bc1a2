package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	buildDuration prom.Histogram
	stageDuration *prom.HistogramVec
	blocks        *prom.CounterVec
	files         *prom.CounterVec
	buildOutcome  *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "shikibuild",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "shikibuild",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		blocks: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "shikibuild",
			Name:      "blocks_total",
			Help:      "Code blocks by outcome",
		}, []string{"outcome"}),
		files: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "shikibuild",
			Name:      "files_total",
			Help:      "Content files by outcome",
		}, []string{"outcome"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "shikibuild",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
	}
	reg.MustRegister(pr.buildDuration, pr.stageDuration, pr.blocks, pr.files, pr.buildOutcome)
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) AddBlocks(outcome string, n int) {
	if n > 0 {
		p.blocks.WithLabelValues(outcome).Add(float64(n))
	}
}

func (p *PrometheusRecorder) AddFiles(outcome string, n int) {
	if n > 0 {
		p.files.WithLabelValues(outcome).Add(float64(n))
	}
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	p.buildOutcome.WithLabelValues(outcome).Inc()
}

// HTTPHandler serves the metrics in reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
