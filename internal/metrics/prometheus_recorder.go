package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "deckbuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg            *prom.Registry
	stageDuration  *prom.HistogramVec
	stageResults   *prom.CounterVec
	buildDuration  prom.Histogram
	buildOutcome   *prom.CounterVec
	renderDuration *prom.HistogramVec
	renderResults  *prom.CounterVec
	fragments      *prom.GaugeVec
	lastBuild      *prom.GaugeVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{reg: reg}
	pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of individual build stages",
		Buckets:   prom.DefBuckets,
	}, []string{"stage"})
	pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "stage_results_total",
		Help:      "Stage result counts by outcome",
	}, []string{"stage", "result"})
	pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "build_duration_seconds",
		Help:      "Total build duration",
		Buckets:   prom.DefBuckets,
	})
	pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "build_outcomes_total",
		Help:      "Build outcomes by final status",
	}, []string{"outcome"})
	pr.renderDuration = prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "render_duration_seconds",
		Help:      "Duration of renderer invocations by artifact kind",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"kind", "result"})
	pr.renderResults = prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "render_results_total",
		Help:      "Renderer invocation results by artifact kind",
	}, []string{"kind", "result"})
	pr.fragments = prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "lesson_fragments",
		Help:      "Number of fragments discovered for a lesson in the last build",
	}, []string{"kind", "lesson"})
	pr.lastBuild = prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "last_build_timestamp_seconds",
		Help:      "Unix time the last build finished, by outcome",
	}, []string{"outcome"})
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.buildDuration, pr.buildOutcome,
		pr.renderDuration, pr.renderResults, pr.fragments, pr.lastBuild)
	return pr
}

// Registry returns the registry the recorder's collectors are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome BuildOutcomeLabel) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveRender(kind string, d time.Duration, result ResultLabel) {
	if p == nil {
		return
	}
	p.renderDuration.WithLabelValues(kind, string(result)).Observe(d.Seconds())
	p.renderResults.WithLabelValues(kind, string(result)).Inc()
}

func (p *PrometheusRecorder) SetFragments(kind, lesson string, n int) {
	if p == nil {
		return
	}
	p.fragments.WithLabelValues(kind, lesson).Set(float64(n))
}

func (p *PrometheusRecorder) SetLastBuild(t time.Time, outcome BuildOutcomeLabel) {
	if p == nil {
		return
	}
	p.lastBuild.WithLabelValues(string(outcome)).Set(float64(t.Unix()))
}

// WriteTextfile writes the recorder's registry to path in the text exposition
// format, creating the parent directory if needed.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}
	if err := prom.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
