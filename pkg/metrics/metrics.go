// Package metrics collects per-run counters and histograms (LLM calls,
// retries, stage durations, coverage repairs) and renders them to a
// Prometheus text-exposition file once per run. Metrics are never served
// over HTTP — the pipeline speaks no inbound HTTP beyond the one outbound
// LLM completion call (spec.md Non-goals).
package metrics

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Registry bundles every counter/histogram the pipeline emits.
type Registry struct {
	reg *prometheus.Registry

	LLMCalls        *prometheus.CounterVec
	LLMRetries      prometheus.Counter
	StageDuration   *prometheus.HistogramVec
	CoverageRepairs *prometheus.CounterVec
	FallbacksUsed   prometheus.Counter
}

// New builds a Registry with every metric registered under the
// "scenepipe" namespace.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		LLMCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scenepipe",
			Name:      "llm_calls_total",
			Help:      "Total LLM completion calls, by outcome.",
		}, []string{"outcome"}),
		LLMRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scenepipe",
			Name:      "llm_retries_total",
			Help:      "Total LLM call retry attempts across all stages.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scenepipe",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of each pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		CoverageRepairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scenepipe",
			Name:      "coverage_repairs_total",
			Help:      "Total coverage-repair actions taken, by stage and kind.",
		}, []string{"stage", "kind"}),
		FallbacksUsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scenepipe",
			Name:      "fallback_prompts_total",
			Help:      "Total scenes whose prompt came from the fallback generator.",
		}),
	}

	reg.MustRegister(r.LLMCalls, r.LLMRetries, r.StageDuration, r.CoverageRepairs, r.FallbacksUsed)
	return r
}

// ObserveStage records how long a stage took.
func (r *Registry) ObserveStage(stage string, d time.Duration) {
	r.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveCall records the outcome of one llm.Client.Complete call, e.g.
// "success", "terminal_failure", or "exhausted". Implements
// llm.CallObserver.
func (r *Registry) ObserveCall(outcome string) {
	r.LLMCalls.WithLabelValues(outcome).Inc()
}

// ObserveRetry records one retry attempt within a Complete call.
// Implements llm.CallObserver.
func (r *Registry) ObserveRetry() {
	r.LLMRetries.Inc()
}

// ObserveCoverageRepair records one coverage-repair action (split,
// recall, gap-fill) taken by a stage's completeness repair loop.
func (r *Registry) ObserveCoverageRepair(stage, kind string) {
	r.CoverageRepairs.WithLabelValues(stage, kind).Inc()
}

// ObserveFallback records one scene whose prompt came from the fallback
// generator rather than the LLM.
func (r *Registry) ObserveFallback() {
	r.FallbacksUsed.Inc()
}

// WriteTo gathers the registry and renders it in Prometheus text
// exposition format to path (spec.md SPEC_FULL.md B "run metrics file").
func (r *Registry) WriteTo(path string) error {
	families, err := r.reg.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("metrics: create %s: %w", path, err)
	}
	defer f.Close()

	enc := expfmt.NewEncoder(f, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("metrics: encode: %w", err)
		}
	}
	return nil
}
