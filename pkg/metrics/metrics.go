// Package metrics exposes pipeline counters for Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline holds the synthesis collectors. A nil *Pipeline records nothing.
type Pipeline struct {
	generations *prometheus.CounterVec
	verdicts    *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewPipeline registers the collectors with reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	p := &Pipeline{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mythforge",
			Name:      "generations_total",
			Help:      "Generator calls by purpose and result",
		}, []string{"purpose", "result"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mythforge",
			Name:      "verdicts_total",
			Help:      "Validator verdicts by stage",
		}, []string{"stage", "verdict"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mythforge",
			Name:      "synthesis_total",
			Help:      "Finished syntheses by terminal state",
		}, []string{"state"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mythforge",
			Name:      "synthesis_duration_seconds",
			Help:      "Time spent from intake to a finalized pair",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
	}
	reg.MustRegister(p.generations, p.verdicts, p.outcomes, p.duration)
	return p
}

// Generation counts one generator call. result is "ok" or a failure reason.
func (p *Pipeline) Generation(purpose, result string) {
	if p == nil {
		return
	}
	if result == "" {
		result = "ok"
	}
	p.generations.WithLabelValues(purpose, result).Inc()
}

func (p *Pipeline) Verdict(stage, verdict string) {
	if p == nil {
		return
	}
	p.verdicts.WithLabelValues(stage, verdict).Inc()
}

// Finished records the terminal state and elapsed time of one synthesis.
func (p *Pipeline) Finished(state string, elapsed time.Duration) {
	if p == nil {
		return
	}
	p.outcomes.WithLabelValues(state).Inc()
	p.duration.Observe(elapsed.Seconds())
}
