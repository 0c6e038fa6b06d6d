// Package metrics exposes a run's progress as Prometheus metrics.
//
// A Recorder observes an engine round by round and keeps counters for
// rounds, plays and wins along with gauges for regret and the current arm
// estimates. Each Recorder owns its registry, so several runs in one process
// never collide. After a run the registry can be written in the Prometheus
// text format for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"strconv"

	"github.com/nvandessel/armbench/internal/bandit"
	"github.com/nvandessel/armbench/internal/simulation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "armbench"
	banditSubsystem  = "bandit"
)

// Recorder holds the Prometheus metrics for simulation runs.
type Recorder struct {
	reg *prometheus.Registry

	// RoundsTotal counts executed rounds.
	// Labels: strategy
	RoundsTotal *prometheus.CounterVec

	// PlaysTotal counts plays per arm.
	// Labels: strategy, arm (1-based)
	PlaysTotal *prometheus.CounterVec

	// WinsTotal counts wins per arm.
	// Labels: strategy, arm (1-based)
	WinsTotal *prometheus.CounterVec

	// Regret is the cumulative regret after the latest round.
	// Labels: strategy
	Regret *prometheus.GaugeVec

	// Estimate is each arm's current estimated win probability.
	// Labels: strategy, arm (1-based)
	Estimate *prometheus.GaugeVec

	// ProbReal is each arm's true win probability.
	// Labels: strategy, arm (1-based)
	ProbReal *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		reg: reg,
		RoundsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: banditSubsystem,
				Name:      "rounds_total",
				Help:      "Total number of rounds executed",
			},
			[]string{"strategy"},
		),
		PlaysTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: banditSubsystem,
				Name:      "arm_plays_total",
				Help:      "Total number of plays by arm",
			},
			[]string{"strategy", "arm"},
		),
		WinsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: banditSubsystem,
				Name:      "arm_wins_total",
				Help:      "Total number of winning plays by arm",
			},
			[]string{"strategy", "arm"},
		),
		Regret: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: banditSubsystem,
				Name:      "regret",
				Help:      "Cumulative regret after the latest round",
			},
			[]string{"strategy"},
		),
		Estimate: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: banditSubsystem,
				Name:      "arm_estimate",
				Help:      "Estimated win probability by arm",
			},
			[]string{"strategy", "arm"},
		),
		ProbReal: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: banditSubsystem,
				Name:      "arm_probability",
				Help:      "True win probability by arm",
			},
			[]string{"strategy", "arm"},
		),
	}
}

// Registry returns the registry the metrics are registered with.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// ObserveRound implements simulation.Observer.
func (r *Recorder) ObserveRound(info simulation.RunInfo, rec simulation.Record, arms []bandit.Arm) {
	strategy := info.Strategy
	arm := armLabel(rec.Selected)

	r.RoundsTotal.WithLabelValues(strategy).Inc()
	r.PlaysTotal.WithLabelValues(strategy, arm).Inc()
	if rec.Won {
		r.WinsTotal.WithLabelValues(strategy, arm).Inc()
	}
	r.Regret.WithLabelValues(strategy).Set(rec.Regret)

	if rec.Round == 1 {
		for i, a := range arms {
			r.ProbReal.WithLabelValues(strategy, armLabel(i)).Set(a.ProbReal)
			r.Estimate.WithLabelValues(strategy, armLabel(i)).Set(a.ProbEst)
		}
		return
	}
	if rec.Selected >= 0 && rec.Selected < len(arms) {
		r.Estimate.WithLabelValues(strategy, arm).Set(arms[rec.Selected].ProbEst)
	}
}

// WriteTextfile writes the registry in the Prometheus text format to path.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

func armLabel(i int) string {
	return strconv.Itoa(i + 1)
}
