package simulation

import (
	"github.com/nvandessel/armbench/internal/bandit"
	"github.com/nvandessel/armbench/internal/strategy"
)

// Scenario defines a complete simulation experiment for the test harness.
type Scenario struct {
	Name          string
	Probabilities []float64
	Rounds        int
	Strategy      strategy.Strategy
	Seed          uint64

	// BeforeRound, when non-nil, is called with the 1-based round number
	// before that round executes.
	BeforeRound func(round int, e *Engine)
}

// Config converts the scenario into an engine configuration.
func (s Scenario) Config() Config {
	return Config{
		Probabilities: s.Probabilities,
		Rounds:        s.Rounds,
		Strategy:      s.Strategy,
		Seed:          s.Seed,
	}
}

// RoundResult captures one round and the arm state right after it.
type RoundResult struct {
	Record
	Arms []bandit.Arm
}

// SimulationResult captures every round and the final summary.
type SimulationResult struct {
	Scenario Scenario
	Rounds   []RoundResult
	Summary  Summary
}

// Plays returns how often each arm was selected over the whole run.
func (r SimulationResult) Plays() []int64 {
	out := make([]int64, len(r.Summary.Arms))
	for i, a := range r.Summary.Arms {
		out[i] = a.Plays
	}
	return out
}
