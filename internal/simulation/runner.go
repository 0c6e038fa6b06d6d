package simulation

import (
	"context"
	"testing"

	"github.com/nvandessel/armbench/internal/bandit"
)

// Runner orchestrates scenario runs against the real Engine and collects
// everything the Assert helpers need.
type Runner struct {
	t    *testing.T
	opts []Option
}

// NewRunner creates a scenario runner. Extra engine options (loggers,
// observers) are applied to every run.
func NewRunner(t *testing.T, opts ...Option) *Runner {
	t.Helper()
	return &Runner{t: t, opts: opts}
}

// Run executes the scenario to completion and returns the collected results.
// Any engine error fails the test immediately.
func (r *Runner) Run(scenario Scenario) SimulationResult {
	r.t.Helper()

	rec := &recorder{}
	opts := append([]Option{WithObserver(rec)}, r.opts...)
	e, err := NewEngine(scenario.Config(), opts...)
	if err != nil {
		r.t.Fatalf("scenario %s: NewEngine: %v", scenario.Name, err)
	}

	ctx := context.Background()
	if scenario.BeforeRound == nil {
		sum, err := e.Run(ctx, nil)
		if err != nil {
			r.t.Fatalf("scenario %s: Run: %v", scenario.Name, err)
		}
		return SimulationResult{Scenario: scenario, Rounds: rec.rounds, Summary: sum}
	}

	for !e.Done() {
		scenario.BeforeRound(e.Round()+1, e)
		if _, err := e.Step(); err != nil {
			r.t.Fatalf("scenario %s: round %d: %v", scenario.Name, e.Round()+1, err)
		}
	}
	return SimulationResult{Scenario: scenario, Rounds: rec.rounds, Summary: e.Summary()}
}

// recorder is an Observer that keeps every round.
type recorder struct {
	rounds []RoundResult
}

func (r *recorder) ObserveRound(_ RunInfo, rec Record, arms []bandit.Arm) {
	r.rounds = append(r.rounds, RoundResult{Record: rec, Arms: arms})
}
