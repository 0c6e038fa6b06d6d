// Package simulation runs a multi-armed bandit experiment round by round.
//
// An Engine owns the arm set, the strategy, and a seeded random stream. Each
// round it snapshots the arm estimates, asks the strategy for an arm, plays
// that arm, recomputes cumulative regret, and emits a Record to a Sink.
// Runs are deterministic for a given seed.
//
// The package also carries a small scenario harness for property tests: a
// Runner executes a Scenario against the real Engine and keeps every record
// and every post-round arm state for the Assert helpers.
//
// Usage:
//
//	func TestOracleRegret(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:          "oracle",
//	        Probabilities: []float64{0.1, 0.9, 0.1},
//	        Rounds:        1000,
//	        Strategy:      strategy.Oracle{},
//	        Seed:          42,
//	    })
//	    simulation.AssertAlwaysSelects(t, result, 1, 0)
//	}
package simulation
