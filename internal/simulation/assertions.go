package simulation

import (
	"math"
	"testing"

	"github.com/nvandessel/armbench/internal/bandit"
)

// AssertWinsWithinPlays asserts 0 <= wins <= plays for every arm after every
// round.
func AssertWinsWithinPlays(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, rr := range result.Rounds {
		for i, a := range rr.Arms {
			if a.Wins < 0 || a.Wins > a.Plays {
				t.Errorf("AssertWinsWithinPlays: round %d: arm %d has wins=%d plays=%d", rr.Round, i, a.Wins, a.Plays)
			}
		}
	}
}

// AssertEstimatesAreWinRates asserts that every played arm's estimate equals
// its win rate and every unplayed arm still holds the prior.
func AssertEstimatesAreWinRates(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, rr := range result.Rounds {
		for i, a := range rr.Arms {
			want := bandit.PriorEstimate
			if a.Plays > 0 {
				want = float64(a.Wins) / float64(a.Plays)
			}
			if math.Abs(a.ProbEst-want) > 1e-12 {
				t.Errorf("AssertEstimatesAreWinRates: round %d: arm %d estimate %.6f, want %.6f", rr.Round, i, a.ProbEst, want)
			}
		}
	}
}

// AssertRoundCount asserts that exactly the configured number of rounds ran
// and that they are numbered 1..n.
func AssertRoundCount(t *testing.T, result SimulationResult) {
	t.Helper()
	if got, want := len(result.Rounds), result.Scenario.Rounds; got != want {
		t.Errorf("AssertRoundCount: %d rounds recorded, want %d", got, want)
	}
	if got, want := result.Summary.Played, result.Scenario.Rounds; got != want {
		t.Errorf("AssertRoundCount: summary reports %d rounds, want %d", got, want)
	}
	for i, rr := range result.Rounds {
		if rr.Round != i+1 {
			t.Errorf("AssertRoundCount: record %d numbered %d", i, rr.Round)
		}
	}
}

// AssertAlwaysSelects asserts that arm is selected in every round numbered
// above afterRound.
func AssertAlwaysSelects(t *testing.T, result SimulationResult, arm, afterRound int) {
	t.Helper()
	for _, rr := range result.Rounds {
		if rr.Round <= afterRound {
			continue
		}
		if rr.Selected != arm {
			t.Errorf("AssertAlwaysSelects: round %d selected arm %d, want %d", rr.Round, rr.Selected, arm)
		}
	}
}

// AssertUniformPlays asserts that each arm received rounds/arms plays within
// a relative tolerance (e.g. 0.1 = 10%).
func AssertUniformPlays(t *testing.T, result SimulationResult, tolerance float64) {
	t.Helper()
	plays := result.Plays()
	if len(plays) == 0 {
		t.Fatal("AssertUniformPlays: no arms")
	}
	want := float64(result.Scenario.Rounds) / float64(len(plays))
	for i, p := range plays {
		if math.Abs(float64(p)-want) > tolerance*want {
			t.Errorf("AssertUniformPlays: arm %d played %d times, want %.1f ± %.0f%%", i, p, want, tolerance*100)
		}
	}
}

// AssertRegretWithin asserts that regret stays inside [min, max] in every
// round after afterRound.
func AssertRegretWithin(t *testing.T, result SimulationResult, min, max float64, afterRound int) {
	t.Helper()
	for _, rr := range result.Rounds {
		if rr.Round <= afterRound {
			continue
		}
		if rr.Regret < min || rr.Regret > max {
			t.Errorf("AssertRegretWithin: round %d regret %.4f not in [%.4f, %.4f]", rr.Round, rr.Regret, min, max)
		}
	}
}

// AssertRegretMatchesState asserts that every recorded regret equals the
// value recomputed from that round's arm state.
func AssertRegretMatchesState(t *testing.T, result SimulationResult) {
	t.Helper()
	for _, rr := range result.Rounds {
		var best float64
		var plays, wins int64
		for _, a := range rr.Arms {
			best = math.Max(best, a.ProbReal)
			plays += a.Plays
			wins += a.Wins
		}
		want := best*float64(plays) - float64(wins)
		if math.Abs(rr.Regret-want) > 1e-9 {
			t.Errorf("AssertRegretMatchesState: round %d regret %.6f, want %.6f", rr.Round, rr.Regret, want)
		}
	}
}
