// Package bandit holds the arm model of the testbed: the arms and their
// counters, the Bernoulli trial that is the only way to change them, and the
// regret computed from their state.
package bandit

// PriorEstimate is the estimated win probability of an arm that has never
// been played.
const PriorEstimate = 0.5

// Arm is one slot machine. ProbReal is the hidden ground truth; ProbEst is the
// observed win rate, or PriorEstimate before the first play.
//
// Arm values handed out by ArmSet are copies. The only way to change the arms
// inside a set is Play.
type Arm struct {
	Plays    int64   `json:"plays"`
	Wins     int64   `json:"wins"`
	ProbReal float64 `json:"prob_real"`
	ProbEst  float64 `json:"prob_est"`
}

// NewArm creates an unplayed arm with the given true win probability.
func NewArm(probReal float64) Arm {
	return Arm{ProbReal: probReal, ProbEst: PriorEstimate}
}

// Losses returns plays that did not win.
func (a Arm) Losses() int64 {
	return a.Plays - a.Wins
}

// check verifies the counter invariants of a single arm.
func (a Arm) check() error {
	if a.Plays < 0 || a.Wins < 0 {
		return invariantf("negative counters (plays=%d, wins=%d)", a.Plays, a.Wins)
	}
	if a.Wins > a.Plays {
		return invariantf("wins %d exceed plays %d", a.Wins, a.Plays)
	}
	if a.ProbEst < 0 || a.ProbEst > 1 {
		return invariantf("estimate %f outside [0,1]", a.ProbEst)
	}
	return nil
}
