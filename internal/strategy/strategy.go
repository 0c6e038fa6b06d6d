// Package strategy implements the arm-selection policies of the testbed.
//
// Strategy is a closed set: every variant is a small struct carrying only its
// own parameters, and each one decides through its own Select method. A
// selector only reads the arm set; the caller applies the trial through the
// returned index.
//
// Randomness comes exclusively from the *rand.Rand passed to Select, drawn in
// a fixed order: the explore/exploit draw first (epsilon variants), then any
// draws that pick or score arms.
package strategy

import (
	"fmt"
	"math/rand/v2"

	"github.com/nvandessel/armbench/internal/bandit"
)

// Strategy chooses one arm index per round.
type Strategy interface {
	// Name is the canonical name, as accepted by Parse.
	Name() string

	// Select returns an index in [0, arms.Len()). arms must not be empty.
	Select(arms *bandit.ArmSet, rng *rand.Rand) int

	// String describes the strategy and its parameters for reports.
	String() string

	sealed()
}

// Oracle always plays the arm with the highest true probability. It needs
// the hidden ground truth, so it only serves as a best-case baseline.
type Oracle struct{}

func (Oracle) Name() string   { return NameOracle }
func (Oracle) String() string { return "Oracle" }
func (Oracle) sealed()        {}

// Select returns the first arm with the maximum ProbReal.
func (Oracle) Select(arms *bandit.ArmSet, _ *rand.Rand) int {
	return arms.BestReal()
}

// EpsilonGreedy explores a uniformly random arm with probability Epsilon and
// otherwise exploits the arm with the best estimate.
type EpsilonGreedy struct {
	Epsilon float64
}

func (EpsilonGreedy) Name() string     { return NameEpsilonGreedy }
func (s EpsilonGreedy) String() string { return fmt.Sprintf("Epsilon Greedy, e = %v", s.Epsilon) }
func (EpsilonGreedy) sealed()          {}

// Select draws r in [0,1); r <= Epsilon explores, anything else exploits.
// The draw is consumed even when Epsilon is 0.
func (s EpsilonGreedy) Select(arms *bandit.ArmSet, rng *rand.Rand) int {
	return greedy(arms, rng, s.Epsilon)
}

// EpsilonDecay is EpsilonGreedy with an exploration rate that shrinks with
// the total number of plays made so far.
type EpsilonDecay struct {
	Epsilon float64 // ε₀, the rate before any play
	Alpha   float64 // decay constant, >= 0
}

func (EpsilonDecay) Name() string { return NameEpsilonDecay }
func (s EpsilonDecay) String() string {
	return fmt.Sprintf("Epsilon Decay, e = %v, a = %v", s.Epsilon, s.Alpha)
}
func (EpsilonDecay) sealed() {}

// EffectiveEpsilon is the exploration rate for the next round given the
// plays already made on arms.
func (s EpsilonDecay) EffectiveEpsilon(arms *bandit.ArmSet) float64 {
	return DecayedEpsilon(s.Epsilon, s.Alpha, arms.TotalPlays())
}

// Select applies EpsilonGreedy with the decayed rate.
func (s EpsilonDecay) Select(arms *bandit.ArmSet, rng *rand.Rand) int {
	return greedy(arms, rng, s.EffectiveEpsilon(arms))
}

// Thompson samples each arm's Beta(wins+1, losses+1) posterior and plays the
// arm with the largest sample.
type Thompson struct{}

func (Thompson) Name() string   { return NameThompson }
func (Thompson) String() string { return "Thompson Sampling" }
func (Thompson) sealed()        {}

// Select samples arms in index order. A later sample only replaces the
// running maximum when strictly greater.
func (Thompson) Select(arms *bandit.ArmSet, rng *rand.Rand) int {
	best := 0
	bestTheta := -1.0
	for i := range arms.Len() {
		a := arms.At(i)
		theta := BetaSample(rng, float64(a.Wins)+1, float64(a.Losses())+1)
		if theta > bestTheta {
			best = i
			bestTheta = theta
		}
	}
	return best
}

// NaiveRandom plays a uniformly random arm every round.
type NaiveRandom struct{}

func (NaiveRandom) Name() string   { return NameNaiveRandom }
func (NaiveRandom) String() string { return "Naive Random" }
func (NaiveRandom) sealed()        {}

func (NaiveRandom) Select(arms *bandit.ArmSet, rng *rand.Rand) int {
	return rng.IntN(arms.Len())
}

// ConstantFirst always plays arm 0.
type ConstantFirst struct{}

func (ConstantFirst) Name() string                              { return NameConstantFirst }
func (ConstantFirst) String() string                            { return "Constant First" }
func (ConstantFirst) sealed()                                   {}
func (ConstantFirst) Select(_ *bandit.ArmSet, _ *rand.Rand) int { return 0 }

// AdversarialWorst always plays the arm with the lowest true probability,
// bounding regret from above. Like Oracle it reads the ground truth.
type AdversarialWorst struct{}

func (AdversarialWorst) Name() string   { return NameAdversarialWorst }
func (AdversarialWorst) String() string { return "Adversarial Worst" }
func (AdversarialWorst) sealed()        {}

// Select returns the first arm with the minimum ProbReal.
func (AdversarialWorst) Select(arms *bandit.ArmSet, _ *rand.Rand) int {
	return arms.WorstReal()
}

// greedy is the shared epsilon-greedy decision.
func greedy(arms *bandit.ArmSet, rng *rand.Rand, epsilon float64) int {
	if rng.Float64() <= epsilon {
		return rng.IntN(arms.Len())
	}
	return arms.BestEstimate()
}
