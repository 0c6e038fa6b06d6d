package bandit

import "math/rand/v2"

// Play runs one Bernoulli trial on arm i and records the outcome: a uniform
// draw r in [0,1) wins when r <= ProbReal. Plays is always incremented and
// ProbEst becomes Wins/Plays. It consumes exactly one draw from rng.
//
// Play is the only mutation path for arms in a set. It returns an invariant
// error, without touching the set, if i does not name an arm.
func Play(s *ArmSet, i int, rng *rand.Rand) (bool, error) {
	if err := s.CheckIndex(i); err != nil {
		return false, err
	}

	roll := rng.Float64()
	arm := &s.arms[i]
	arm.Plays++
	won := roll <= arm.ProbReal
	if won {
		arm.Wins++
	}
	arm.ProbEst = float64(arm.Wins) / float64(arm.Plays)

	return won, nil
}
