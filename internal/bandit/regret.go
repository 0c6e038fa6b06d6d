package bandit

// Regret returns the cumulative regret of the set's current state: the
// reward expected from playing the best arm on every play so far, minus the
// wins actually observed.
//
//	regret = max(ProbReal) * TotalPlays - TotalWins
//
// It is recomputed from the counters on every call rather than accumulated,
// so it cannot drift, and it is never rounded.
func Regret(s *ArmSet) float64 {
	ideal := s.MaxProbReal() * float64(s.TotalPlays())
	actual := float64(s.TotalWins())
	return ideal - actual
}
