package bandit

import (
	"fmt"
	"math"
)

// ArmSet is a fixed-length, ordered collection of arms. An arm's index is its
// permanent identity; arms are never added, removed, or reordered.
type ArmSet struct {
	arms []Arm
}

// NewArmSet creates one unplayed arm per true probability, in order.
// It fails if probs is empty or any probability lies outside [0,1].
func NewArmSet(probs []float64) (*ArmSet, error) {
	if len(probs) == 0 {
		return nil, NewConfigError("probabilities", "at least one arm is required")
	}
	arms := make([]Arm, len(probs))
	for i, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return nil, NewConfigError(fmt.Sprintf("probabilities[%d]", i), "must be within [0,1], got %v", p)
		}
		arms[i] = NewArm(p)
	}
	return &ArmSet{arms: arms}, nil
}

// Len returns the number of arms.
func (s *ArmSet) Len() int {
	return len(s.arms)
}

// At returns a copy of the arm at index i. It panics if i is out of range,
// like a slice index.
func (s *ArmSet) At(i int) Arm {
	return s.arms[i]
}

// Arms returns a copy of every arm in index order.
func (s *ArmSet) Arms() []Arm {
	out := make([]Arm, len(s.arms))
	copy(out, s.arms)
	return out
}

// Estimates returns every arm's current ProbEst in index order.
func (s *ArmSet) Estimates() []float64 {
	out := make([]float64, len(s.arms))
	for i, a := range s.arms {
		out[i] = a.ProbEst
	}
	return out
}

// TotalPlays sums plays across all arms.
func (s *ArmSet) TotalPlays() int64 {
	var n int64
	for _, a := range s.arms {
		n += a.Plays
	}
	return n
}

// TotalWins sums wins across all arms.
func (s *ArmSet) TotalWins() int64 {
	var n int64
	for _, a := range s.arms {
		n += a.Wins
	}
	return n
}

// BestReal returns the index of the arm with the highest true probability.
// The first occurrence wins ties.
func (s *ArmSet) BestReal() int {
	best := 0
	for i := 1; i < len(s.arms); i++ {
		if s.arms[i].ProbReal > s.arms[best].ProbReal {
			best = i
		}
	}
	return best
}

// WorstReal returns the index of the arm with the lowest true probability.
// The first occurrence wins ties.
func (s *ArmSet) WorstReal() int {
	worst := 0
	for i := 1; i < len(s.arms); i++ {
		if s.arms[i].ProbReal < s.arms[worst].ProbReal {
			worst = i
		}
	}
	return worst
}

// BestEstimate returns the index of the arm with the highest ProbEst.
// The first occurrence wins ties.
func (s *ArmSet) BestEstimate() int {
	best := 0
	for i := 1; i < len(s.arms); i++ {
		if s.arms[i].ProbEst > s.arms[best].ProbEst {
			best = i
		}
	}
	return best
}

// MaxProbReal is the true win probability of the best arm.
func (s *ArmSet) MaxProbReal() float64 {
	return s.arms[s.BestReal()].ProbReal
}

// Check verifies the invariants of every arm.
func (s *ArmSet) Check() error {
	for i, a := range s.arms {
		if err := a.check(); err != nil {
			return fmt.Errorf("arm %d: %w", i, err)
		}
	}
	return nil
}

// CheckIndex reports an invariant violation if i does not name an arm.
func (s *ArmSet) CheckIndex(i int) error {
	if i < 0 || i >= len(s.arms) {
		return invariantf("arm index %d out of range [0,%d)", i, len(s.arms))
	}
	return nil
}
