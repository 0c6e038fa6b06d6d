package strategy

import "math"

// DecayedEpsilon calculates the exploration rate after t plays.
// Returns epsilon0 * e^(-alpha * t); with alpha > 0 the rate strictly
// decreases toward 0 as t grows, and with alpha == 0 it stays at epsilon0.
func DecayedEpsilon(epsilon0, alpha float64, t int64) float64 {
	if epsilon0 == 0 || t <= 0 {
		return epsilon0
	}
	return epsilon0 * math.Exp(-alpha*float64(t))
}
