package mover

import "math"

// maxBoundAttempts caps the rejection loop in boundedPair. If every
// attempt violates the angle bound, the last draw is used as-is.
const maxBoundAttempts = 10

// normalPair draws a rotationally symmetric standard-normal pair via the
// Box-Muller transform: one uniform drives the angle, the other the
// magnitude. The magnitude uniform stays off the (0,1) endpoints so the
// log is finite.
func normalPair(src Source) (cosTerm, sinTerm float64) {
	angle := 2 * math.Pi * src.Uniform(0, 1)
	mag := math.Sqrt(-2 * math.Log(src.Uniform(0.001, 0.999)))
	return mag * math.Cos(angle), mag * math.Sin(angle)
}

// boundedPair draws pairs until the implied direction perturbation fits
// within maxAngle degrees, giving up after maxBoundAttempts and keeping
// the final draw. maxSpeed and sigma2 belonged to a speed bound that is
// retired; only the angle bound is enforced.
func boundedPair(src Source, maxSpeed, maxAngle, sigma2, sigmaTheta float64) (cosTerm, sinTerm float64) {
	for i := 0; i < maxBoundAttempts; i++ {
		cosTerm, sinTerm = normalPair(src)
		if math.Abs(sigmaTheta*sinTerm) <= maxAngle {
			return cosTerm, sinTerm
		}
	}
	return cosTerm, sinTerm
}
