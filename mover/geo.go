package mover

import "math"

// metersPerDegreeLat is the meridional length of one degree of latitude.
const metersPerDegreeLat = 111120.0

// microDeg converts between degrees and the fixed-point micro-degree
// encoding element positions travel in.
const microDeg = 1e6

// longToLatRatio is the length of one degree of longitude relative to
// one degree of latitude at the given latitude. Displacements divide by
// it to correct for meridian convergence.
func longToLatRatio(latDeg float64) float64 {
	return math.Cos(latDeg * math.Pi / 180)
}
