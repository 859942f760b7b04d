package core

import "math"

// minSquareDistance guards the analytical bound against coincident
// centroids, where the closed form is singular.
const minSquareDistance = 0.01

// AnalyticalVFCoaxialParallelSquares evaluates the closed-form view
// factor between two coaxial parallel squares of the given areas at the
// given centroid distance. For arbitrarily oriented rectangles of the
// same areas and distance this is an upper bound on the true view
// factor, which makes it usable as a pruning criterion: if the bound is
// already below a threshold, the real pair cannot exceed it.
func AnalyticalVFCoaxialParallelSquares(area1, area2, distance float64) float64 {
	d := distance
	if d < minSquareDistance {
		d = minSquareDistance
	}
	w1 := math.Sqrt(area1) / d
	w2 := math.Sqrt(area2) / d

	x := w2 - w1
	y := w2 + w1
	u := math.Sqrt(x*x + 4)
	v := math.Sqrt(y*y + 4)

	p := w1*w1 + w2*w2 + 2
	p *= p
	q := (x*x + 2) * (y*y + 2)

	s := u * (x*math.Atan(x/u) - y*math.Atan(y/u))
	t := v * (x*math.Atan(x/v) - y*math.Atan(y/v))

	return (math.Log(p/q) + s - t) / (math.Pi * w1 * w1)
}

// CompliesWithMinimumVFCriterion reports whether the analytical upper
// bound between the two surfaces reaches the criterion. A criterion of
// zero accepts every pair.
func (s *RadiativeSurface) CompliesWithMinimumVFCriterion(other *RadiativeSurface, criterion float64) bool {
	if criterion <= 0 {
		return true
	}
	d := s.centroid.DistanceTo(other.centroid)
	return AnalyticalVFCoaxialParallelSquares(s.area, other.area, d) >= criterion
}
