package core

import (
	"fmt"

	"github.com/fluxfoundry/radiance-vf/geometry"
)

// DefaultSegmentOffset nudges traced segments away from their endpoints
// so a surface's own face is not mistaken for an obstruction.
const DefaultSegmentOffset = 0.05

// VisibilityOptions tunes the pair-pruning pipeline. The zero value runs
// the facing test only.
type VisibilityOptions struct {
	// MinViewFactor prunes pairs whose analytical upper-bound view
	// factor falls below it. Zero disables the criterion; values outside
	// [0,1] are rejected.
	MinViewFactor float64

	// RayTracing enables the obstruction test against a context mesh.
	RayTracing bool

	// AllCorners traces from the emitter's corners in addition to its
	// centroid. Receiver corners are always targeted. Corner sampling is
	// a density knob, not a correctness requirement: a single blocked
	// segment marks the pair obstructed even when other paths are open.
	AllCorners bool

	// Offset is the endpoint nudge applied to traced segments. Zero
	// selects DefaultSegmentOffset.
	Offset float64
}

// IsVisible decides whether the pair (s, other) is worth simulating.
// The tests run cheapest first: mutual facing, then the analytical
// minimum-view-factor bound, then ray obstruction against mesh.
func (s *RadiativeSurface) IsVisible(other *RadiativeSurface, mesh *geometry.Mesh, opts VisibilityOptions) (bool, error) {
	if opts.MinViewFactor < 0 || opts.MinViewFactor > 1 {
		return false, fmt.Errorf("%w: %v", ErrInvalidCriterion, opts.MinViewFactor)
	}
	if !s.IsFacing(other) {
		return false, nil
	}
	if !s.CompliesWithMinimumVFCriterion(other, opts.MinViewFactor) {
		return false, nil
	}
	if !opts.RayTracing {
		return true, nil
	}

	offset := opts.Offset
	if offset == 0 {
		offset = DefaultSegmentOffset
	}
	starts := []geometry.Vec3{s.centroid}
	if opts.AllCorners {
		starts = append(starts, s.corners...)
	}
	ends := append([]geometry.Vec3{other.centroid}, other.corners...)

	for _, a := range starts {
		for _, b := range ends {
			if segmentObstructed(mesh, a, b, offset) {
				return false, nil
			}
		}
	}
	return true, nil
}

func segmentObstructed(mesh *geometry.Mesh, a, b geometry.Vec3, offset float64) bool {
	dir := b.Sub(a)
	length := dir.Norm()
	if length <= 2*offset {
		return false
	}
	unit := dir.Scale(1 / length)
	start := a.Add(unit.Scale(offset))
	end := b.Sub(unit.Scale(offset))
	return mesh.SegmentBlocked(start, end)
}
