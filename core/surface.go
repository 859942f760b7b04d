package core

import (
	"fmt"
	"strings"

	"github.com/fluxfoundry/radiance-vf/geometry"
	"github.com/fluxfoundry/radiance-vf/radiance"
)

// Phase tracks where a surface sits in its lifecycle: geometry and
// material set (defined), receiver list populated (linked), view factors
// filled in (solved).
type Phase int

const (
	PhaseDefined Phase = iota
	PhaseLinked
	PhaseSolved
)

func (p Phase) String() string {
	switch p {
	case PhaseDefined:
		return "defined"
	case PhaseLinked:
		return "linked"
	case PhaseSolved:
		return "solved"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// identifierReplacer maps the characters the Radiance scene grammar
// rejects in primitive names onto underscores.
var identifierReplacer = strings.NewReplacer(
	" ", "_",
	"-", "_",
	".", "_",
	",", "_",
	";", "_",
	":", "_",
)

// SanitizeIdentifier derives a Radiance-safe identifier from a
// user-supplied name. The result must keep at least one character that
// is not an underscore, otherwise the name carries no identity.
func SanitizeIdentifier(origin string) (string, error) {
	id := identifierReplacer.Replace(origin)
	if strings.Trim(id, "_") == "" {
		return "", fmt.Errorf("%w: %q reduces to underscores only", ErrInvalidIdentifier, origin)
	}
	return id, nil
}

// RadiativeSurface is one planar surface participating in radiative
// exchange. It owns its geometry, its material split, and the ordered
// list of surfaces it exchanges energy with. The order of that list is
// load-bearing: rfluxmtx returns view factors as a flat sequence that is
// zipped back onto it.
//
// A surface is not safe for concurrent mutation; the SurfaceManager
// serializes all state-changing calls. Reads during a simulation wave
// are safe because workers only touch geometry, which is immutable
// between SetGeometry calls.
type RadiativeSurface struct {
	identifier       string
	originIdentifier string

	boundary []geometry.Vec3
	area     float64
	centroid geometry.Vec3
	normal   geometry.Vec3
	corners  []geometry.Vec3
	radCache string

	emissivity     float64
	reflectivity   float64
	transmissivity float64

	viewed      []string
	viewedIndex map[string]int
	viewFactors []float64
}

// NewSurface builds a surface from a closed boundary with fully
// reflective material defaults overridden to a pure emitter, matching
// the glow primitive the serializer emits.
func NewSurface(originIdentifier string, boundary []geometry.Vec3) (*RadiativeSurface, error) {
	return NewSurfaceWithProperties(originIdentifier, boundary, 1, 0, 0)
}

// NewSurfaceWithHoles resolves the holes into the outer boundary with a
// keyhole contour before constructing the surface.
func NewSurfaceWithHoles(originIdentifier string, boundary []geometry.Vec3, holes [][]geometry.Vec3) (*RadiativeSurface, error) {
	contoured, err := geometry.ContourWithHoles(boundary, holes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	return NewSurface(originIdentifier, contoured)
}

// NewSurfaceWithProperties builds a surface with an explicit
// emissivity/reflectivity/transmissivity split.
func NewSurfaceWithProperties(originIdentifier string, boundary []geometry.Vec3, emissivity, reflectivity, transmissivity float64) (*RadiativeSurface, error) {
	id, err := SanitizeIdentifier(originIdentifier)
	if err != nil {
		return nil, err
	}
	s := &RadiativeSurface{
		identifier:       id,
		originIdentifier: originIdentifier,
		viewedIndex:      make(map[string]int),
	}
	if err := s.SetGeometry(boundary); err != nil {
		return nil, err
	}
	if err := s.SetRadiativeProperties(emissivity, reflectivity, transmissivity); err != nil {
		return nil, err
	}
	return s, nil
}

// SetGeometry stores the boundary and recomputes every derived quantity
// in one step. On any failure the previous geometry is left untouched.
func (s *RadiativeSurface) SetGeometry(boundary []geometry.Vec3) error {
	if len(boundary) < 3 {
		return fmt.Errorf("%w: %d vertices, need at least 3", ErrInvalidGeometry, len(boundary))
	}
	area, centroid, err := geometry.AreaAndCentroid(boundary)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	normal, err := geometry.Normal(boundary)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	corners := geometry.Corners(boundary, centroid, normal)

	s.boundary = append([]geometry.Vec3(nil), boundary...)
	s.area = area
	s.centroid = centroid
	s.normal = normal
	s.corners = corners
	s.radCache = radiance.SurfaceRadString(s.identifier, s.boundary)
	return nil
}

// SetRadiativeProperties validates and stores the material split.
// Each value must lie in [0,1] and the three must sum to 1. When the
// supplied values sum to less than 1 and exactly one of them is zero,
// that one is completed to close the balance, preferring emissivity,
// then reflectivity, then transmissivity.
func (s *RadiativeSurface) SetRadiativeProperties(emissivity, reflectivity, transmissivity float64) error {
	for _, v := range []float64{emissivity, reflectivity, transmissivity} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: value %v outside [0,1]", ErrInvalidRadiativeProperties, v)
		}
	}
	const tol = 1e-9
	sum := emissivity + reflectivity + transmissivity
	switch {
	case sum > 1+tol:
		return fmt.Errorf("%w: e+r+t=%v exceeds 1", ErrInvalidRadiativeProperties, sum)
	case sum < 1-tol:
		zeroes := 0
		if emissivity == 0 {
			zeroes++
		}
		if reflectivity == 0 {
			zeroes++
		}
		if transmissivity == 0 {
			zeroes++
		}
		if zeroes != 1 {
			return fmt.Errorf("%w: e+r+t=%v below 1 and no single property to complete", ErrInvalidRadiativeProperties, sum)
		}
		missing := 1 - sum
		switch {
		case emissivity == 0:
			emissivity = missing
		case reflectivity == 0:
			reflectivity = missing
		default:
			transmissivity = missing
		}
	}
	s.emissivity = emissivity
	s.reflectivity = reflectivity
	s.transmissivity = transmissivity
	return nil
}

// AddViewedSurfaces appends receiver identifiers in order. With
// overwrite the existing list and any stored view factors are discarded
// first, so every id is new relative to the cleared state.
func (s *RadiativeSurface) AddViewedSurfaces(ids []string, overwrite bool) error {
	if overwrite {
		s.viewed = nil
		s.viewedIndex = make(map[string]int)
		s.viewFactors = nil
	}
	for _, id := range ids {
		if _, ok := s.viewedIndex[id]; ok {
			return fmt.Errorf("%w: %q already viewed by %q", ErrDuplicateViewedSurface, id, s.identifier)
		}
		s.viewedIndex[id] = len(s.viewed)
		s.viewed = append(s.viewed, id)
	}
	return nil
}

// AddViewFactors appends one batch of solved values. The batch must
// exactly fill the remaining unfilled slots of the viewed-surface list.
func (s *RadiativeSurface) AddViewFactors(values []float64) error {
	remaining := len(s.viewed) - len(s.viewFactors)
	if len(values) != remaining {
		return fmt.Errorf("%w: surface %q: got %d values, %d slots remain",
			ErrLengthMismatch, s.identifier, len(values), remaining)
	}
	s.viewFactors = append(s.viewFactors, values...)
	return nil
}

// ViewFactor returns the solved value toward the given receiver.
func (s *RadiativeSurface) ViewFactor(id string) (float64, error) {
	i, ok := s.viewedIndex[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q is not viewed by %q", ErrUnknownViewedSurface, id, s.identifier)
	}
	if i >= len(s.viewFactors) {
		return 0, fmt.Errorf("%w: %q -> %q", ErrNotYetComputed, s.identifier, id)
	}
	return s.viewFactors[i], nil
}

// setViewFactor overwrites one solved value in place. Used by the
// reciprocity correction after ingestion.
func (s *RadiativeSurface) setViewFactor(id string, value float64) error {
	i, ok := s.viewedIndex[id]
	if !ok {
		return fmt.Errorf("%w: %q is not viewed by %q", ErrUnknownViewedSurface, id, s.identifier)
	}
	if i >= len(s.viewFactors) {
		return fmt.Errorf("%w: %q -> %q", ErrNotYetComputed, s.identifier, id)
	}
	s.viewFactors[i] = value
	return nil
}

// IsFacing reports whether both surfaces present their front faces to
// each other: the centroid-to-centroid vector leaves s through its front
// half-space and arrives at other against its normal. Both projections
// are strict, so coplanar or back-to-back pairs fail.
func (s *RadiativeSurface) IsFacing(other *RadiativeSurface) bool {
	v := other.centroid.Sub(s.centroid)
	return s.normal.Dot(v) > 0 && other.normal.Dot(v) < 0
}

func (s *RadiativeSurface) Identifier() string       { return s.identifier }
func (s *RadiativeSurface) OriginIdentifier() string { return s.originIdentifier }
func (s *RadiativeSurface) Area() float64            { return s.area }
func (s *RadiativeSurface) Centroid() geometry.Vec3  { return s.centroid }
func (s *RadiativeSurface) Normal() geometry.Vec3    { return s.normal }
func (s *RadiativeSurface) Emissivity() float64      { return s.emissivity }
func (s *RadiativeSurface) Reflectivity() float64    { return s.reflectivity }
func (s *RadiativeSurface) Transmissivity() float64  { return s.transmissivity }

// RadString returns the cached Radiance scene serialization of the
// surface geometry, regenerated only by SetGeometry.
func (s *RadiativeSurface) RadString() string { return s.radCache }

// Boundary returns a copy of the contoured boundary.
func (s *RadiativeSurface) Boundary() []geometry.Vec3 {
	return append([]geometry.Vec3(nil), s.boundary...)
}

// Corners returns a copy of the extremal corner vertices.
func (s *RadiativeSurface) Corners() []geometry.Vec3 {
	return append([]geometry.Vec3(nil), s.corners...)
}

// ViewedSurfaceIDs returns the receiver identifiers in insertion order.
func (s *RadiativeSurface) ViewedSurfaceIDs() []string {
	return append([]string(nil), s.viewed...)
}

// ViewedCount returns the number of receivers linked to this surface.
func (s *RadiativeSurface) ViewedCount() int { return len(s.viewed) }

// SolvedCount returns how many view-factor slots are filled.
func (s *RadiativeSurface) SolvedCount() int { return len(s.viewFactors) }

// Phase derives the lifecycle phase from the surface state.
func (s *RadiativeSurface) Phase() Phase {
	switch {
	case len(s.viewed) == 0:
		return PhaseDefined
	case len(s.viewFactors) < len(s.viewed):
		return PhaseLinked
	default:
		return PhaseSolved
	}
}
