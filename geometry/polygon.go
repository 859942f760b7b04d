package geometry

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrTooFewVertices    = errors.New("polygon needs at least 3 vertices")
	ErrDegeneratePolygon = errors.New("polygon has zero area")
)

// AreaAndCentroid computes the area and the area-weighted centroid of a
// planar polygon given as an ordered boundary. The boundary does not need
// to repeat its first vertex. The shoelace formula is evaluated in the
// polygon's own plane, so keyhole contours produced by ContourWithHoles
// (whose bridge edges cancel) get the hole area subtracted correctly.
func AreaAndCentroid(boundary []Vec3) (float64, Vec3, error) {
	if len(boundary) < 3 {
		return 0, Vec3{}, fmt.Errorf("%w: got %d", ErrTooFewVertices, len(boundary))
	}

	normal, err := Normal(boundary)
	if err != nil {
		return 0, Vec3{}, err
	}

	// In-plane frame anchored at the first vertex.
	origin := boundary[0]
	var u Vec3
	for i := 1; i < len(boundary); i++ {
		if axis, ok := boundary[i].Sub(origin).Normalized(); ok {
			u = axis
			break
		}
	}
	v := normal.Cross(u)

	var signed, cx, cy float64
	px := func(p Vec3) (float64, float64) {
		rel := p.Sub(origin)
		return rel.Dot(u), rel.Dot(v)
	}
	for i := range boundary {
		x0, y0 := px(boundary[i])
		x1, y1 := px(boundary[(i+1)%len(boundary)])
		w := x0*y1 - x1*y0
		signed += w
		cx += (x0 + x1) * w
		cy += (y0 + y1) * w
	}
	signed /= 2

	area := math.Abs(signed)
	if area < 1e-12 {
		return 0, Vec3{}, ErrDegeneratePolygon
	}
	cx /= 6 * signed
	cy /= 6 * signed

	centroid := origin.Add(u.Scale(cx)).Add(v.Scale(cy))
	return area, centroid, nil
}

// Normal computes the unit normal of a planar polygon using Newell's
// method, which tolerates collinear runs and slight non-planarity.
func Normal(boundary []Vec3) (Vec3, error) {
	if len(boundary) < 3 {
		return Vec3{}, fmt.Errorf("%w: got %d", ErrTooFewVertices, len(boundary))
	}

	var n Vec3
	for i := range boundary {
		cur := boundary[i]
		next := boundary[(i+1)%len(boundary)]
		n.X += (cur.Y - next.Y) * (cur.Z + next.Z)
		n.Y += (cur.Z - next.Z) * (cur.X + next.X)
		n.Z += (cur.X - next.X) * (cur.Y + next.Y)
	}

	unit, ok := n.Normalized()
	if !ok {
		return Vec3{}, ErrDegeneratePolygon
	}
	return unit, nil
}

// Corners picks up to four boundary vertices approximating the extremal
// corners of the polygon. They are used as cheap sampling points for
// visibility heuristics, not as an exact hull.
func Corners(boundary []Vec3, centroid Vec3, normal Vec3) []Vec3 {
	if len(boundary) <= 4 {
		out := make([]Vec3, len(boundary))
		copy(out, boundary)
		return out
	}

	// In-plane axes: u points at the vertex farthest from the centroid,
	// v completes the frame.
	far := boundary[0]
	farDist := 0.0
	for _, p := range boundary {
		if d := p.DistanceTo(centroid); d > farDist {
			far, farDist = p, d
		}
	}
	u, ok := far.Sub(centroid).Normalized()
	if !ok {
		out := make([]Vec3, 0, 4)
		return append(out, boundary[:4]...)
	}
	v := normal.Cross(u)

	var minU, maxU, minV, maxV int
	for i, p := range boundary {
		rel := p.Sub(centroid)
		pu, pv := rel.Dot(u), rel.Dot(v)
		if pu < boundary[minU].Sub(centroid).Dot(u) {
			minU = i
		}
		if pu > boundary[maxU].Sub(centroid).Dot(u) {
			maxU = i
		}
		if pv < boundary[minV].Sub(centroid).Dot(v) {
			minV = i
		}
		if pv > boundary[maxV].Sub(centroid).Dot(v) {
			maxV = i
		}
	}

	seen := make(map[int]struct{}, 4)
	out := make([]Vec3, 0, 4)
	for _, idx := range []int{maxU, minU, maxV, minV} {
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, boundary[idx])
	}
	return out
}

// ContourWithHoles resolves hole loops into a single closed boundary by
// bridging each hole to the closest outer vertex (keyhole contouring).
// Holes are traversed in the opposite winding of the outer boundary so the
// signed area stays consistent.
func ContourWithHoles(boundary []Vec3, holes [][]Vec3) ([]Vec3, error) {
	if len(boundary) < 3 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewVertices, len(boundary))
	}

	outerNormal, err := Normal(boundary)
	if err != nil {
		return nil, err
	}

	contour := make([]Vec3, len(boundary))
	copy(contour, boundary)

	for _, hole := range holes {
		if len(hole) < 3 {
			return nil, fmt.Errorf("%w: hole has %d vertices", ErrTooFewVertices, len(hole))
		}

		// Flip the hole when it winds the same way as the outer boundary.
		loop := make([]Vec3, len(hole))
		copy(loop, hole)
		if holeNormal, err := Normal(loop); err == nil && holeNormal.Dot(outerNormal) > 0 {
			reverse(loop)
		}

		// Closest (outer vertex, hole vertex) pair defines the bridge.
		bi, hi := 0, 0
		best := math.Inf(1)
		for i, b := range contour {
			for j, h := range loop {
				if d := b.DistanceTo(h); d < best {
					best, bi, hi = d, i, j
				}
			}
		}

		// contour[0..bi] + loop[hi..] + loop[..hi] + loop[hi] + contour[bi..]
		merged := make([]Vec3, 0, len(contour)+len(loop)+2)
		merged = append(merged, contour[:bi+1]...)
		merged = append(merged, loop[hi:]...)
		merged = append(merged, loop[:hi+1]...)
		merged = append(merged, contour[bi:]...)
		contour = merged
	}

	return contour, nil
}

func reverse(points []Vec3) {
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
}
