package geometry

import (
	"math"

	"github.com/dhconnelly/rtreego"
)

// Triangle is one face of an obstruction mesh.
type Triangle struct {
	A, B, C Vec3
}

// Bounds implements rtreego.Spatial. Flat axis-aligned triangles get a
// tiny padding so the bounding box keeps a positive extent in every
// dimension.
func (t Triangle) Bounds() rtreego.Rect {
	const pad = 1e-9
	lo := Vec3{
		X: math.Min(t.A.X, math.Min(t.B.X, t.C.X)),
		Y: math.Min(t.A.Y, math.Min(t.B.Y, t.C.Y)),
		Z: math.Min(t.A.Z, math.Min(t.B.Z, t.C.Z)),
	}
	hi := Vec3{
		X: math.Max(t.A.X, math.Max(t.B.X, t.C.X)),
		Y: math.Max(t.A.Y, math.Max(t.B.Y, t.C.Y)),
		Z: math.Max(t.A.Z, math.Max(t.B.Z, t.C.Z)),
	}
	lengths := []float64{
		math.Max(hi.X-lo.X, pad),
		math.Max(hi.Y-lo.Y, pad),
		math.Max(hi.Z-lo.Z, pad),
	}
	rect, err := rtreego.NewRect(rtreego.Point{lo.X, lo.Y, lo.Z}, lengths)
	if err != nil {
		// Cannot happen: lengths are strictly positive.
		panic(err)
	}
	return rect
}

// Mesh is an obstruction (context) mesh with an R-tree over triangle
// bounding boxes so segment queries only test nearby faces.
type Mesh struct {
	tree *rtreego.Rtree
	size int
}

// NewMesh builds an empty obstruction mesh.
func NewMesh() *Mesh {
	return &Mesh{tree: rtreego.NewTree(3, 8, 32)}
}

// AddTriangle inserts one face into the mesh.
func (m *Mesh) AddTriangle(t Triangle) {
	m.tree.Insert(t)
	m.size++
}

// AddPolygon fan-triangulates a planar boundary and inserts its faces.
func (m *Mesh) AddPolygon(boundary []Vec3) error {
	if len(boundary) < 3 {
		return ErrTooFewVertices
	}
	for i := 1; i < len(boundary)-1; i++ {
		m.AddTriangle(Triangle{A: boundary[0], B: boundary[i], C: boundary[i+1]})
	}
	return nil
}

// Size returns the number of faces in the mesh.
func (m *Mesh) Size() int {
	if m == nil {
		return 0
	}
	return m.size
}

// SegmentBlocked reports whether the straight segment from p to q hits
// any face of the mesh. Callers are expected to nudge the endpoints off
// the emitting and receiving faces before querying.
func (m *Mesh) SegmentBlocked(p, q Vec3) bool {
	if m == nil || m.size == 0 {
		return false
	}

	lo := rtreego.Point{
		math.Min(p.X, q.X), math.Min(p.Y, q.Y), math.Min(p.Z, q.Z),
	}
	const pad = 1e-9
	lengths := []float64{
		math.Max(math.Abs(p.X-q.X), pad),
		math.Max(math.Abs(p.Y-q.Y), pad),
		math.Max(math.Abs(p.Z-q.Z), pad),
	}
	rect, err := rtreego.NewRect(lo, lengths)
	if err != nil {
		return false
	}

	for _, candidate := range m.tree.SearchIntersect(rect) {
		tri, ok := candidate.(Triangle)
		if !ok {
			continue
		}
		if segmentHitsTriangle(p, q, tri) {
			return true
		}
	}
	return false
}

// segmentHitsTriangle is the Moller-Trumbore intersection test restricted
// to the parameter range of the segment.
func segmentHitsTriangle(p, q Vec3, tri Triangle) bool {
	const eps = 1e-12

	dir := q.Sub(p)
	e1 := tri.B.Sub(tri.A)
	e2 := tri.C.Sub(tri.A)

	h := dir.Cross(e2)
	a := e1.Dot(h)
	if math.Abs(a) < eps {
		return false // segment parallel to the triangle plane
	}

	f := 1 / a
	s := p.Sub(tri.A)
	u := f * s.Dot(h)
	if u < 0 || u > 1 {
		return false
	}

	qv := s.Cross(e1)
	v := f * dir.Dot(qv)
	if v < 0 || u+v > 1 {
		return false
	}

	t := f * e2.Dot(qv)
	return t > eps && t < 1-eps
}
