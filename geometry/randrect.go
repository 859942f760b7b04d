package geometry

import "math/rand"

// RandomRectangleOptions controls RandomRectangles. Sizes bound the edge
// lengths of the generated rectangles; the maximum centroid distance is
// MaxDistanceFactor * MaxSize. With ParallelCoaxialSquares the reference
// becomes a unit square and every generated rectangle a coaxial parallel
// square, which is the configuration the analytical view-factor bound is
// exact for.
type RandomRectangleOptions struct {
	Count                  int
	MinSize                float64
	MaxSize                float64
	MaxDistanceFactor      float64
	ParallelCoaxialSquares bool
}

// RandomRectangles generates a reference rectangle in the XY plane (normal
// +Z) and Count random rectangles positioned in the upper half-space, each
// oriented so that it faces the reference. Used by demos, benchmarks and
// tests; not part of the simulation pipeline itself.
func RandomRectangles(opts RandomRectangleOptions, rng *rand.Rand) ([]Vec3, [][]Vec3) {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	if opts.Count < 1 {
		opts.Count = 1
	}
	if opts.MinSize <= 0 {
		opts.MinSize = 0.0001
	}
	if opts.MaxSize < opts.MinSize {
		opts.MaxSize = opts.MinSize
	}
	if opts.MaxDistanceFactor <= 0 {
		opts.MaxDistanceFactor = 100
	}

	width := 1.0
	if !opts.ParallelCoaxialSquares {
		width = uniform(rng, opts.MinSize, opts.MaxSize)
	}
	ref := []Vec3{
		{X: 1, Y: 0, Z: 0},
		{X: 1, Y: width, Z: 0},
		{X: 0, Y: width, Z: 0},
		{X: 0, Y: 0, Z: 0},
	}
	refCentroid := Vec3{X: 0.5, Y: width / 2, Z: 0}
	refNormal := Vec3{Z: 1}

	maxDistance := opts.MaxDistanceFactor * opts.MaxSize
	out := make([][]Vec3, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		out = append(out, randomFacingRectangle(opts, rng, refCentroid, refNormal, maxDistance))
	}
	return ref, out
}

func randomFacingRectangle(opts RandomRectangleOptions, rng *rand.Rand, refCentroid, refNormal Vec3, maxDistance float64) []Vec3 {
	var centroid, normal, u, v Vec3
	var w, l float64

	if opts.ParallelCoaxialSquares {
		// Coaxial square at a random positive height, facing down.
		centroid = refCentroid.Add(Vec3{Z: uniform(rng, 1e-6, 1) * maxDistance})
		normal = Vec3{Z: -1}
		u, v = Vec3{Y: 1}, Vec3{X: 1}
		w = uniform(rng, opts.MinSize, opts.MaxSize)
		l = w
	} else {
		centroid = refCentroid.Add(randomUpperHalfOffset(rng, maxDistance))
		normal = randomFacingNormal(rng, refCentroid, refNormal, centroid)
		u, v = orthonormalBasis(normal)
		w = uniform(rng, opts.MinSize, opts.MaxSize)
		l = uniform(rng, opts.MinSize, opts.MaxSize)
	}

	a := centroid.Add(u.Scale(w / 2)).Sub(v.Scale(l / 2))
	b := a.Add(v.Scale(l))
	c := b.Sub(u.Scale(w))
	d := c.Sub(v.Scale(l))
	return []Vec3{a, b, c, d}
}

// randomUpperHalfOffset draws a random direction with positive Z and a
// random length up to maxDistance.
func randomUpperHalfOffset(rng *rand.Rand, maxDistance float64) Vec3 {
	for {
		dir := Vec3{
			X: rng.Float64()*2 - 1,
			Y: rng.Float64()*2 - 1,
			Z: rng.Float64(),
		}
		unit, ok := dir.Normalized()
		if !ok || unit.Z <= 0 {
			continue
		}
		return unit.Scale(uniform(rng, 1e-6, 1) * maxDistance)
	}
}

// randomFacingNormal draws a random unit normal for a surface at pos and
// flips it if needed so the two surfaces face each other.
func randomFacingNormal(rng *rand.Rand, refCentroid, refNormal, pos Vec3) Vec3 {
	for {
		n, ok := Vec3{
			X: rng.Float64()*2 - 1,
			Y: rng.Float64()*2 - 1,
			Z: rng.Float64()*2 - 1,
		}.Normalized()
		if !ok {
			continue
		}
		sep := pos.Sub(refCentroid)
		if refNormal.Dot(sep) > 0 && n.Dot(sep) < 0 {
			return n
		}
		if refNormal.Dot(sep) > 0 && n.Scale(-1).Dot(sep) < 0 {
			return n.Scale(-1)
		}
	}
}

// orthonormalBasis returns two unit vectors spanning the plane orthogonal
// to n.
func orthonormalBasis(n Vec3) (Vec3, Vec3) {
	seed := Vec3{X: 1}
	if n.X > 0.9 || n.X < -0.9 {
		seed = Vec3{Y: 1}
	}
	u, _ := n.Cross(seed).Normalized()
	return u, n.Cross(u)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
