package core

import (
	"math"
	"testing"
)

func TestAnalyticalVFUnitSquaresAtUnitDistance(t *testing.T) {
	got := AnalyticalVFCoaxialParallelSquares(1, 1, 1)
	// Catalog value for coaxial parallel unit squares one unit apart.
	if math.Abs(got-0.1998) > 5e-4 {
		t.Fatalf("VF = %v, want about 0.1998", got)
	}
}

func TestAnalyticalVFStrictlyDecreasingWithDistance(t *testing.T) {
	prev := math.Inf(1)
	for _, d := range []float64{0.5, 1, 2, 4, 8, 16} {
		vf := AnalyticalVFCoaxialParallelSquares(1, 1, d)
		if vf <= 0 || vf >= prev {
			t.Fatalf("VF(%v) = %v, not strictly decreasing from %v", d, vf, prev)
		}
		prev = vf
	}
}

func TestAnalyticalVFDegenerateDistance(t *testing.T) {
	// Coincident centroids fall back to the minimum distance instead of
	// hitting the singularity.
	at0 := AnalyticalVFCoaxialParallelSquares(1, 1, 0)
	atMin := AnalyticalVFCoaxialParallelSquares(1, 1, minSquareDistance)
	if at0 != atMin {
		t.Fatalf("VF(0) = %v, want VF(%v) = %v", at0, minSquareDistance, atMin)
	}
	if math.IsNaN(at0) || math.IsInf(at0, 0) {
		t.Fatalf("VF(0) = %v, want finite", at0)
	}
}

func TestCompliesWithMinimumVFCriterion(t *testing.T) {
	near := mustSurface(t, "near", unitSquare(0))
	far := mustSurface(t, "far", unitSquare(100))

	if !near.CompliesWithMinimumVFCriterion(far, 0) {
		t.Error("zero criterion must accept every pair")
	}
	if near.CompliesWithMinimumVFCriterion(far, 0.01) {
		t.Error("distant pair must fall below a 1% criterion")
	}

	nearby := mustSurface(t, "nearby", unitSquare(1))
	if !near.CompliesWithMinimumVFCriterion(nearby, 0.01) {
		t.Error("unit squares one unit apart clear a 1% criterion")
	}
}
