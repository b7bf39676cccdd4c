// Package sequence implements the symmetrical-component machinery: the
// Fortescue transform, the per-sequence fault boundary conditions, the
// balanced three-phase fault and the pre-fault phase correction.
package sequence

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// alpha is the 120° rotation operator e^(j·2π/3).
var alpha = cmplx.Exp(complex(0, 2.0*math.Pi/3.0))

// TransformMatrix returns the Fortescue matrix A mapping sequence components
// [x0, x1, x2] to phase components [xa, xb, xc].
func TransformMatrix() *mat.CDense {
	a := alpha
	a2 := a * a
	return mat.NewCDense(3, 3, []complex128{
		1, 1, 1,
		1, a2, a,
		1, a, a2,
	})
}

// InverseTransformMatrix returns A⁻¹ = (1/3)·conj(A).
func InverseTransformMatrix() *mat.CDense {
	a := alpha
	a2 := a * a
	third := complex(1.0/3.0, 0)
	return mat.NewCDense(3, 3, []complex128{
		third, third, third,
		third, third * a, third * a2,
		third, third * a2, third * a,
	})
}

// ToABC converts a sequence triple to phase quantities.
func ToABC(x012 [3]complex128) [3]complex128 {
	a := alpha
	a2 := a * a
	return [3]complex128{
		x012[0] + x012[1] + x012[2],
		x012[0] + a2*x012[1] + a*x012[2],
		x012[0] + a*x012[1] + a2*x012[2],
	}
}

// To012 converts a phase triple to sequence quantities.
func To012(xabc [3]complex128) [3]complex128 {
	a := alpha
	a2 := a * a
	third := complex(1.0/3.0, 0)
	return [3]complex128{
		third * (xabc[0] + xabc[1] + xabc[2]),
		third * (xabc[0] + a*xabc[1] + a2*xabc[2]),
		third * (xabc[0] + a2*xabc[1] + a*xabc[2]),
	}
}

// SimilarityDiag builds A·diag(d0, d1, d2)·A⁻¹, the phase-domain image of a
// diagonal sequence operator. Used for machine impedance and admittance
// blocks.
func SimilarityDiag(d0, d1, d2 complex128) *mat.CDense {
	fwd := TransformMatrix()
	inv := InverseTransformMatrix()
	d := [3]complex128{d0, d1, d2}

	// CDense carries no arithmetic, so the 3×3 product is written out.
	out := mat.NewCDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum complex128
			for k := 0; k < 3; k++ {
				sum += fwd.At(i, k) * d[k] * inv.At(k, j)
			}
			out.Set(i, j, sum)
		}
	}
	return out
}

// BalancedPhases expands a positive-sequence bus voltage vector to the
// stride-3 phase vector [Va, Vb, Vc] = [V, a²·V, a·V].
func BalancedPhases(v []complex128) []complex128 {
	a := alpha
	a2 := a * a
	out := make([]complex128, 3*len(v))
	for k, vk := range v {
		out[3*k+0] = vk
		out[3*k+1] = a2 * vk
		out[3*k+2] = a * vk
	}
	return out
}
