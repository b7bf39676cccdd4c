package sequence

import (
	"fmt"
	"math/cmplx"

	"github.com/gridsolve/faultcalc/pkg/matrix"
)

// PhaseCorrection computes the per-bus angle increments that make a
// pre-fault voltage vector consistent with a pure-series solve of the
// network. Build yseries without shunts; the correction is the angle of the
// solution of
//
//	Yseries[pqpv, pqpv] · ΔV = −Yseries[pqpv, vd] · V[vd]
//
// one sparse solve, no iteration. Slack buses get a zero correction. A
// singular reduced system means the network splits into islands the slack
// set does not cover; there is no recovery from that.
func PhaseCorrection(yseries *matrix.Coord, vpf []complex128, slack []int) ([]float64, error) {
	n := yseries.Rows
	if len(vpf) != n {
		return nil, fmt.Errorf("voltage vector length %d does not match system size %d", len(vpf), n)
	}
	if len(slack) == 0 {
		return nil, fmt.Errorf("phase correction requires at least one slack bus")
	}

	isSlack := make([]bool, n)
	for _, b := range slack {
		if b < 0 || b >= n {
			return nil, fmt.Errorf("slack bus %d out of range [0, %d)", b, n)
		}
		isSlack[b] = true
	}

	// map full indices to reduced (non-slack) indices
	reduced := make([]int, n)
	nr := 0
	for i := 0; i < n; i++ {
		if isSlack[i] {
			reduced[i] = -1
			continue
		}
		reduced[i] = nr
		nr++
	}
	if nr == 0 {
		return make([]float64, n), nil
	}

	sys, err := matrix.NewSystem(nr)
	if err != nil {
		return nil, err
	}
	defer sys.Destroy()

	for _, e := range yseries.Entries() {
		ri, rj := reduced[e.Row], reduced[e.Col]
		switch {
		case ri >= 0 && rj >= 0:
			if err := sys.AddComplex(ri+1, rj+1, e.Value); err != nil {
				return nil, err
			}
		case ri >= 0 && rj < 0:
			// slack column moves to the RHS
			if err := sys.AddComplexRHS(ri+1, -e.Value*vpf[e.Col]); err != nil {
				return nil, err
			}
		}
	}
	for i := 1; i <= nr; i++ {
		if err := sys.AddComplex(i, i, 0); err != nil {
			return nil, err
		}
	}

	if err := sys.Solve(); err != nil {
		return nil, fmt.Errorf("phase correction solve (network islanded from slack?): %v", err)
	}

	angles := make([]float64, n)
	for i := 0; i < n; i++ {
		if reduced[i] >= 0 {
			angles[i] = cmplx.Phase(sys.ComplexSolution(reduced[i] + 1))
		}
	}
	return angles, nil
}

// ApplyPhaseCorrection returns a new voltage vector with the angle increments
// added and the magnitudes untouched.
func ApplyPhaseCorrection(vpf []complex128, angles []float64) []complex128 {
	out := make([]complex128, len(vpf))
	for i, v := range vpf {
		out[i] = cmplx.Rect(cmplx.Abs(v), cmplx.Phase(v)+angles[i])
	}
	return out
}
