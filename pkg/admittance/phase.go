package admittance

import (
	"fmt"

	"github.com/gridsolve/faultcalc/pkg/matrix"
	"github.com/gridsolve/faultcalc/pkg/network"
)

// BuildPhase assembles the expanded 3N×3N phase-domain admittance set from
// the positive-sequence branch parameters (balanced per-phase blocks) plus
// the constant-impedance star part of shunts and loads. Phase p of bus k
// lives at index 3k+p.
func BuildPhase(snap *network.Snapshot) (*Set, error) {
	n := snap.NBus()
	m := snap.NBranch()

	set := &Set{
		Ybus: matrix.NewCoord(3*n, 3*n),
		Yf:   matrix.NewCoord(3*m, 3*n),
		Yt:   matrix.NewCoord(3*m, 3*n),
	}

	for k := range snap.Branches {
		br := &snap.Branches[k]
		if !br.Active {
			continue
		}
		p, err := branchPrimitives(br, 1)
		if err != nil {
			return nil, fmt.Errorf("branch %s: %v", br.Name, err)
		}

		for ph := 0; ph < 3; ph++ {
			f := 3*br.From + ph
			t := 3*br.To + ph
			row := 3*k + ph

			set.Yf.Add(row, f, p.yff)
			set.Yf.Add(row, t, p.yft)
			set.Yt.Add(row, f, p.ytf)
			set.Yt.Add(row, t, p.ytt)

			set.Ybus.Add(f, f, p.yff)
			set.Ybus.Add(f, t, p.yft)
			set.Ybus.Add(t, f, p.ytf)
			set.Ybus.Add(t, t, p.ytt)
		}
	}

	// constant-impedance star shunts, per-phase MVA on the Sbase/3 base
	base := complex(snap.Sbase/3.0, 0)
	for i := range snap.Shunts {
		sh := &snap.Shunts[i]
		if !sh.Active {
			continue
		}
		for ph := 0; ph < 3; ph++ {
			set.Ybus.Add(3*sh.Bus+ph, 3*sh.Bus+ph, complex(sh.G, sh.B)/base)
		}
	}
	for i := range snap.Loads {
		ld := &snap.Loads[i]
		if !ld.Active {
			continue
		}
		for ph := 0; ph < 3; ph++ {
			set.Ybus.Add(3*ld.Bus+ph, 3*ld.Bus+ph, ld.YStar[ph]/base)
		}
	}

	return set, nil
}

// ExpandIndices3 maps per-branch (or per-bus) indices to their three
// stride-3 phase indices.
func ExpandIndices3(idx []int) []int {
	out := make([]int, 3*len(idx))
	for k, v := range idx {
		out[3*k+0] = 3*v + 0
		out[3*k+1] = 3*v + 1
		out[3*k+2] = 3*v + 2
	}
	return out
}

// Expand3 triples a scalar array phase-wise.
func Expand3(x []float64) []float64 {
	out := make([]float64, 3*len(x))
	for k, v := range x {
		out[3*k+0] = v
		out[3*k+1] = v
		out[3*k+2] = v
	}
	return out
}
