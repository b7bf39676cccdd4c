// Package admittance assembles the sparse admittance representations of a
// network: per-sequence bus/branch matrices, the series-only variant used by
// the pre-fault phase corrector, and the expanded 3N×3N phase-domain system.
package admittance

import (
	"fmt"
	"math/cmplx"

	"github.com/gridsolve/faultcalc/internal/consts"
	"github.com/gridsolve/faultcalc/pkg/matrix"
	"github.com/gridsolve/faultcalc/pkg/network"
)

// Set groups the admittance matrices of one network representation.
// Ybus maps bus voltages to bus current injections; Yf and Yt map bus
// voltages to the branch currents at the from and to side.
type Set struct {
	Ybus *matrix.Coord
	Yf   *matrix.Coord
	Yt   *matrix.Coord
}

// r30 is the +30° rotation a grounded-star/delta winding introduces.
var r30 = cmplx.Exp(complex(0, 0.5235987755982988)) // pi/6

type primitives struct {
	yff, yft, ytf, ytt complex128
}

// branchPrimitives computes the four admittance primitives of one branch for
// a sequence, honoring the winding connection. The zero sequence keeps the
// shunt term always and gates the series terms on the connection; the
// positive and negative sequences add the ±30° winding phase.
func branchPrimitives(br *network.Branch, seq int) (primitives, error) {
	var r, x, g, b float64
	switch seq {
	case 0:
		r, x, g, b = br.R0, br.X0, br.G0, br.B0
	case 1:
		r, x, g, b = br.R, br.X, br.G, br.B
	case 2:
		r, x, g, b = br.R2, br.X2, br.G2, br.B2
	default:
		return primitives{}, fmt.Errorf("unsupported sequence %d", seq)
	}

	ys := 1.0 / complex(r, x+consts.SeriesEps)
	ysh2 := complex(g, b) / 2.0

	m := complex(br.TapModule, 0)
	vf := complex(br.VtapF, 0)
	vt := complex(br.VtapT, 0)
	shift := cmplx.Exp(complex(0, br.TapAngle))

	var p primitives
	switch seq {
	case 0:
		var ysf, yst, ysft complex128
		switch br.Conn {
		case network.ConnGG:
			ysf, yst, ysft = ys, ys, ys
		case network.ConnGD:
			ysf = ys
		}
		p.yff = (ysf + ysh2) / (m * m * vf * vf)
		p.yft = -ysft / (m * cmplx.Conj(shift) * vf * vt)
		p.ytf = -ysft / (m * shift * vt * vf)
		p.ytt = (yst + ysh2) / (vt * vt)

	case 1:
		psh := complex(1, 0)
		if br.Conn == network.ConnGD || br.Conn == network.ConnSD {
			psh = r30
		}
		p.yff = (ys + ysh2) / (m * m * vf * vf)
		p.yft = -ys / (m * cmplx.Conj(shift) * vf * vt) * psh
		p.ytf = -ys / (m * shift * vt * vf) * cmplx.Conj(psh)
		p.ytt = (ys + ysh2) / (vt * vt)

	case 2:
		psh := complex(1, 0)
		if br.Conn == network.ConnGD || br.Conn == network.ConnSD {
			psh = r30
		}
		p.yff = (ys + ysh2) / (m * m * vf * vf)
		p.yft = -ys / (m * shift * vf * vt) * cmplx.Conj(psh)
		p.ytf = -ys / (m * cmplx.Conj(shift) * vt * vf) * psh
		p.ytt = (ys + ysh2) / (vt * vt)
	}
	return p, nil
}

// Build assembles the admittance set of one sequence. shunt is the aggregate
// per-bus shunt admittance for that sequence (machines plus static shunts),
// already in p.u. Pure function of its inputs.
func Build(snap *network.Snapshot, shunt []complex128, seq int) (*Set, error) {
	n := snap.NBus()
	m := snap.NBranch()
	if len(shunt) != n {
		return nil, fmt.Errorf("shunt vector length %d does not match %d buses", len(shunt), n)
	}

	set := &Set{
		Ybus: matrix.NewCoord(n, n),
		Yf:   matrix.NewCoord(m, n),
		Yt:   matrix.NewCoord(m, n),
	}

	for k := range snap.Branches {
		br := &snap.Branches[k]
		if !br.Active {
			continue
		}
		p, err := branchPrimitives(br, seq)
		if err != nil {
			return nil, fmt.Errorf("branch %s: %v", br.Name, err)
		}

		f, t := br.From, br.To
		set.Yf.Add(k, f, p.yff)
		set.Yf.Add(k, t, p.yft)
		set.Yt.Add(k, f, p.ytf)
		set.Yt.Add(k, t, p.ytt)

		// Ybus = Cf'·Yf + Ct'·Yt
		set.Ybus.Add(f, f, p.yff)
		set.Ybus.Add(f, t, p.yft)
		set.Ybus.Add(t, f, p.ytf)
		set.Ybus.Add(t, t, p.ytt)
	}

	if err := set.Ybus.AddDiag(shunt); err != nil {
		return nil, err
	}
	return set, nil
}

// BuildSeries assembles the positive-sequence series-only admittance set:
// branch conductance/susceptance and every bus shunt forced to zero. This is
// the network the pre-fault phase corrector solves.
func BuildSeries(snap *network.Snapshot) (*Set, error) {
	stripped := *snap
	stripped.Branches = make([]network.Branch, len(snap.Branches))
	copy(stripped.Branches, snap.Branches)
	for i := range stripped.Branches {
		stripped.Branches[i].G = 0
		stripped.Branches[i].B = 0
	}
	return Build(&stripped, make([]complex128, snap.NBus()), 1)
}
