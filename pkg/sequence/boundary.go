package sequence

import (
	"fmt"
	"math/cmplx"

	"github.com/gridsolve/faultcalc/internal/consts"
	"github.com/gridsolve/faultcalc/pkg/matrix"
	"github.com/gridsolve/faultcalc/pkg/network"
)

// theveninColumn solves Y·z = e_bus, yielding the bus column of the sequence
// impedance matrix. z[bus] is the Thevenin impedance seen from the bus.
func theveninColumn(y *matrix.Coord, bus int) ([]complex128, error) {
	rhs := make([]complex128, y.Rows)
	rhs[bus] = 1
	z, err := y.Solve(rhs)
	if err != nil {
		return nil, fmt.Errorf("thevenin column at bus %d: %v", bus, err)
	}
	return z, nil
}

// ShortCircuitUnbalanced applies the symmetrical-component boundary
// conditions for a fault at one bus and returns the three sequence voltage
// vectors plus the short-circuit power (MVA) and current (p.u.) at the bus.
//
// The sequence fault currents follow the classical network interconnections:
// series for LG, positive/negative opposition for LL, parallel zero/negative
// for LLG and the positive network alone for the balanced faults.
func ShortCircuitUnbalanced(y0, y1, y2 *matrix.Coord, bus int, vpf []complex128,
	zf complex128, ftype network.FaultType, sbase float64,
) (v0, v1, v2 []complex128, scPower, scCurrent complex128, err error) {

	vpre := vpf[bus]
	n := len(vpf)

	z1col, err := theveninColumn(y1, bus)
	if err != nil {
		return nil, nil, nil, 0, 0, fmt.Errorf("positive sequence, fault %s at bus %d: %v", ftype, bus, err)
	}
	zth1 := z1col[bus]

	// The zero and negative networks only participate in unbalanced ground
	// or phase-to-phase faults; skip their solves otherwise so an ungrounded
	// zero-sequence network cannot poison a balanced or LL study.
	var z0col, z2col []complex128
	var zth0, zth2 complex128
	needZero := ftype == network.FaultLG || ftype == network.FaultLLG
	needNeg := needZero || ftype == network.FaultLL
	if needZero {
		z0col, err = theveninColumn(y0, bus)
		if err != nil {
			return nil, nil, nil, 0, 0, fmt.Errorf("zero sequence, fault %s at bus %d: %v", ftype, bus, err)
		}
		zth0 = z0col[bus]
	}
	if needNeg {
		z2col, err = theveninColumn(y2, bus)
		if err != nil {
			return nil, nil, nil, 0, 0, fmt.Errorf("negative sequence, fault %s at bus %d: %v", ftype, bus, err)
		}
		zth2 = z2col[bus]
	}

	var i0, i1, i2 complex128
	switch ftype {
	case network.FaultLG:
		i1 = vpre / (zth0 + zth1 + zth2 + 3*zf + consts.FaultEps)
		i0 = i1
		i2 = i1

	case network.FaultLL:
		i1 = vpre / (zth1 + zth2 + zf + consts.FaultEps)
		i2 = -i1

	case network.FaultLLG:
		zg := zth0 + 3*zf
		i1 = vpre / (zth1 + zth2*zg/(zth2+zg) + consts.FaultEps)
		i2 = -i1 * zg / (zth0 + zth2 + 3*zf)
		i0 = -i1 * zth2 / (zth0 + zth2 + 3*zf)

	case network.FaultLLL, network.FaultPH3:
		i1 = vpre / (zth1 + zf + consts.FaultEps)

	default:
		return nil, nil, nil, 0, 0, fmt.Errorf("fault at bus %d: unsupported fault type %s", bus, ftype)
	}

	v0 = make([]complex128, n)
	v1 = make([]complex128, n)
	v2 = make([]complex128, n)
	for k := 0; k < n; k++ {
		v1[k] = vpf[k] - z1col[k]*i1
		if z0col != nil {
			v0[k] = -z0col[k] * i0
		}
		if z2col != nil {
			v2[k] = -z2col[k] * i2
		}
	}

	// Report the worst faulted phase current at the bus. Balanced faults
	// carry equal current on all three phases, so phase a is reported;
	// picking the largest would select a rotation-dependent phase.
	iabc := ToABC([3]complex128{i0, i1, i2})
	scCurrent = iabc[0]
	if ftype != network.FaultPH3 && ftype != network.FaultLLL {
		for _, ip := range iabc[1:] {
			if cmplx.Abs(ip) > cmplx.Abs(scCurrent) {
				scCurrent = ip
			}
		}
	}
	scPower = complex(sbase, 0) * vpre * cmplx.Conj(scCurrent)

	return v0, v1, v2, scPower, scCurrent, nil
}
