package shortcircuit

import (
	"fmt"
	"math/cmplx"

	"github.com/gridsolve/faultcalc/internal/consts"
	"github.com/gridsolve/faultcalc/pkg/network"
)

// linearizeLoads converts the nonlinear load models into one per-phase
// admittance vector at the pre-fault operating point: star constant-power,
// delta constant-power/impedance and constant-current parts combined.
// v is the 3N phase voltage vector; the result is on the Sbase/3 base.
func linearizeLoads(snap *network.Snapshot, v []complex128) ([]complex128, error) {
	n3 := 3 * snap.NBus()
	if len(v) != n3 {
		return nil, fmt.Errorf("phase voltage length %d does not match %d", len(v), n3)
	}

	yStar, err := starPowerAdmittance(snap, v)
	if err != nil {
		return nil, err
	}
	yDelta, err := deltaPowerAdmittance(snap, v)
	if err != nil {
		return nil, err
	}
	yCurrent, err := currentLoadAdmittance(snap, v)
	if err != nil {
		return nil, err
	}

	base := complex(snap.Sbase/3.0, 0)
	y := make([]complex128, n3)
	for i := range y {
		y[i] = (yStar[i] + yDelta[i] + yCurrent[i]) / base
	}
	return y, nil
}

// starPowerAdmittance linearizes star-connected constant-power loads:
// Y = conj(S)/|V|² with S negative for consumption.
func starPowerAdmittance(snap *network.Snapshot, v []complex128) ([]complex128, error) {
	s := make([]complex128, len(v))
	for i := range snap.Loads {
		ld := &snap.Loads[i]
		if !ld.Active {
			continue
		}
		for ph := 0; ph < 3; ph++ {
			s[3*ld.Bus+ph] -= ld.SStar[ph]
		}
	}

	y := make([]complex128, len(v))
	for i := range s {
		if s[i] == 0 {
			continue
		}
		vm2 := real(v[i])*real(v[i]) + imag(v[i])*imag(v[i])
		if vm2 < consts.FaultEps {
			return nil, fmt.Errorf("cannot linearize power load at collapsed pre-fault voltage (index %d)", i)
		}
		y[i] = cmplx.Conj(s[i]) / complex(vm2, 0)
	}
	return y, nil
}

// deltaPowerAdmittance linearizes delta-connected constant-power and
// constant-impedance loads into equivalent star injections at the pre-fault
// point, then into a diagonal admittance.
func deltaPowerAdmittance(snap *network.Snapshot, v []complex128) ([]complex128, error) {
	s := make([]complex128, len(v))

	for i := range snap.Loads {
		ld := &snap.Loads[i]
		if !ld.Active {
			continue
		}
		a := 3*ld.Bus + 0
		b := 3*ld.Bus + 1
		c := 3*ld.Bus + 2

		type leg struct {
			p, q int
			s    complex128
			y    complex128
		}
		legs := []leg{
			{a, b, ld.SDelta[0], ld.YDelta[0]},
			{b, c, ld.SDelta[1], ld.YDelta[1]},
			{c, a, ld.SDelta[2], ld.YDelta[2]},
		}
		for _, lg := range legs {
			if lg.s == 0 && lg.y == 0 {
				continue
			}
			dv := v[lg.p] - v[lg.q]
			if dv == 0 {
				return nil, fmt.Errorf("load %s: identical phase voltages, cannot linearize delta leg", ld.Name)
			}
			s[lg.p] -= v[lg.p] * lg.s / dv
			s[lg.q] -= v[lg.q] * lg.s / (-dv)

			s[lg.p] -= v[lg.p] * cmplx.Conj(dv*lg.y/3.0)
			s[lg.q] -= v[lg.q] * cmplx.Conj(-dv*lg.y/3.0)
		}
	}

	y := make([]complex128, len(v))
	for i := range s {
		if s[i] == 0 {
			continue
		}
		vm2 := real(v[i])*real(v[i]) + imag(v[i])*imag(v[i])
		if vm2 < consts.FaultEps {
			return nil, fmt.Errorf("cannot linearize delta load at collapsed pre-fault voltage (index %d)", i)
		}
		y[i] = cmplx.Conj(s[i]) / complex(vm2, 0)
	}
	return y, nil
}

// currentLoadAdmittance linearizes constant-current loads. Star currents
// draw at the local voltage angle; delta currents at the phase-pair angle
// scaled by 1/√3.
func currentLoadAdmittance(snap *network.Snapshot, v []complex128) ([]complex128, error) {
	cur := make([]complex128, len(v))

	for i := range snap.Loads {
		ld := &snap.Loads[i]
		if !ld.Active {
			continue
		}
		a := 3*ld.Bus + 0
		b := 3*ld.Bus + 1
		c := 3*ld.Bus + 2

		for ph, idx := range [3]int{a, b, c} {
			if ld.IStar[ph] == 0 {
				continue
			}
			angle := cmplx.Rect(1, cmplx.Phase(v[idx]))
			cur[idx] -= cmplx.Conj(ld.IStar[ph]) * angle
		}

		pairs := [3][2]int{{a, b}, {b, c}, {c, a}}
		for ph, pq := range pairs {
			if ld.IDelta[ph] == 0 {
				continue
			}
			angle := cmplx.Rect(1, cmplx.Phase(v[pq[0]]-v[pq[1]]))
			term := cmplx.Conj(ld.IDelta[ph]) / complex(consts.Sqrt3, 0) * angle
			cur[pq[0]] -= term
			cur[pq[1]] += term
		}
	}

	y := make([]complex128, len(v))
	for i := range cur {
		if cur[i] == 0 {
			continue
		}
		if v[i] == 0 {
			return nil, fmt.Errorf("cannot linearize current load at zero pre-fault voltage (index %d)", i)
		}
		y[i] = cur[i] / v[i]
	}
	return y, nil
}
