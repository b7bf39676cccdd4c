package shortcircuit

import (
	"fmt"
	"math/cmplx"

	"github.com/gridsolve/faultcalc/pkg/admittance"
)

// nortonInjections converts each machine into its Norton current source at
// the pre-fault operating point. The internal EMF is recovered from the
// terminal voltage and the machine impedance, then pushed through the machine
// admittance: I = conj(S/U), E = U + Zabc·I, In = Yabc·E. The linearization
// is evaluated once at the pre-fault point, never iterated.
func nortonInjections(blocks []admittance.MachineBlock, v3, spf3, yload []complex128) ([]complex128, error) {
	inj := make([]complex128, len(v3))

	// machines sharing a bus split the bus injection evenly
	share := make(map[int]complex128)
	for _, blk := range blocks {
		share[blk.Bus]++
	}

	for _, blk := range blocks {
		base := 3 * blk.Bus

		var u, cur [3]complex128
		for p := 0; p < 3; p++ {
			u[p] = v3[base+p]
			if u[p] == 0 {
				return nil, fmt.Errorf("machine at bus %d: zero pre-fault terminal voltage on phase %d", blk.Bus, p)
			}
			// Net power the machine must deliver: the bus setpoint minus
			// what the linearized loads already absorb at this voltage.
			s := (spf3[base+p] - u[p]*cmplx.Conj(yload[base+p]*u[p])) / share[blk.Bus]
			cur[p] = cmplx.Conj(s / u[p])
		}

		var e [3]complex128
		for p := 0; p < 3; p++ {
			e[p] = u[p]
			for q := 0; q < 3; q++ {
				e[p] += blk.Zabc.At(p, q) * cur[q]
			}
		}
		for p := 0; p < 3; p++ {
			var in complex128
			for q := 0; q < 3; q++ {
				in += blk.Yabc.At(p, q) * e[q]
			}
			inj[base+p] += in
		}
	}
	return inj, nil
}
