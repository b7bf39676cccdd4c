// Package fault maps a fault specification to the admittance perturbation
// that models the short circuit. The physics lives in a declarative table of
// local 3×3 entries; embedding and scaling happen separately so the table
// can be tested on its own.
package fault

import (
	"fmt"

	"github.com/gridsolve/faultcalc/internal/consts"
	"github.com/gridsolve/faultcalc/pkg/matrix"
	"github.com/gridsolve/faultcalc/pkg/network"
)

// Entry is one non-zero of the local fault block. Row and Col index phases
// (0=a, 1=b, 2=c) and Coeff multiplies the fault conductance g = 1/(Zf+eps).
type Entry struct {
	Row, Col int
	Coeff    complex128
}

func diag(phases ...int) []Entry {
	var out []Entry
	for _, p := range phases {
		out = append(out, Entry{p, p, 1})
	}
	return out
}

func pair(p, q int) []Entry {
	return []Entry{{p, p, 1}, {p, q, -1}, {q, p, -1}, {q, q, 1}}
}

// table keys on (fault type, phase selection). Every block is symmetric.
var table = map[network.FaultType]map[network.PhaseSelection][]Entry{
	network.FaultLG: {
		network.PhaseA: diag(0),
		network.PhaseB: diag(1),
		network.PhaseC: diag(2),
	},
	network.FaultLL: {
		network.PhaseAB: pair(0, 1),
		network.PhaseBC: pair(1, 2),
		network.PhaseCA: pair(2, 0),
	},
	network.FaultLLG: {
		network.PhaseAB: diag(0, 1),
		network.PhaseBC: diag(1, 2),
		network.PhaseCA: diag(2, 0),
	},
	// delta-connected short between all three phases
	network.FaultLLL: {
		network.PhaseABC: {
			{0, 0, 2}, {0, 1, -1}, {0, 2, -1},
			{1, 0, -1}, {1, 1, 2}, {1, 2, -1},
			{2, 0, -1}, {2, 1, -1}, {2, 2, 2},
		},
	},
	// solid three-phase-to-ground
	network.FaultPH3: {
		network.PhaseABC: diag(0, 1, 2),
	},
}

// Table returns the local block entries for a fault type and phase
// selection. Incompatible combinations are configuration errors.
func Table(ftype network.FaultType, phases network.PhaseSelection) ([]Entry, error) {
	byPhase, ok := table[ftype]
	if !ok {
		return nil, fmt.Errorf("unknown fault type %s", ftype)
	}
	entries, ok := byPhase[phases]
	if !ok {
		return nil, fmt.Errorf("phase selection %s is not valid for fault type %s", phases, ftype)
	}
	return entries, nil
}

// BuildBlock embeds the fault block of a spec into a 3N×3N matrix, scaling
// the table entries by g = 1/(Zf+eps). Built fresh per fault evaluation.
func BuildBlock(spec network.FaultSpec, nbus int) (*matrix.Coord, error) {
	if err := spec.Validate(nbus); err != nil {
		return nil, err
	}
	entries, err := Table(spec.Type, spec.Phases)
	if err != nil {
		return nil, err
	}

	g := 1.0 / (spec.Zf + consts.FaultEps)
	block := matrix.NewCoord(3*nbus, 3*nbus)
	for _, e := range entries {
		block.Add(3*spec.Bus+e.Row, 3*spec.Bus+e.Col, e.Coeff*g)
	}
	return block, nil
}
