package admittance

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/gridsolve/faultcalc/pkg/matrix"
	"github.com/gridsolve/faultcalc/pkg/network"
	"github.com/gridsolve/faultcalc/pkg/sequence"
)

// MachineBlock is the phase-domain image of one machine: the 3×3 admittance
// block stamped into the network and its impedance inverse, both obtained by
// Fortescue similarity from the machine's sequence impedances.
type MachineBlock struct {
	Bus  int
	Yabc *mat.CDense
	Zabc *mat.CDense
}

// GeneratorBlocks builds the per-machine 3×3 admittance blocks (generators
// and batteries) and the 3N×3N matrix that accumulates them at the machine
// buses. The inverse block comes for free: diag(Z) and diag(1/Z) share the
// same similarity transform.
func GeneratorBlocks(snap *network.Snapshot) (*matrix.Coord, []MachineBlock, error) {
	n := snap.NBus()
	ygen := matrix.NewCoord(3*n, 3*n)
	blocks := make([]MachineBlock, 0, len(snap.Generators)+len(snap.Batteries))

	for _, group := range [][]network.Machine{snap.Generators, snap.Batteries} {
		for i := range group {
			g := &group[i]
			if !g.Active {
				continue
			}
			z0 := g.SequenceImpedance(0)
			z1 := g.SequenceImpedance(1)
			z2 := g.SequenceImpedance(2)
			if z0 == 0 || z1 == 0 || z2 == 0 {
				return nil, nil, fmt.Errorf("machine %s: zero sequence impedance, cannot build phase block", g.Name)
			}

			zabc := sequence.SimilarityDiag(z0, z1, z2)
			yabc := sequence.SimilarityDiag(1.0/z0, 1.0/z1, 1.0/z2)

			for r := 0; r < 3; r++ {
				for c := 0; c < 3; c++ {
					ygen.Add(3*g.Bus+r, 3*g.Bus+c, yabc.At(r, c))
				}
			}
			blocks = append(blocks, MachineBlock{Bus: g.Bus, Yabc: yabc, Zabc: zabc})
		}
	}

	return ygen, blocks, nil
}
