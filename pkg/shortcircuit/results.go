// Package shortcircuit runs post-fault snapshot studies on a network: the
// balanced positive-sequence path, the symmetrical-component path and the
// per-phase path with Norton linearization of the generators.
package shortcircuit

import "github.com/gridsolve/faultcalc/pkg/network"

// Method selects the analysis path of a study run.
type Method int

const (
	MethodBalanced Method = iota
	MethodSequence
	MethodPhase
)

func (m Method) String() string {
	switch m {
	case MethodBalanced:
		return "balanced"
	case MethodSequence:
		return "sequence"
	case MethodPhase:
		return "phase"
	}
	return "?"
}

// PathResults holds the bus and branch arrays of one sequence or one phase.
// Powers and losses are in MVA, currents and voltages in p.u.
type PathResults struct {
	Voltage []complex128

	Sf      []complex128
	St      []complex128
	If      []complex128
	It      []complex128
	Vbranch []complex128
	Losses  []complex128
	Loading []complex128
}

// Results is the immutable outcome of one fault evaluation.
type Results struct {
	Method Method
	Fault  network.FaultSpec

	BusNames    []string
	BranchNames []string

	// sequence path: 0/1/2 (the balanced path fills Seq1 only)
	Seq0, Seq1, Seq2 *PathResults
	// phase path: A/B/C
	PhaseA, PhaseB, PhaseC *PathResults

	SCPower   complex128 // short-circuit power at the faulted bus (MVA)
	SCCurrent complex128 // short-circuit current at the faulted bus (p.u.)

	// IEC 60909 c-max estimate at the faulted bus (kA), balanced path only
	MaxInitialCurrent float64

	Warnings []string
}

// deinterleave splits a stride-3 phase path into the three per-phase result
// sets.
func deinterleave(full *PathResults) (a, b, c *PathResults) {
	pick := func(x []complex128, off int) []complex128 {
		out := make([]complex128, 0, (len(x)+2)/3)
		for i := off; i < len(x); i += 3 {
			out = append(out, x[i])
		}
		return out
	}
	one := func(off int) *PathResults {
		return &PathResults{
			Voltage: pick(full.Voltage, off),
			Sf:      pick(full.Sf, off),
			St:      pick(full.St, off),
			If:      pick(full.If, off),
			It:      pick(full.It, off),
			Vbranch: pick(full.Vbranch, off),
			Losses:  pick(full.Losses, off),
			Loading: pick(full.Loading, off),
		}
	}
	return one(0), one(1), one(2)
}
