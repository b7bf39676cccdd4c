package network

import "fmt"

// FaultType is the kind of short circuit applied at a bus.
type FaultType int

const (
	FaultPH3 FaultType = iota // three-phase-to-ground (solid LLLG)
	FaultLG                   // single line-to-ground
	FaultLL                   // line-to-line
	FaultLLG                  // double line-to-ground
	FaultLLL                  // three-phase, ungrounded
)

func (f FaultType) String() string {
	switch f {
	case FaultPH3:
		return "3x"
	case FaultLG:
		return "LG"
	case FaultLL:
		return "LL"
	case FaultLLG:
		return "LLG"
	case FaultLLL:
		return "LLL"
	}
	return "?"
}

func ParseFaultType(s string) (FaultType, error) {
	switch s {
	case "3x", "ph3", "PH3", "LLLG":
		return FaultPH3, nil
	case "LG", "lg":
		return FaultLG, nil
	case "LL", "ll":
		return FaultLL, nil
	case "LLG", "llg":
		return FaultLLG, nil
	case "LLL", "lll":
		return FaultLLL, nil
	}
	return 0, fmt.Errorf("unknown fault type %q", s)
}

// PhaseSelection picks the faulted phases for the phase-domain path. The
// sequence path derives its boundary condition from the fault type alone.
type PhaseSelection int

const (
	PhaseA PhaseSelection = iota
	PhaseB
	PhaseC
	PhaseAB
	PhaseBC
	PhaseCA
	PhaseABC
)

func (p PhaseSelection) String() string {
	switch p {
	case PhaseA:
		return "a"
	case PhaseB:
		return "b"
	case PhaseC:
		return "c"
	case PhaseAB:
		return "ab"
	case PhaseBC:
		return "bc"
	case PhaseCA:
		return "ca"
	case PhaseABC:
		return "abc"
	}
	return "?"
}

func ParsePhaseSelection(s string) (PhaseSelection, error) {
	switch s {
	case "a", "A":
		return PhaseA, nil
	case "b", "B":
		return PhaseB, nil
	case "c", "C":
		return PhaseC, nil
	case "ab", "AB":
		return PhaseAB, nil
	case "bc", "BC":
		return PhaseBC, nil
	case "ca", "CA":
		return PhaseCA, nil
	case "abc", "ABC":
		return PhaseABC, nil
	}
	return 0, fmt.Errorf("unknown phase selection %q", s)
}

// FaultSpec fully describes one short-circuit query.
type FaultSpec struct {
	Bus    int
	Type   FaultType
	Phases PhaseSelection
	Zf     complex128 // fault impedance (p.u.)
}

// compatiblePhases lists the valid phase selections per fault type.
var compatiblePhases = map[FaultType][]PhaseSelection{
	FaultPH3: {PhaseABC},
	FaultLG:  {PhaseA, PhaseB, PhaseC},
	FaultLL:  {PhaseAB, PhaseBC, PhaseCA},
	FaultLLG: {PhaseAB, PhaseBC, PhaseCA},
	FaultLLL: {PhaseABC},
}

// Validate checks the spec against the bus count. All configuration errors
// are reported here, before any matrix is assembled.
func (f FaultSpec) Validate(nbus int) error {
	if f.Bus < 0 || f.Bus >= nbus {
		return fmt.Errorf("fault bus %d out of range [0, %d)", f.Bus, nbus)
	}
	if real(f.Zf) < 0 {
		return fmt.Errorf("fault at bus %d: negative fault resistance %g", f.Bus, real(f.Zf))
	}
	valid, ok := compatiblePhases[f.Type]
	if !ok {
		return fmt.Errorf("fault at bus %d: unknown fault type %d", f.Bus, int(f.Type))
	}
	for _, p := range valid {
		if p == f.Phases {
			return nil
		}
	}
	return fmt.Errorf("fault at bus %d: phase selection %s is not valid for fault type %s",
		f.Bus, f.Phases, f.Type)
}
