package network

import (
	"fmt"
	"math/cmplx"

	"github.com/gridsolve/faultcalc/internal/consts"
)

// WindingConnection describes the winding arrangement of a branch. It only
// matters for the zero-sequence admittance build, where it decides which
// series terms exist, and for the ±30° winding phase shift.
type WindingConnection int

const (
	ConnGG WindingConnection = iota // grounded star - grounded star
	ConnGD                         // grounded star - delta
	ConnSG                         // star - grounded star
	ConnSS                         // star - star
	ConnSD                         // star - delta
	ConnDD                         // delta - delta
)

func (w WindingConnection) String() string {
	switch w {
	case ConnGG:
		return "GG"
	case ConnGD:
		return "GD"
	case ConnSG:
		return "SG"
	case ConnSS:
		return "SS"
	case ConnSD:
		return "SD"
	case ConnDD:
		return "DD"
	}
	return "?"
}

func ParseWindingConnection(s string) (WindingConnection, error) {
	switch s {
	case "GG", "":
		return ConnGG, nil
	case "GD":
		return ConnGD, nil
	case "SG":
		return ConnSG, nil
	case "SS":
		return ConnSS, nil
	case "SD":
		return ConnSD, nil
	case "DD":
		return ConnDD, nil
	}
	return 0, fmt.Errorf("unknown winding connection %q", s)
}

type Bus struct {
	Name  string
	Vnom  float64 // nominal voltage (kV)
	Zf    complex128
	Slack bool
}

type Branch struct {
	Name     string
	From, To int

	// positive-sequence parameters (p.u.)
	R, X, G, B float64
	// zero-sequence parameters (p.u.)
	R0, X0, G0, B0 float64
	// negative-sequence parameters (p.u.)
	R2, X2, G2, B2 float64

	TapModule    float64 // transformer tap module, 1.0 for lines
	TapAngle     float64 // tap phase shift (rad)
	VtapF, VtapT float64 // virtual taps from nominal voltage mismatch

	Rate   float64 // thermal rating (MVA)
	Conn   WindingConnection
	Active bool
}

// Machine is the static data of a generator or battery: power setpoint plus
// sequence impedances of the equivalent source.
type Machine struct {
	Name string
	Bus  int

	P, Q float64 // injected power setpoint (MW, MVAr)
	Vset float64 // voltage setpoint (p.u.)

	R0, X0 float64 // machine sequence impedances (p.u.)
	R1, X1 float64
	R2, X2 float64

	Active bool
}

// SequenceImpedance returns the machine impedance for a sequence.
func (m *Machine) SequenceImpedance(seq int) complex128 {
	switch seq {
	case 0:
		return complex(m.R0, m.X0)
	case 2:
		return complex(m.R2, m.X2)
	default:
		return complex(m.R1, m.X1)
	}
}

// Load carries the three-phase load model: star and delta constant-power,
// constant-current and constant-impedance parts. Star entries are per phase
// (a, b, c); delta entries are per phase pair (ab, bc, ca). Power and
// admittance values are per-phase MVA at nominal voltage.
type Load struct {
	Name string
	Bus  int

	SStar  [3]complex128
	SDelta [3]complex128
	IStar  [3]complex128
	IDelta [3]complex128
	YStar  [3]complex128
	YDelta [3]complex128

	Active bool
}

// TotalStarPower returns the summed three-phase constant-power star demand.
func (l *Load) TotalStarPower() complex128 {
	return l.SStar[0] + l.SStar[1] + l.SStar[2]
}

type Shunt struct {
	Name string
	Bus  int
	G, B float64 // per phase (MVA at nominal voltage)

	Active bool
}

// Snapshot is the static network data plus device parameters for one study.
// The solvers borrow it read-only; nothing in this package is mutated by a
// fault evaluation.
type Snapshot struct {
	Name  string
	Sbase float64 // base power (MVA)

	Buses      []Bus
	Branches   []Branch
	Generators []Machine
	Batteries  []Machine
	Loads      []Load
	Shunts     []Shunt
}

func (s *Snapshot) NBus() int    { return len(s.Buses) }
func (s *Snapshot) NBranch() int { return len(s.Branches) }

// CompileZf collects the per-bus fault impedance vector.
func (s *Snapshot) CompileZf() []complex128 {
	zf := make([]complex128, len(s.Buses))
	for i := range s.Buses {
		zf[i] = s.Buses[i].Zf
	}
	return zf
}

// SlackBuses returns the indices of the slack set.
func (s *Snapshot) SlackBuses() []int {
	var vd []int
	for i := range s.Buses {
		if s.Buses[i].Slack {
			vd = append(vd, i)
		}
	}
	return vd
}

// MachineYshunt aggregates the per-bus shunt admittance of generators and
// batteries for one sequence: the sum of 1/Z_seq of every active machine.
func (s *Snapshot) MachineYshunt(seq int) []complex128 {
	y := make([]complex128, len(s.Buses))
	add := func(machines []Machine) {
		for i := range machines {
			m := &machines[i]
			if !m.Active {
				continue
			}
			z := m.SequenceImpedance(seq)
			if z == 0 {
				continue
			}
			y[m.Bus] += 1.0 / z
		}
	}
	add(s.Generators)
	add(s.Batteries)
	return y
}

// StaticYshunt aggregates the per-bus static shunt admittance (shunt devices
// plus the constant-impedance star part of the loads) in p.u. The balanced
// positive-sequence equivalent uses the phase-a entry of each load.
func (s *Snapshot) StaticYshunt() []complex128 {
	y := make([]complex128, len(s.Buses))
	for i := range s.Shunts {
		sh := &s.Shunts[i]
		if !sh.Active {
			continue
		}
		y[sh.Bus] += complex(sh.G, sh.B) / complex(s.Sbase/3.0, 0)
	}
	for i := range s.Loads {
		ld := &s.Loads[i]
		if !ld.Active {
			continue
		}
		y[ld.Bus] += ld.YStar[0] / complex(s.Sbase/3.0, 0)
	}
	return y
}

// PowerInjections returns the per-bus complex power injection in p.u.:
// machine setpoints minus constant-power star loads.
func (s *Snapshot) PowerInjections() []complex128 {
	p := make([]complex128, len(s.Buses))
	for i := range s.Generators {
		if g := &s.Generators[i]; g.Active {
			p[g.Bus] += complex(g.P, g.Q)
		}
	}
	for i := range s.Batteries {
		if b := &s.Batteries[i]; b.Active {
			p[b.Bus] += complex(b.P, b.Q)
		}
	}
	for i := range s.Loads {
		if l := &s.Loads[i]; l.Active {
			p[l.Bus] -= l.TotalStarPower()
		}
	}
	for i := range p {
		p[i] /= complex(s.Sbase, 0)
	}
	return p
}

// NormalizeVoltages verifies that plain lines connect buses of the same
// nominal voltage. A mismatch is an upstream data-quality issue: it is logged
// and the "to" bus is coerced to the "from" side.
func (s *Snapshot) NormalizeVoltages(log *Logger) {
	for i := range s.Branches {
		br := &s.Branches[i]
		if !br.Active || br.TapModule != 1.0 || br.Conn != ConnGG {
			continue
		}
		vf := s.Buses[br.From].Vnom
		vt := s.Buses[br.To].Vnom
		if vf == vt {
			continue
		}
		log.Warnf("branch %s: nominal voltage mismatch (%g kV / %g kV), coercing bus %s to %g kV",
			br.Name, vf, vt, s.Buses[br.To].Name, vf)
		s.Buses[br.To].Vnom = vf
	}
}

// Validate checks structural consistency before any matrix work.
func (s *Snapshot) Validate() error {
	n := len(s.Buses)
	if n == 0 {
		return fmt.Errorf("snapshot %q has no buses", s.Name)
	}
	if s.Sbase <= 0 {
		return fmt.Errorf("snapshot %q: base power must be positive, got %g", s.Name, s.Sbase)
	}
	for i := range s.Branches {
		br := &s.Branches[i]
		if br.From < 0 || br.From >= n || br.To < 0 || br.To >= n {
			return fmt.Errorf("branch %s connects out-of-range buses (%d, %d)", br.Name, br.From, br.To)
		}
		if br.From == br.To {
			return fmt.Errorf("branch %s is a self-loop at bus %d", br.Name, br.From)
		}
	}
	for _, group := range [][]Machine{s.Generators, s.Batteries} {
		for i := range group {
			if b := group[i].Bus; b < 0 || b >= n {
				return fmt.Errorf("machine %s at out-of-range bus %d", group[i].Name, b)
			}
		}
	}
	for i := range s.Loads {
		if b := s.Loads[i].Bus; b < 0 || b >= n {
			return fmt.Errorf("load %s at out-of-range bus %d", s.Loads[i].Name, b)
		}
	}
	for i := range s.Shunts {
		if b := s.Shunts[i].Bus; b < 0 || b >= n {
			return fmt.Errorf("shunt %s at out-of-range bus %d", s.Shunts[i].Name, b)
		}
	}
	return nil
}

// MaxInitialCurrent is the IEC 60909 c-max estimate of the maximum initial
// short-circuit current at a bus, in kA. A solid fault yields +Inf, as the
// estimate only accounts for the fault impedance.
func (s *Snapshot) MaxInitialCurrent(bus int, zf complex128) float64 {
	un := s.Buses[bus].Vnom * 1e3 // V
	zk := cmplx.Abs(zf) * un * un / (s.Sbase * 1e6)
	return consts.VoltageFactor * un / consts.Sqrt3 / zk / 1e3
}
