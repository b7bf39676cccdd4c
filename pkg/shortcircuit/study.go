package shortcircuit

import (
	"fmt"
	"math/cmplx"

	"github.com/gridsolve/faultcalc/pkg/admittance"
	"github.com/gridsolve/faultcalc/pkg/fault"
	"github.com/gridsolve/faultcalc/pkg/network"
	"github.com/gridsolve/faultcalc/pkg/sequence"
)

// Study is one validated snapshot plus its pre-fault operating point. The
// snapshot and the voltage vector are never mutated by a run, so the same
// Study can evaluate any number of faults.
type Study struct {
	snap *network.Snapshot
	v    []complex128 // pre-fault positive-sequence voltage, p.u.
	s    []complex128 // per-bus power injection, p.u.
	log  *network.Logger
}

// FlatStart builds a pre-fault voltage vector from the machine setpoints:
// the setpoint magnitude where a machine regulates a bus, 1.0 p.u. elsewhere,
// all at zero angle.
func FlatStart(snap *network.Snapshot) []complex128 {
	v := make([]complex128, snap.NBus())
	for i := range v {
		v[i] = 1.0
	}
	set := func(machines []network.Machine) {
		for i := range machines {
			if m := &machines[i]; m.Active && m.Vset > 0 {
				v[m.Bus] = complex(m.Vset, 0)
			}
		}
	}
	set(snap.Generators)
	set(snap.Batteries)
	return v
}

// New validates the snapshot, coerces recoverable data-quality issues and
// captures the pre-fault voltage. vpf holds one positive-sequence phasor per
// bus in p.u.
func New(snap *network.Snapshot, vpf []complex128) (*Study, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	if len(vpf) != snap.NBus() {
		return nil, fmt.Errorf("pre-fault voltage length %d does not match %d buses", len(vpf), snap.NBus())
	}

	log := &network.Logger{}
	snap.NormalizeVoltages(log)

	v := make([]complex128, len(vpf))
	copy(v, vpf)

	return &Study{
		snap: snap,
		v:    v,
		s:    snap.PowerInjections(),
		log:  log,
	}, nil
}

// Warnings reports the model-consistency issues collected so far.
func (st *Study) Warnings() []string { return st.log.Warnings() }

// Run evaluates one fault with the selected analysis path. A zero fault
// impedance falls back to the impedance declared on the faulted bus itself.
func (st *Study) Run(spec network.FaultSpec, method Method) (*Results, error) {
	if spec.Zf == 0 && spec.Bus >= 0 && spec.Bus < st.snap.NBus() {
		spec.Zf = st.snap.CompileZf()[spec.Bus]
	}
	switch method {
	case MethodBalanced:
		return st.RunBalanced(spec)
	case MethodSequence:
		return st.RunSequence(spec)
	case MethodPhase:
		return st.RunPhase(spec)
	}
	return nil, fmt.Errorf("unknown analysis method %d", int(method))
}

// RunBalanced evaluates a three-phase fault on the positive-sequence
// network. Unbalanced fault types need the sequence or phase path.
func (st *Study) RunBalanced(spec network.FaultSpec) (*Results, error) {
	if err := spec.Validate(st.snap.NBus()); err != nil {
		return nil, err
	}
	if spec.Type != network.FaultPH3 && spec.Type != network.FaultLLL {
		return nil, fmt.Errorf("balanced path cannot evaluate a %s fault", spec.Type)
	}

	shunt := st.snap.StaticYshunt()
	for i, y := range st.snap.MachineYshunt(1) {
		shunt[i] += y
	}
	set, err := admittance.Build(st.snap, shunt, 1)
	if err != nil {
		return nil, err
	}

	v, scPower, scCurrent, err := sequence.ShortCircuit3P(set.Ybus, spec.Bus, st.v, spec.Zf, st.snap.Sbase)
	if err != nil {
		return nil, err
	}

	f, t := st.branchEnds()
	pr, err := postProcess(set, v, f, t, st.branchRates(), st.snap.Sbase)
	if err != nil {
		return nil, err
	}

	res := st.newResults(MethodBalanced, spec)
	res.Seq1 = pr
	res.SCPower = scPower
	res.SCCurrent = scCurrent
	res.MaxInitialCurrent = st.snap.MaxInitialCurrent(spec.Bus, spec.Zf)
	return res, nil
}

// RunSequence evaluates the fault with symmetrical components: three
// sequence networks, the slack-anchored phase correction of the pre-fault
// voltage, the boundary equations of the fault type, then the shared branch
// post-processing per sequence.
func (st *Study) RunSequence(spec network.FaultSpec) (*Results, error) {
	if err := spec.Validate(st.snap.NBus()); err != nil {
		return nil, err
	}

	set0, err := admittance.Build(st.snap, st.snap.MachineYshunt(0), 0)
	if err != nil {
		return nil, err
	}
	shunt1 := st.snap.StaticYshunt()
	for i, y := range st.snap.MachineYshunt(1) {
		shunt1[i] += y
	}
	set1, err := admittance.Build(st.snap, shunt1, 1)
	if err != nil {
		return nil, err
	}
	set2, err := admittance.Build(st.snap, st.snap.MachineYshunt(2), 2)
	if err != nil {
		return nil, err
	}

	series, err := admittance.BuildSeries(st.snap)
	if err != nil {
		return nil, err
	}
	angles, err := sequence.PhaseCorrection(series.Ybus, st.v, st.snap.SlackBuses())
	if err != nil {
		return nil, err
	}
	vcorr := sequence.ApplyPhaseCorrection(st.v, angles)

	v0, v1, v2, scPower, scCurrent, err := sequence.ShortCircuitUnbalanced(
		set0.Ybus, set1.Ybus, set2.Ybus, spec.Bus, vcorr, spec.Zf, spec.Type, st.snap.Sbase)
	if err != nil {
		return nil, err
	}

	f, t := st.branchEnds()
	rates := st.branchRates()

	res := st.newResults(MethodSequence, spec)
	if res.Seq0, err = postProcess(set0, v0, f, t, rates, st.snap.Sbase); err != nil {
		return nil, err
	}
	if res.Seq1, err = postProcess(set1, v1, f, t, rates, st.snap.Sbase); err != nil {
		return nil, err
	}
	if res.Seq2, err = postProcess(set2, v2, f, t, rates, st.snap.Sbase); err != nil {
		return nil, err
	}
	res.SCPower = scPower
	res.SCCurrent = scCurrent
	res.MaxInitialCurrent = st.snap.MaxInitialCurrent(spec.Bus, spec.Zf)
	return res, nil
}

// RunPhase evaluates the fault directly in phase coordinates: the 3N bus
// admittance matrix, load and machine linearizations at the pre-fault point,
// the fault admittance block, one sparse solve, then per-phase
// post-processing.
func (st *Study) RunPhase(spec network.FaultSpec) (*Results, error) {
	n := st.snap.NBus()
	if err := spec.Validate(n); err != nil {
		return nil, err
	}

	set3, err := admittance.BuildPhase(st.snap)
	if err != nil {
		return nil, err
	}
	ygen, blocks, err := admittance.GeneratorBlocks(st.snap)
	if err != nil {
		return nil, err
	}
	yfault, err := fault.BuildBlock(spec, n)
	if err != nil {
		return nil, err
	}

	v3 := sequence.BalancedPhases(st.v)
	yload, err := linearizeLoads(st.snap, v3)
	if err != nil {
		return nil, err
	}

	spf3 := make([]complex128, 3*n)
	for i := 0; i < n; i++ {
		for p := 0; p < 3; p++ {
			spf3[3*i+p] = st.s[i]
		}
	}
	inorton, err := nortonInjections(blocks, v3, spf3, yload)
	if err != nil {
		return nil, err
	}

	ylinear := set3.Ybus.Copy()
	negLoad := make([]complex128, len(yload))
	for i, y := range yload {
		negLoad[i] = -y
	}
	if err := ylinear.AddDiag(negLoad); err != nil {
		return nil, err
	}
	if err := ylinear.AddMatrix(yfault); err != nil {
		return nil, err
	}
	if err := ylinear.AddMatrix(ygen); err != nil {
		return nil, err
	}

	usc, err := ylinear.Solve(inorton)
	if err != nil {
		return nil, fmt.Errorf("phase fault solve: %v", err)
	}

	f, t := st.branchEnds()
	full, err := postProcess(set3, usc,
		admittance.ExpandIndices3(f), admittance.ExpandIndices3(t),
		admittance.Expand3(st.branchRates()), st.snap.Sbase)
	if err != nil {
		return nil, err
	}

	res := st.newResults(MethodPhase, spec)
	res.PhaseA, res.PhaseB, res.PhaseC = deinterleave(full)

	ifault, err := yfault.MulVec(usc)
	if err != nil {
		return nil, err
	}
	// Power is referenced to the pre-fault phase voltages; balanced faults
	// report the phase-a current since all three magnitudes coincide.
	balanced := spec.Type == network.FaultPH3 || spec.Type == network.FaultLLL
	base := 3 * spec.Bus
	var scPower complex128
	scCurrent := ifault[base]
	for p := 0; p < 3; p++ {
		i := base + p
		scPower += complex(st.snap.Sbase/3.0, 0) * v3[i] * cmplx.Conj(ifault[i])
		if !balanced && cmplx.Abs(ifault[i]) > cmplx.Abs(scCurrent) {
			scCurrent = ifault[i]
		}
	}
	res.SCPower = scPower
	res.SCCurrent = scCurrent
	res.MaxInitialCurrent = st.snap.MaxInitialCurrent(spec.Bus, spec.Zf)
	return res, nil
}

func (st *Study) newResults(method Method, spec network.FaultSpec) *Results {
	busNames := make([]string, st.snap.NBus())
	for i := range st.snap.Buses {
		busNames[i] = st.snap.Buses[i].Name
	}
	branchNames := make([]string, st.snap.NBranch())
	for i := range st.snap.Branches {
		branchNames[i] = st.snap.Branches[i].Name
	}
	return &Results{
		Method:      method,
		Fault:       spec,
		BusNames:    busNames,
		BranchNames: branchNames,
		Warnings:    st.log.Warnings(),
	}
}

func (st *Study) branchEnds() (f, t []int) {
	f = make([]int, st.snap.NBranch())
	t = make([]int, st.snap.NBranch())
	for i := range st.snap.Branches {
		f[i] = st.snap.Branches[i].From
		t[i] = st.snap.Branches[i].To
	}
	return f, t
}

func (st *Study) branchRates() []float64 {
	rates := make([]float64, st.snap.NBranch())
	for i := range st.snap.Branches {
		rates[i] = st.snap.Branches[i].Rate
	}
	return rates
}
