package shortcircuit

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridsolve/faultcalc/pkg/network"
)

// one machine feeding a load over a single line, no charging susceptance so
// the thevenin impedances can be checked by hand
func testSystem() *network.Snapshot {
	return &network.Snapshot{
		Name:  "test system",
		Sbase: 100,
		Buses: []network.Bus{
			{Name: "b1", Vnom: 132, Slack: true},
			{Name: "b2", Vnom: 132},
		},
		Branches: []network.Branch{
			{
				Name: "l12", From: 0, To: 1,
				R: 0.01, X: 0.1,
				R0: 0.03, X0: 0.3,
				R2: 0.01, X2: 0.1,
				TapModule: 1, VtapF: 1, VtapT: 1,
				Conn: network.ConnGG, Rate: 50, Active: true,
			},
		},
		Generators: []network.Machine{
			{
				Name: "g1", Bus: 0, P: 10, Q: 2, Vset: 1.0,
				R1: 0.002, X1: 0.1, R0: 0, X0: 0.05, R2: 0.002, X2: 0.1,
				Active: true,
			},
		},
		Loads: []network.Load{
			{Name: "d2", Bus: 1, SStar: [3]complex128{3 + 1i, 3 + 1i, 3 + 1i}, Active: true},
		},
	}
}

func newStudy(t *testing.T, snap *network.Snapshot) *Study {
	t.Helper()
	st, err := New(snap, FlatStart(snap))
	require.NoError(t, err)
	return st
}

func TestFlatStart(t *testing.T) {
	snap := testSystem()
	snap.Generators[0].Vset = 1.02

	v := FlatStart(snap)
	assert.Equal(t, complex(1.02, 0), v[0])
	assert.Equal(t, complex(1.0, 0), v[1])
}

func TestNewRejectsBadInput(t *testing.T) {
	snap := testSystem()
	_, err := New(snap, []complex128{1})
	assert.Error(t, err)

	snap.Branches[0].To = 9
	_, err = New(snap, FlatStart(snap))
	assert.Error(t, err)
}

func TestRunBalancedSolidFault(t *testing.T) {
	st := newStudy(t, testSystem())
	spec := network.FaultSpec{Bus: 1, Type: network.FaultPH3, Phases: network.PhaseABC}

	res, err := st.RunBalanced(spec)
	require.NoError(t, err)

	require.NotNil(t, res.Seq1)
	assert.Nil(t, res.Seq0)
	assert.Nil(t, res.PhaseA)

	// bolted fault collapses the bus
	assert.InDelta(t, 0, cmplx.Abs(res.Seq1.Voltage[1]), 1e-9)

	// Isc = Vpf/Zth with Zth = Zmachine + Zline
	zth := complex(0.002, 0.1) + complex(0.01, 0.1)
	want := 1.0 / cmplx.Abs(zth)
	assert.InDelta(t, want, cmplx.Abs(res.SCCurrent), want*1e-6)

	// line carries the full fault current
	assert.InDelta(t, want, cmplx.Abs(res.Seq1.If[0]), want*1e-6)

	assert.True(t, math.IsInf(res.MaxInitialCurrent, 1))
	assert.Empty(t, res.Warnings)
}

func TestRunBalancedRejectsUnbalancedTypes(t *testing.T) {
	st := newStudy(t, testSystem())
	_, err := st.RunBalanced(network.FaultSpec{Bus: 1, Type: network.FaultLG, Phases: network.PhaseA})
	assert.Error(t, err)
}

func TestRunBalancedOpenFault(t *testing.T) {
	st := newStudy(t, testSystem())
	spec := network.FaultSpec{Bus: 1, Type: network.FaultPH3, Phases: network.PhaseABC, Zf: complex(1e9, 0)}

	res, err := st.RunBalanced(spec)
	require.NoError(t, err)

	// an effectively open fault leaves the operating point alone
	assert.InDelta(t, 0, cmplx.Abs(res.Seq1.Voltage[0]-1), 1e-6)
	assert.InDelta(t, 0, cmplx.Abs(res.Seq1.Voltage[1]-1), 1e-6)
	assert.InDelta(t, 0, cmplx.Abs(res.SCCurrent), 1e-6)
}

func TestRunSequenceLGFault(t *testing.T) {
	st := newStudy(t, testSystem())
	spec := network.FaultSpec{Bus: 1, Type: network.FaultLG, Phases: network.PhaseA}

	res, err := st.RunSequence(spec)
	require.NoError(t, err)

	require.NotNil(t, res.Seq0)
	require.NotNil(t, res.Seq1)
	require.NotNil(t, res.Seq2)

	// the faulted phase voltage vanishes at the bus
	va := res.Seq0.Voltage[1] + res.Seq1.Voltage[1] + res.Seq2.Voltage[1]
	assert.InDelta(t, 0, cmplx.Abs(va), 1e-9)

	// |Isc| = 3·V/(Z0+Z1+Z2) with the thevenin sums checked by hand
	zth0 := complex(0, 0.05) + complex(0.03, 0.3)
	zth1 := complex(0.002, 0.1) + complex(0.01, 0.1)
	zth2 := zth1
	want := 3.0 / cmplx.Abs(zth0+zth1+zth2)
	assert.InDelta(t, want, cmplx.Abs(res.SCCurrent), want*1e-6)
}

func TestSequenceMatchesBalancedForThreePhase(t *testing.T) {
	st := newStudy(t, testSystem())
	spec := network.FaultSpec{Bus: 1, Type: network.FaultPH3, Phases: network.PhaseABC}

	bal, err := st.RunBalanced(spec)
	require.NoError(t, err)
	seq, err := st.RunSequence(spec)
	require.NoError(t, err)

	assert.InDelta(t, 0, cmplx.Abs(bal.SCCurrent-seq.SCCurrent), 1e-9)
	for k := range bal.Seq1.Voltage {
		assert.InDelta(t, 0, cmplx.Abs(bal.Seq1.Voltage[k]-seq.Seq1.Voltage[k]), 1e-9)
	}
}

func TestPhaseMatchesBalancedForThreePhase(t *testing.T) {
	spec := network.FaultSpec{
		Bus: 1, Type: network.FaultPH3, Phases: network.PhaseABC,
		Zf: complex(0.05, 0.1),
	}

	t.Run("exact at a current-free operating point", func(t *testing.T) {
		// with no load and no dispatch the flat profile solves the
		// pre-fault network exactly, so both paths see the same system
		snap := testSystem()
		snap.Loads = nil
		snap.Generators[0].P = 0
		snap.Generators[0].Q = 0
		st := newStudy(t, snap)

		bal, err := st.RunBalanced(spec)
		require.NoError(t, err)
		ph, err := st.RunPhase(spec)
		require.NoError(t, err)

		for k := 0; k < snap.NBus(); k++ {
			assert.InDelta(t, cmplx.Abs(bal.Seq1.Voltage[k]), cmplx.Abs(ph.PhaseA.Voltage[k]), 1e-9)
		}
		assert.InDelta(t, cmplx.Abs(bal.SCCurrent), cmplx.Abs(ph.SCCurrent), 1e-9)
		assert.InEpsilon(t, cmplx.Abs(bal.SCPower), cmplx.Abs(ph.SCPower), 1e-9)
	})

	t.Run("within linearization error from a loaded flat start", func(t *testing.T) {
		// a flat start is not a solved power flow for the loaded system,
		// so the paths disagree by the load linearization error only
		st := newStudy(t, testSystem())

		bal, err := st.RunBalanced(spec)
		require.NoError(t, err)
		ph, err := st.RunPhase(spec)
		require.NoError(t, err)

		assert.InDelta(t, cmplx.Abs(bal.Seq1.Voltage[1]), cmplx.Abs(ph.PhaseA.Voltage[1]), 2e-3)
		assert.InEpsilon(t, cmplx.Abs(bal.SCCurrent), cmplx.Abs(ph.SCCurrent), 1e-2)
	})
}

func TestRunSequenceIsIdempotent(t *testing.T) {
	st := newStudy(t, testSystem())
	spec := network.FaultSpec{Bus: 1, Type: network.FaultLG, Phases: network.PhaseA}

	first, err := st.RunSequence(spec)
	require.NoError(t, err)
	second, err := st.RunSequence(spec)
	require.NoError(t, err)

	assert.Equal(t, first.SCCurrent, second.SCCurrent)
	assert.Equal(t, first.Seq1.Voltage, second.Seq1.Voltage)
}

func TestRunPhaseSolidLG(t *testing.T) {
	st := newStudy(t, testSystem())
	spec := network.FaultSpec{Bus: 1, Type: network.FaultLG, Phases: network.PhaseA}

	res, err := st.RunPhase(spec)
	require.NoError(t, err)

	require.NotNil(t, res.PhaseA)
	require.NotNil(t, res.PhaseB)
	require.NotNil(t, res.PhaseC)
	assert.Nil(t, res.Seq1)
	assert.Len(t, res.PhaseA.Voltage, 2)
	assert.Len(t, res.PhaseA.If, 1)

	// phase a collapses at the faulted bus, the other phases ride through
	assert.InDelta(t, 0, cmplx.Abs(res.PhaseA.Voltage[1]), 1e-6)
	assert.Greater(t, cmplx.Abs(res.PhaseB.Voltage[1]), 0.5)
	assert.Greater(t, cmplx.Abs(res.PhaseC.Voltage[1]), 0.5)

	assert.Greater(t, cmplx.Abs(res.SCCurrent), 1.0)
}

func TestRunPhaseThreePhaseCollapse(t *testing.T) {
	st := newStudy(t, testSystem())
	spec := network.FaultSpec{Bus: 1, Type: network.FaultPH3, Phases: network.PhaseABC}

	res, err := st.RunPhase(spec)
	require.NoError(t, err)

	for _, pr := range []*PathResults{res.PhaseA, res.PhaseB, res.PhaseC} {
		assert.InDelta(t, 0, cmplx.Abs(pr.Voltage[1]), 1e-6)
	}

	// balanced network, balanced sources: the phase currents stay balanced
	ia := cmplx.Abs(res.PhaseA.If[0])
	ib := cmplx.Abs(res.PhaseB.If[0])
	ic := cmplx.Abs(res.PhaseC.If[0])
	assert.InDelta(t, ia, ib, ia*1e-6)
	assert.InDelta(t, ib, ic, ia*1e-6)
}

func TestRunPhaseOpenFault(t *testing.T) {
	st := newStudy(t, testSystem())
	spec := network.FaultSpec{Bus: 1, Type: network.FaultLG, Phases: network.PhaseA, Zf: complex(1e9, 0)}

	res, err := st.RunPhase(spec)
	require.NoError(t, err)
	assert.InDelta(t, 0, cmplx.Abs(res.SCCurrent), 1e-6)
}

func TestRunDispatch(t *testing.T) {
	st := newStudy(t, testSystem())
	spec := network.FaultSpec{Bus: 1, Type: network.FaultPH3, Phases: network.PhaseABC}

	res, err := st.Run(spec, MethodBalanced)
	require.NoError(t, err)
	assert.Equal(t, MethodBalanced, res.Method)

	res, err = st.Run(spec, MethodPhase)
	require.NoError(t, err)
	assert.Equal(t, MethodPhase, res.Method)

	_, err = st.Run(spec, Method(9))
	assert.Error(t, err)
}

func TestRunUsesBusFaultImpedance(t *testing.T) {
	snap := testSystem()
	snap.Buses[1].Zf = complex(0.05, 0.1)
	st := newStudy(t, snap)

	spec := network.FaultSpec{Bus: 1, Type: network.FaultPH3, Phases: network.PhaseABC}
	viaBus, err := st.Run(spec, MethodBalanced)
	require.NoError(t, err)

	spec.Zf = complex(0.05, 0.1)
	explicit, err := st.RunBalanced(spec)
	require.NoError(t, err)

	assert.InDelta(t, cmplx.Abs(explicit.SCCurrent), cmplx.Abs(viaBus.SCCurrent), 1e-12)
	assert.Greater(t, cmplx.Abs(viaBus.Seq1.Voltage[1]), 0.1)
}

func TestResultsCarryNames(t *testing.T) {
	st := newStudy(t, testSystem())
	res, err := st.RunBalanced(network.FaultSpec{Bus: 0, Type: network.FaultPH3, Phases: network.PhaseABC})
	require.NoError(t, err)

	assert.Equal(t, []string{"b1", "b2"}, res.BusNames)
	assert.Equal(t, []string{"l12"}, res.BranchNames)
}

func TestStudyWarningsSurfaceInResults(t *testing.T) {
	snap := testSystem()
	snap.Buses[1].Vnom = 110 // mismatched plain line: coerced, warned

	st := newStudy(t, snap)
	res, err := st.RunBalanced(network.FaultSpec{Bus: 1, Type: network.FaultPH3, Phases: network.PhaseABC})
	require.NoError(t, err)

	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "l12")
	assert.Equal(t, 132.0, snap.Buses[1].Vnom)
}
