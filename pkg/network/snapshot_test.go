package network

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoBusSnapshot() *Snapshot {
	return &Snapshot{
		Name:  "two bus",
		Sbase: 100,
		Buses: []Bus{
			{Name: "b1", Vnom: 132, Slack: true},
			{Name: "b2", Vnom: 132},
		},
		Branches: []Branch{
			{Name: "l12", From: 0, To: 1, R: 0.01, X: 0.1, TapModule: 1, VtapF: 1, VtapT: 1, Conn: ConnGG, Rate: 50, Active: true},
		},
		Generators: []Machine{
			{Name: "g1", Bus: 0, P: 10, Q: 2, Vset: 1.0, R1: 0.01, X1: 0.1, X0: 0.05, X2: 0.1, Active: true},
		},
		Loads: []Load{
			{Name: "d2", Bus: 1, SStar: [3]complex128{3 + 1i, 3 + 1i, 3 + 1i}, Active: true},
		},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid snapshot passes", func(t *testing.T) {
		assert.NoError(t, twoBusSnapshot().Validate())
	})

	t.Run("no buses", func(t *testing.T) {
		s := &Snapshot{Sbase: 100}
		assert.Error(t, s.Validate())
	})

	t.Run("bad base power", func(t *testing.T) {
		s := twoBusSnapshot()
		s.Sbase = 0
		assert.Error(t, s.Validate())
	})

	t.Run("out of range branch", func(t *testing.T) {
		s := twoBusSnapshot()
		s.Branches[0].To = 7
		assert.Error(t, s.Validate())
	})

	t.Run("self loop", func(t *testing.T) {
		s := twoBusSnapshot()
		s.Branches[0].To = 0
		assert.Error(t, s.Validate())
	})

	t.Run("out of range machine", func(t *testing.T) {
		s := twoBusSnapshot()
		s.Generators[0].Bus = -1
		assert.Error(t, s.Validate())
	})
}

func TestMachineYshunt(t *testing.T) {
	s := twoBusSnapshot()
	s.Batteries = []Machine{{Name: "bat", Bus: 1, X1: 0.2, Active: true}}

	y1 := s.MachineYshunt(1)
	assert.InDelta(t, 0, real(y1[0]-1.0/complex(0.01, 0.1)), 1e-12)
	assert.InDelta(t, 0, imag(y1[0]-1.0/complex(0.01, 0.1)), 1e-12)
	assert.Equal(t, 1.0/complex(0, 0.2), y1[1])

	// machines with no zero-sequence data contribute nothing
	s.Batteries[0].Active = false
	y0 := s.MachineYshunt(0)
	assert.Equal(t, 1.0/complex(0, 0.05), y0[0])
	assert.Equal(t, complex128(0), y0[1])
}

func TestPowerInjections(t *testing.T) {
	s := twoBusSnapshot()
	p := s.PowerInjections()

	assert.Equal(t, complex(0.10, 0.02), p[0])
	assert.Equal(t, complex(-0.09, -0.03), p[1])

	s.Loads[0].Active = false
	p = s.PowerInjections()
	assert.Equal(t, complex128(0), p[1])
}

func TestNormalizeVoltages(t *testing.T) {
	t.Run("mismatch on a plain line is coerced and logged", func(t *testing.T) {
		s := twoBusSnapshot()
		s.Buses[1].Vnom = 110

		log := &Logger{}
		s.NormalizeVoltages(log)

		assert.Equal(t, 132.0, s.Buses[1].Vnom)
		require.Len(t, log.Warnings(), 1)
		assert.Contains(t, log.Warnings()[0], "l12")
	})

	t.Run("transformers are exempt", func(t *testing.T) {
		s := twoBusSnapshot()
		s.Buses[1].Vnom = 110
		s.Branches[0].Conn = ConnGD

		log := &Logger{}
		s.NormalizeVoltages(log)

		assert.Equal(t, 110.0, s.Buses[1].Vnom)
		assert.True(t, log.Empty())
	})
}

func TestSplitBranch(t *testing.T) {
	s := twoBusSnapshot()

	mid, err := s.SplitBranch(0, 0.25, 0.001, 0.01)
	require.NoError(t, err)

	assert.Equal(t, 2, mid)
	assert.False(t, s.Branches[0].Active)
	require.Len(t, s.Branches, 3)

	h1, h2 := s.Branches[1], s.Branches[2]
	assert.Equal(t, "l12/1", h1.Name)
	assert.Equal(t, "l12/2", h2.Name)
	assert.InDelta(t, 0.25*0.1, h1.X, 1e-15)
	assert.InDelta(t, 0.75*0.1, h2.X, 1e-15)
	assert.Equal(t, 0, h1.From)
	assert.Equal(t, mid, h1.To)
	assert.Equal(t, mid, h2.From)
	assert.Equal(t, 1, h2.To)
	assert.Equal(t, complex(0.001, 0.01), s.Buses[mid].Zf)

	_, err = s.SplitBranch(0, 0.0, 0, 0)
	assert.Error(t, err)
	_, err = s.SplitBranch(9, 0.5, 0, 0)
	assert.Error(t, err)
}

func TestMaxInitialCurrent(t *testing.T) {
	s := twoBusSnapshot()

	// zk = |zf|·Un²/Sbase, ik = c·Un/(√3·zk)
	ik := s.MaxInitialCurrent(1, complex(0, 0.1))
	un := 132e3
	zk := 0.1 * un * un / 100e6
	expected := 1.1 * un / math.Sqrt(3.0) / zk / 1e3
	assert.InDelta(t, expected, ik, 1e-9)

	// solid fault saturates the estimate
	assert.True(t, math.IsInf(s.MaxInitialCurrent(1, 0), 1))
}

func TestWindingConnectionParsing(t *testing.T) {
	for _, name := range []string{"GG", "GD", "SG", "SS", "SD", "DD"} {
		conn, err := ParseWindingConnection(name)
		require.NoError(t, err)
		assert.Equal(t, name, conn.String())
	}
	_, err := ParseWindingConnection("XY")
	assert.Error(t, err)
}
