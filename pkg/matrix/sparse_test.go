package matrix

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordAccumulation(t *testing.T) {
	c := NewCoord(3, 3)
	c.Add(0, 0, 1+2i)
	c.Add(0, 0, 2-1i)
	c.Add(1, 2, 5)
	c.Add(2, 2, 0) // zero entries are skipped

	assert.Equal(t, 3, c.NNZ())
	assert.Equal(t, 3+1i, c.At(0, 0))
	assert.Equal(t, complex128(5), c.At(1, 2))
	assert.Equal(t, complex128(0), c.At(2, 1))
}

func TestCoordMulVec(t *testing.T) {
	c := NewCoord(2, 3)
	c.Add(0, 0, 2)
	c.Add(0, 2, 1i)
	c.Add(1, 1, -1)

	y, err := c.MulVec([]complex128{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []complex128{2 + 3i, -2}, y)

	_, err = c.MulVec([]complex128{1, 2})
	assert.Error(t, err)
}

func TestCoordAddDiagAndMatrix(t *testing.T) {
	c := NewCoord(2, 2)
	c.Add(0, 1, 1)

	require.NoError(t, c.AddDiag([]complex128{1i, 2i}))
	assert.Equal(t, 1i, c.At(0, 0))
	assert.Equal(t, 2i, c.At(1, 1))

	other := NewCoord(2, 2)
	other.Add(0, 1, -1)
	require.NoError(t, c.AddMatrix(other))
	assert.Equal(t, complex128(0), c.At(0, 1))

	bad := NewCoord(3, 3)
	assert.Error(t, c.AddMatrix(bad))
	assert.Error(t, c.AddDiag([]complex128{1}))
}

func TestCoordCopyIsIndependent(t *testing.T) {
	c := NewCoord(2, 2)
	c.Add(0, 0, 1)

	cp := c.Copy()
	cp.Add(0, 0, 1)
	cp.Scale(2)

	assert.Equal(t, complex128(1), c.At(0, 0))
	assert.Equal(t, complex128(4), cp.At(0, 0))
}

func TestCoordSymmetry(t *testing.T) {
	c := NewCoord(2, 2)
	c.Add(0, 0, 1+1i)
	c.Add(0, 1, -2i)
	c.Add(1, 0, -1i)
	c.Add(1, 0, -1i) // accumulates to the mirror value
	c.Add(1, 1, 3)
	assert.True(t, c.IsSymmetric(1e-12))

	c.Add(1, 0, 0.5)
	assert.False(t, c.IsSymmetric(1e-12))
}

func TestCoordSolve(t *testing.T) {
	// [2   -1 ] [x0]   [1 ]
	// [-1  2+i] [x1] = [1i]
	c := NewCoord(2, 2)
	c.Add(0, 0, 2)
	c.Add(0, 1, -1)
	c.Add(1, 0, -1)
	c.Add(1, 1, 2+1i)

	b := []complex128{1, 1i}
	x, err := c.Solve(b)
	require.NoError(t, err)

	// residual check
	r, err := c.MulVec(x)
	require.NoError(t, err)
	for i := range b {
		assert.InDelta(t, 0, cmplx.Abs(r[i]-b[i]), 1e-10)
	}
}

func TestCoordSolveRejectsBadShapes(t *testing.T) {
	rect := NewCoord(2, 3)
	_, err := rect.Solve([]complex128{1, 2})
	assert.Error(t, err)

	sq := NewCoord(2, 2)
	sq.Add(0, 0, 1)
	sq.Add(1, 1, 1)
	_, err = sq.Solve([]complex128{1})
	assert.Error(t, err)
}
