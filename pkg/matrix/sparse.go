package matrix

import (
	"fmt"
	"math/cmplx"
)

// Coord is a coordinate-format complex sparse matrix, possibly rectangular.
// Duplicate entries accumulate. It carries admittance matrices between the
// builders and the solver; products (Yf·V etc.) are computed directly on the
// triplets.
type Coord struct {
	Rows, Cols int
	rows       []int
	cols       []int
	values     []complex128
}

func NewCoord(rows, cols int) *Coord {
	return &Coord{Rows: rows, Cols: cols}
}

func (c *Coord) Add(i, j int, value complex128) {
	if value == 0 {
		return
	}
	c.rows = append(c.rows, i)
	c.cols = append(c.cols, j)
	c.values = append(c.values, value)
}

func (c *Coord) NNZ() int { return len(c.values) }

// Entry is one triplet of the coordinate form.
type Entry struct {
	Row, Col int
	Value    complex128
}

// Entries exposes the raw triplets; duplicates may appear and accumulate.
func (c *Coord) Entries() []Entry {
	out := make([]Entry, len(c.values))
	for k := range c.values {
		out[k] = Entry{Row: c.rows[k], Col: c.cols[k], Value: c.values[k]}
	}
	return out
}

// At sums the duplicate entries at (i, j). Meant for tests and small blocks,
// not for bulk access.
func (c *Coord) At(i, j int) complex128 {
	var sum complex128
	for k := range c.values {
		if c.rows[k] == i && c.cols[k] == j {
			sum += c.values[k]
		}
	}
	return sum
}

// MulVec computes y = C·x.
func (c *Coord) MulVec(x []complex128) ([]complex128, error) {
	if len(x) != c.Cols {
		return nil, fmt.Errorf("dimension mismatch: matrix is %dx%d, vector is %d", c.Rows, c.Cols, len(x))
	}
	y := make([]complex128, c.Rows)
	for k := range c.values {
		y[c.rows[k]] += c.values[k] * x[c.cols[k]]
	}
	return y, nil
}

// AddMatrix accumulates other into c. Shapes must match.
func (c *Coord) AddMatrix(other *Coord) error {
	if other.Rows != c.Rows || other.Cols != c.Cols {
		return fmt.Errorf("shape mismatch: %dx%d vs %dx%d", c.Rows, c.Cols, other.Rows, other.Cols)
	}
	for k := range other.values {
		c.Add(other.rows[k], other.cols[k], other.values[k])
	}
	return nil
}

// AddDiag accumulates a diagonal given as a dense vector.
func (c *Coord) AddDiag(d []complex128) error {
	if len(d) != c.Rows || c.Rows != c.Cols {
		return fmt.Errorf("diagonal of length %d does not fit %dx%d matrix", len(d), c.Rows, c.Cols)
	}
	for i, v := range d {
		c.Add(i, i, v)
	}
	return nil
}

// Scale multiplies every entry in place.
func (c *Coord) Scale(f complex128) {
	for k := range c.values {
		c.values[k] *= f
	}
}

// Copy returns an independent copy.
func (c *Coord) Copy() *Coord {
	out := &Coord{
		Rows:   c.Rows,
		Cols:   c.Cols,
		rows:   append([]int(nil), c.rows...),
		cols:   append([]int(nil), c.cols...),
		values: append([]complex128(nil), c.values...),
	}
	return out
}

// IsSymmetric reports whether the accumulated matrix equals its transpose
// within tol.
func (c *Coord) IsSymmetric(tol float64) bool {
	if c.Rows != c.Cols {
		return false
	}
	type key struct{ i, j int }
	acc := make(map[key]complex128, len(c.values))
	for k := range c.values {
		acc[key{c.rows[k], c.cols[k]}] += c.values[k]
	}
	for kk, v := range acc {
		if cmplx.Abs(v-acc[key{kk.j, kk.i}]) > tol {
			return false
		}
	}
	return true
}

// StampInto loads the accumulated entries into a solver system, converting
// 0-based to 1-based indices. The matrix must be square and match the system
// size.
func (c *Coord) StampInto(sys *SystemMatrix) error {
	if c.Rows != c.Cols || c.Rows != sys.Size {
		return fmt.Errorf("cannot stamp %dx%d matrix into system of size %d", c.Rows, c.Cols, sys.Size)
	}
	for k := range c.values {
		if err := sys.AddComplex(c.rows[k]+1, c.cols[k]+1, c.values[k]); err != nil {
			return err
		}
	}
	return nil
}

// Solve performs a single sparse direct solve C·x = b. The diagonal is
// touched beforehand so the factorization always finds its pivot slots.
func (c *Coord) Solve(b []complex128) ([]complex128, error) {
	if c.Rows != c.Cols {
		return nil, fmt.Errorf("cannot solve non-square %dx%d system", c.Rows, c.Cols)
	}
	if len(b) != c.Rows {
		return nil, fmt.Errorf("RHS of length %d does not fit system of size %d", len(b), c.Rows)
	}

	sys, err := NewSystem(c.Rows)
	if err != nil {
		return nil, err
	}
	defer sys.Destroy()

	if err := c.StampInto(sys); err != nil {
		return nil, err
	}
	for i := 1; i <= sys.Size; i++ {
		if err := sys.AddComplex(i, i, 0); err != nil {
			return nil, err
		}
	}
	for i, v := range b {
		if err := sys.AddComplexRHS(i+1, v); err != nil {
			return nil, err
		}
	}

	if err := sys.Solve(); err != nil {
		return nil, err
	}
	return sys.SolutionVector(), nil
}
