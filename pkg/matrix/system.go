package matrix

import (
	"fmt"

	"github.com/edp1096/sparse"
)

// SystemMatrix is a complex sparse linear system backed by the sparse LU
// solver. Indices are 1-based, following the solver convention.
type SystemMatrix struct {
	Size         int
	matrix       *sparse.Matrix
	rhs          []float64
	rhsImag      []float64
	solution     []float64
	solutionImag []float64
	config       *sparse.Configuration
}

func NewSystem(size int) (*SystemMatrix, error) {
	config := &sparse.Configuration{
		Real:                    true,
		Complex:                 true,
		SeparatedComplexVectors: false,
		Expandable:              true,
		Translate:               false,
		ModifiedNodal:           true,
		TiesMultiplier:          5,
		PrinterWidth:            140,
		Annotate:                0,
	}

	mat, err := sparse.Create(int64(size), config)
	if err != nil {
		return nil, fmt.Errorf("creating sparse matrix of size %d: %v", size, err)
	}

	vectorSize := (size + 1) * 2 // interleaved complex, 1-based indexing

	return &SystemMatrix{
		Size:         size,
		matrix:       mat,
		rhs:          make([]float64, vectorSize),
		rhsImag:      make([]float64, 1),
		solution:     make([]float64, vectorSize),
		solutionImag: make([]float64, 1),
		config:       config,
	}, nil
}

func (m *SystemMatrix) AddComplex(i, j int, value complex128) error {
	if i <= 0 || j <= 0 || i > m.Size || j > m.Size {
		return fmt.Errorf("matrix index out of bounds (i=%d, j=%d, size=%d)", i, j, m.Size)
	}

	element := m.matrix.GetElement(int64(i), int64(j))
	element.Real += real(value)
	element.Imag += imag(value)
	return nil
}

func (m *SystemMatrix) AddComplexRHS(i int, value complex128) error {
	if i <= 0 || i > m.Size {
		return fmt.Errorf("RHS index out of bounds (i=%d, size=%d)", i, m.Size)
	}
	m.rhs[2*i] += real(value)
	m.rhs[2*i+1] += imag(value)
	return nil
}

func (m *SystemMatrix) Clear() {
	m.matrix.Clear()
	for i := range m.rhs {
		m.rhs[i] = 0
	}
}

// Solve factors and solves the system. A singular matrix is a hard error;
// the caller must not retry with the same system.
func (m *SystemMatrix) Solve() error {
	err := m.matrix.Factor()
	if err != nil {
		return fmt.Errorf("matrix factorization failed: %v", err)
	}

	m.solution, m.solutionImag, err = m.matrix.SolveComplex(m.rhs, m.rhsImag)
	if err != nil {
		return fmt.Errorf("matrix solve failed: %v", err)
	}

	return nil
}

// ComplexSolution returns solution variable i. The solver hands the solution
// back interleaved, matching the RHS layout: real at 2i, imaginary at 2i+1.
func (m *SystemMatrix) ComplexSolution(i int) complex128 {
	if i <= 0 || i > m.Size {
		return 0
	}
	return complex(m.solution[2*i], m.solution[2*i+1])
}

// SolutionVector returns the solution as a 0-based vector of length Size.
func (m *SystemMatrix) SolutionVector() []complex128 {
	v := make([]complex128, m.Size)
	for i := 1; i <= m.Size; i++ {
		v[i-1] = m.ComplexSolution(i)
	}
	return v
}

func (m *SystemMatrix) Destroy() {
	if m.matrix != nil {
		m.matrix.Destroy()
	}
}
