package containers

import (
	"sort"

	"github.com/liarsdice/persistence/pkg/coreerr"
)

// Number is the set of element types SparseMatrix can hold.
type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

type cellKey struct {
	row, col int
}

// Cell is one non-zero entry of a SparseMatrix, returned by TopN.
type Cell[T Number] struct {
	Row, Col int
	Value    T
}

// SparseMatrix is a row/col indexed matrix over T that stores only non-zero
// (non-additive-identity) cells. Writing the zero value of T to a cell
// erases it.
type SparseMatrix[T Number] struct {
	rows, cols int
	cells      map[cellKey]T
}

// NewSparseMatrix returns an empty rows x cols matrix.
func NewSparseMatrix[T Number](rows, cols int) (*SparseMatrix[T], error) {
	if rows <= 0 || cols <= 0 {
		return nil, coreerr.New(coreerr.InvalidParameter, "sparse matrix dimensions must be positive")
	}

	return &SparseMatrix[T]{rows: rows, cols: cols, cells: make(map[cellKey]T)}, nil
}

// Dims returns the matrix's row and column count.
func (m *SparseMatrix[T]) Dims() (rows, cols int) {
	return m.rows, m.cols
}

// Set writes v at (row, col). Writing the zero value erases the cell.
func (m *SparseMatrix[T]) Set(row, col int, v T) {
	key := cellKey{row, col}

	var zero T
	if v == zero {
		delete(m.cells, key)

		return
	}

	m.cells[key] = v
}

// Get returns the value at (row, col), or the zero value if unset.
func (m *SparseMatrix[T]) Get(row, col int) T {
	return m.cells[cellKey{row, col}]
}

// NNZ returns the number of non-zero cells currently stored.
func (m *SparseMatrix[T]) NNZ() int {
	return len(m.cells)
}

// RowSum sums every stored cell in the given row.
func (m *SparseMatrix[T]) RowSum(row int) T {
	var sum T

	for k, v := range m.cells {
		if k.row == row {
			sum += v
		}
	}

	return sum
}

// ColSum sums every stored cell in the given column.
func (m *SparseMatrix[T]) ColSum(col int) T {
	var sum T

	for k, v := range m.cells {
		if k.col == col {
			sum += v
		}
	}

	return sum
}

// TopN returns the n cells with the largest value, descending, breaking ties
// by (row, col) ascending for a stable result.
func (m *SparseMatrix[T]) TopN(n int) []Cell[T] {
	all := make([]Cell[T], 0, len(m.cells))
	for k, v := range m.cells {
		all = append(all, Cell[T]{Row: k.row, Col: k.col, Value: v})
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Value != all[j].Value {
			return all[i].Value > all[j].Value
		}

		if all[i].Row != all[j].Row {
			return all[i].Row < all[j].Row
		}

		return all[i].Col < all[j].Col
	})

	if n > len(all) {
		n = len(all)
	}

	if n < 0 {
		n = 0
	}

	return all[:n]
}

// RowNormalize returns a new float64 matrix where every row's cells are
// divided by that row's sum. A row whose sum is zero is left empty (zero
// cells) rather than dividing by zero.
func (m *SparseMatrix[T]) RowNormalize() *SparseMatrix[float64] {
	out := &SparseMatrix[float64]{rows: m.rows, cols: m.cols, cells: make(map[cellKey]float64)}

	sums := make(map[int]T, m.rows)
	for k, v := range m.cells {
		sums[k.row] += v
	}

	for k, v := range m.cells {
		rowSum := sums[k.row]
		if rowSum == 0 {
			continue
		}

		out.Set(k.row, k.col, float64(v)/float64(rowSum))
	}

	return out
}

// Product computes m x other, failing with an [coreerr.InvalidParameter]
// wrapped kind (the spec's ShapeMismatch) when m's column count does not
// match other's row count.
func (m *SparseMatrix[T]) Product(other *SparseMatrix[T]) (*SparseMatrix[T], error) {
	if m.cols != other.rows {
		return nil, coreerr.Newf(coreerr.InvalidParameter,
			"shape mismatch: %dx%d * %dx%d", m.rows, m.cols, other.rows, other.cols)
	}

	result, err := NewSparseMatrix[T](m.rows, other.cols)
	if err != nil {
		return nil, err
	}

	otherByRow := make(map[int][]cellKey, other.rows)
	for k := range other.cells {
		otherByRow[k.row] = append(otherByRow[k.row], k)
	}

	for i := 0; i < m.rows; i++ {
		for j := 0; j < other.cols; j++ {
			var sum T

			for k := 0; k < m.cols; k++ {
				a := m.Get(i, k)
				if a == 0 {
					continue
				}

				b := other.Get(k, j)
				sum += a * b
			}

			result.Set(i, j, sum)
		}
	}

	return result, nil
}
