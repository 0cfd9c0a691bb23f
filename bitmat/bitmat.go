// Package bitmat implements a bit-packed binary feature matrix with
// stable row and column labels. It is the owning representation of the
// feature-by-sample matrix that every other package in this module reads
// from, never mutates.
package bitmat

import (
	"fmt"
	"math/bits"
)

const wordBits = 64

// Matrix is an M (features) x N (samples) 0/1 matrix, bit-packed one
// word per 64 columns. Row and column labels are fixed for the life of
// a Matrix; reordering columns returns a new Matrix rather than
// mutating this one, so a Matrix can be shared by reference across
// concurrent searches.
type Matrix struct {
	rows     int
	cols     int
	words    int // uint64 words per row
	data     [][]uint64
	rowNames []string
	colNames []string
	rowIndex map[string]int
	colIndex map[string]int
}

// Error is a sentinel error type for programmer-contract violations,
// following the mat package's own ErrShape-style panics: conditions
// that indicate a bug in calling code rather than bad user input,
// which has already been validated by the time it reaches this package.
type Error string

func (e Error) Error() string { return string(e) }

const (
	errRowRange    = Error("bitmat: row index out of range")
	errColRange    = Error("bitmat: column index out of range")
	errDimMismatch = Error("bitmat: dimension mismatch")
	errLabels      = Error("bitmat: label count does not match dimension")
)

// New builds a Matrix from a dense row-major 0/1 grid with the given
// row and column labels. It panics if any cell is not 0 or 1, or if
// any row length or label count is inconsistent with the grid. It does
// not check label uniqueness or degenerate rows; Validate does. These
// are contract violations the caller (typically the validating
// top-level cadra.CandidateSearch) must never let through.
func New(grid [][]uint8, rowNames, colNames []string) *Matrix {
	m := len(grid)
	if m != len(rowNames) {
		panic(errLabels)
	}
	var n int
	if m > 0 {
		n = len(grid[0])
	}
	if n != len(colNames) {
		panic(errLabels)
	}
	words := (n + wordBits - 1) / wordBits
	if words == 0 {
		words = 1
	}
	data := make([][]uint64, m)
	for i, row := range grid {
		if len(row) != n {
			panic(errDimMismatch)
		}
		packed := make([]uint64, words)
		for j, v := range row {
			if v != 0 && v != 1 {
				panic(fmt.Sprintf("bitmat: cell (%d,%d) is not binary: %d", i, j, v))
			}
			if v == 1 {
				packed[j/wordBits] |= 1 << uint(j%wordBits)
			}
		}
		data[i] = packed
	}
	mat := &Matrix{
		rows: m, cols: n, words: words,
		data:     data,
		rowNames: append([]string(nil), rowNames...),
		colNames: append([]string(nil), colNames...),
	}
	mat.buildIndexes()
	return mat
}

func (m *Matrix) buildIndexes() {
	m.rowIndex = make(map[string]int, m.rows)
	for i, name := range m.rowNames {
		m.rowIndex[name] = i
	}
	m.colIndex = make(map[string]int, m.cols)
	for j, name := range m.colNames {
		m.colIndex[name] = j
	}
}

// Rows returns the number of features (M).
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of samples (N).
func (m *Matrix) Cols() int { return m.cols }

// RowNames returns the feature labels, in row order. The returned
// slice must not be mutated.
func (m *Matrix) RowNames() []string { return m.rowNames }

// ColNames returns the sample labels, in column order. The returned
// slice must not be mutated.
func (m *Matrix) ColNames() []string { return m.colNames }

// RowIndex returns the row index for a feature label and whether it
// was found.
func (m *Matrix) RowIndex(label string) (int, bool) {
	i, ok := m.rowIndex[label]
	return i, ok
}

// ColIndex returns the column index for a sample label and whether it
// was found.
func (m *Matrix) ColIndex(label string) (int, bool) {
	j, ok := m.colIndex[label]
	return j, ok
}

// Row is a bit-packed reference to one matrix row. It is a lightweight
// view, not a copy; it remains valid only as long as the owning Matrix
// is not mutated (Matrix is otherwise immutable after New/Reorder).
type Row struct {
	words []uint64
	n     int
}

// At reports the bit at column j.
func (r Row) At(j int) uint8 {
	if r.words[j/wordBits]&(1<<uint(j%wordBits)) != 0 {
		return 1
	}
	return 0
}

// Len returns the number of columns the row spans.
func (r Row) Len() int { return r.n }

// PopCount returns the number of set bits.
func (r Row) PopCount() int {
	c := 0
	for _, w := range r.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// AllOnes reports whether every column of the row is set.
func (r Row) AllOnes() bool { return r.PopCount() == r.n }

// AllZero reports whether no column of the row is set.
func (r Row) AllZero() bool {
	for _, w := range r.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Or returns the elementwise OR of r and s, which must have equal
// length.
func (r Row) Or(s Row) Row {
	if len(r.words) != len(s.words) {
		panic(errDimMismatch)
	}
	words := make([]uint64, len(r.words))
	for i := range words {
		words[i] = r.words[i] | s.words[i]
	}
	return Row{words: words, n: r.n}
}

// Row returns a view of row i. Constant time: no copy of the
// underlying words is made.
func (m *Matrix) Row(i int) Row {
	if i < 0 || i >= m.rows {
		panic(errRowRange)
	}
	return Row{words: m.data[i], n: m.cols}
}

// RowCountOnes returns the popcount of row i.
func (m *Matrix) RowCountOnes(i int) int {
	return m.Row(i).PopCount()
}

// OrUnion returns the elementwise OR across the given row indices. It
// panics if rows is empty.
func (m *Matrix) OrUnion(rows []int) Row {
	if len(rows) == 0 {
		panic("bitmat: OrUnion requires at least one row")
	}
	words := make([]uint64, m.words)
	for _, i := range rows {
		if i < 0 || i >= m.rows {
			panic(errRowRange)
		}
		for w, word := range m.data[i] {
			words[w] |= word
		}
	}
	return Row{words: words, n: m.cols}
}

// ReorderCols returns a new Matrix with columns permuted according to
// perm: the result's column j holds this Matrix's column perm[j].
// Column labels and row labels are otherwise unaffected; row indices
// are stable (reordering never touches rows).
func (m *Matrix) ReorderCols(perm []int) *Matrix {
	if len(perm) != m.cols {
		panic(errDimMismatch)
	}
	seen := make([]bool, m.cols)
	for _, p := range perm {
		if p < 0 || p >= m.cols {
			panic(errColRange)
		}
		if seen[p] {
			panic("bitmat: ReorderCols requires a permutation")
		}
		seen[p] = true
	}
	newColNames := make([]string, m.cols)
	newData := make([][]uint64, m.rows)
	for i := 0; i < m.rows; i++ {
		row := m.Row(i)
		words := make([]uint64, m.words)
		for j, p := range perm {
			if row.At(p) == 1 {
				words[j/wordBits] |= 1 << uint(j%wordBits)
			}
		}
		newData[i] = words
	}
	for j, p := range perm {
		newColNames[j] = m.colNames[p]
	}
	out := &Matrix{
		rows: m.rows, cols: m.cols, words: m.words,
		data:     newData,
		rowNames: m.rowNames,
		colNames: newColNames,
	}
	out.buildIndexes()
	return out
}

// SelectRows returns a new Matrix containing only the given row
// indices, in the given order, preserving all column labels.
func (m *Matrix) SelectRows(rows []int) *Matrix {
	newData := make([][]uint64, len(rows))
	newNames := make([]string, len(rows))
	for k, i := range rows {
		if i < 0 || i >= m.rows {
			panic(errRowRange)
		}
		newData[k] = append([]uint64(nil), m.data[i]...)
		newNames[k] = m.rowNames[i]
	}
	out := &Matrix{
		rows: len(rows), cols: m.cols, words: m.words,
		data:     newData,
		rowNames: newNames,
		colNames: m.colNames,
	}
	out.buildIndexes()
	return out
}

// Validate checks the structural invariants spec.md §3 requires of a
// binary feature matrix: no row is all-zero or all-one, and labels are
// unique and non-empty. It does not check column-label/score-vector
// bijection; that is the caller's responsibility (cadra's
// checkBijection), since s is not known to this package.
func (m *Matrix) Validate() error {
	seen := make(map[string]struct{}, m.rows)
	for i, name := range m.rowNames {
		if name == "" {
			return fmt.Errorf("bitmat: row %d has an empty label", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("bitmat: duplicate row label %q", name)
		}
		seen[name] = struct{}{}
		row := m.Row(i)
		if row.AllZero() {
			return fmt.Errorf("bitmat: row %q is all-zero", name)
		}
		if row.AllOnes() {
			return fmt.Errorf("bitmat: row %q is all-one", name)
		}
	}
	seenCols := make(map[string]struct{}, m.cols)
	for j, name := range m.colNames {
		if name == "" {
			return fmt.Errorf("bitmat: column %d has an empty label", j)
		}
		if _, dup := seenCols[name]; dup {
			return fmt.Errorf("bitmat: duplicate column label %q", name)
		}
		seenCols[name] = struct{}{}
	}
	return nil
}
