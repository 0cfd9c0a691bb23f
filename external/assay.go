// Package external implements the boundary adapters spec.md §6 lists
// as external collaborators of the core: the labeled-assay container,
// the prevalence pre-filter, and a plotting hook.
package external

import "github.com/bioc/CaDrA/bitmat"

// Assay models the "labeled assay" container contract of spec.md §6:
// any type that can hand back a raw binary matrix plus its row/column
// names. The core never calls anything else on it.
type Assay interface {
	Assay() [][]uint8
	RowNames() []string
	ColNames() []string
}

// SimpleAssay is a minimal concrete Assay backed by a plain in-memory
// grid, for callers (chiefly cmd/cadra) that don't have their own
// container type to adapt.
type SimpleAssay struct {
	Grid     [][]uint8
	Rows     []string
	Cols     []string
}

func (a *SimpleAssay) Assay() [][]uint8  { return a.Grid }
func (a *SimpleAssay) RowNames() []string { return a.Rows }
func (a *SimpleAssay) ColNames() []string { return a.Cols }

// ToMatrix adapts any Assay into a bitmat.Matrix, the core's native
// representation. It panics on malformed input exactly as bitmat.New
// does, since by this point the assay's own construction should
// already have validated shape.
func ToMatrix(a Assay) *bitmat.Matrix {
	return bitmat.New(a.Assay(), a.RowNames(), a.ColNames())
}
