package cadra

import (
	"context"
	"fmt"
	"math"

	"github.com/bioc/CaDrA/bitmat"
	"github.com/bioc/CaDrA/kernel"
	"github.com/bioc/CaDrA/metafeature"
	"github.com/bioc/CaDrA/permute"
	"github.com/bioc/CaDrA/topn"
)

// CandidateSearch validates grid/rowNames/colNames/s/sLabels against
// opts, builds the binary matrix, and runs the top-N driver (which
// seeds the forward/backward search of spec.md §4.3 from either
// opts.TopN highest-scoring features or opts.SearchStart).
func CandidateSearch(ctx context.Context, grid [][]uint8, rowNames, colNames []string, s []float64, sLabels []string, opts Options) (SearchResult, error) {
	a, aligned, topnOpts, err := prepare(grid, rowNames, colNames, s, sLabels, opts)
	if err != nil {
		return SearchResult{}, err
	}

	result, err := topn.Run(ctx, a, aligned, a.ColNames(), topnOpts)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Seeds: result.Seeds, Best: result.Best}, nil
}

// RunPermutation runs CandidateSearch to obtain the observed best
// score, then draws opts.NPerm distinct label-permutations of s and
// re-runs the same search against each, reporting the empirical
// p-value of the observed score per spec.md §4.5.
func RunPermutation(ctx context.Context, grid [][]uint8, rowNames, colNames []string, s []float64, sLabels []string, opts Options) (PermutationResult, error) {
	if opts.NPerm <= 0 {
		return PermutationResult{}, ErrInvalidNPerm
	}

	a, aligned, topnOpts, err := prepare(grid, rowNames, colNames, s, sLabels, opts)
	if err != nil {
		return PermutationResult{}, err
	}

	observedResult, err := topn.Run(ctx, a, aligned, a.ColNames(), topnOpts)
	if err != nil {
		return PermutationResult{}, err
	}
	observed := math.Inf(-1)
	for _, seed := range observedResult.Seeds {
		if seed.BestScore > observed {
			observed = seed.BestScore
		}
	}

	permOpts := permute.Options{
		NPerm:           opts.NPerm,
		Seed:            opts.Seed,
		NCores:          opts.NCores,
		FailureFraction: opts.FailureFraction,
		Logger:          opts.Logger,
	}
	return permute.Run(ctx, a, aligned, a.ColNames(), observed, topnOpts, permOpts)
}

// prepare validates every input-validation and configuration condition
// spec.md §7 lists as fatal, builds the matrix, aligns s (and weights,
// if any) to its column order, and assembles the topn.Options the
// search/permutation entry points share.
func prepare(grid [][]uint8, rowNames, colNames []string, s []float64, sLabels []string, opts Options) (*bitmat.Matrix, []float64, topn.Options, error) {
	if err := opts.validate(); err != nil {
		return nil, nil, topn.Options{}, err
	}
	if err := validateGrid(grid, rowNames, colNames); err != nil {
		return nil, nil, topn.Options{}, err
	}
	if len(s) != len(sLabels) {
		return nil, nil, topn.Options{}, fmt.Errorf("%w: s has %d values but %d labels", ErrLabelMismatch, len(s), len(sLabels))
	}
	if err := checkBijection(colNames, sLabels); err != nil {
		return nil, nil, topn.Options{}, err
	}

	a := bitmat.New(grid, rowNames, colNames)

	aligned, err := kernel.AlignByLabel(s, sLabels, a.ColNames())
	if err != nil {
		return nil, nil, topn.Options{}, fmt.Errorf("%w: %v", ErrLabelMismatch, err)
	}

	if opts.Weights != nil {
		weightLabels := make([]string, 0, len(opts.Weights))
		for l := range opts.Weights {
			weightLabels = append(weightLabels, l)
		}
		if err := checkBijection(sLabels, weightLabels); err != nil {
			return nil, nil, topn.Options{}, fmt.Errorf("%w", ErrWeightsLabelMismatch)
		}
	}

	if opts.TopN > 0 && opts.TopN > a.Rows() {
		return nil, nil, topn.Options{}, ErrTopNExceedsRows
	}
	for _, label := range opts.SearchStart {
		if _, ok := a.RowIndex(label); !ok {
			return nil, nil, topn.Options{}, fmt.Errorf("%w: %q", ErrUnknownLabel, label)
		}
	}

	metaOpts := metafeature.Options{
		Method:  opts.Method,
		Kernel:  opts.kernelOptions(),
		Search:  opts.SearchMethod,
		MaxSize: opts.MaxSize,
	}
	topnOpts := topn.Options{
		Search:        metaOpts,
		TopN:          opts.TopN,
		SearchStart:   opts.SearchStart,
		BestScoreOnly: opts.BestScoreOnly,
		NCores:        opts.NCores,
	}
	return a, aligned, topnOpts, nil
}

// validateGrid checks every cell is 0/1, every row/column label is
// non-empty and unique, and no row is all-zero or all-one, entirely
// before bitmat.New is called — so bitmat.New's own panics (reserved
// for conditions that should be unreachable given validated input) are
// never triggered by caller-supplied data.
func validateGrid(grid [][]uint8, rowNames, colNames []string) error {
	if len(grid) == 0 || len(grid[0]) == 0 {
		return ErrEmptyMatrix
	}
	if len(grid) != len(rowNames) {
		return ErrMalformedMatrix
	}
	n := len(grid[0])
	if n != len(colNames) {
		return ErrMalformedMatrix
	}

	seenRows := make(map[string]struct{}, len(rowNames))
	for i, row := range grid {
		if len(row) != n {
			return ErrMalformedMatrix
		}
		name := rowNames[i]
		if name == "" {
			return fmt.Errorf("%w: row %d", ErrDuplicateLabel, i)
		}
		if _, dup := seenRows[name]; dup {
			return fmt.Errorf("%w: row label %q", ErrDuplicateLabel, name)
		}
		seenRows[name] = struct{}{}

		ones := 0
		for _, v := range row {
			if v != 0 && v != 1 {
				return fmt.Errorf("%w: row %q", ErrNonBinaryValue, name)
			}
			if v == 1 {
				ones++
			}
		}
		if ones == 0 || ones == n {
			return fmt.Errorf("%w: row %q", ErrDegenerateRow, name)
		}
	}

	seenCols := make(map[string]struct{}, len(colNames))
	for j, name := range colNames {
		if name == "" {
			return fmt.Errorf("%w: column %d", ErrDuplicateLabel, j)
		}
		if _, dup := seenCols[name]; dup {
			return fmt.Errorf("%w: column label %q", ErrDuplicateLabel, name)
		}
		seenCols[name] = struct{}{}
	}
	return nil
}

// checkBijection reports an error unless a and b contain exactly the
// same set of labels with no internal duplicates on either side.
func checkBijection(a, b []string) error {
	setA := make(map[string]struct{}, len(a))
	for _, l := range a {
		if _, dup := setA[l]; dup {
			return fmt.Errorf("%w: duplicate label %q", ErrLabelMismatch, l)
		}
		setA[l] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, l := range b {
		if _, dup := setB[l]; dup {
			return fmt.Errorf("%w: duplicate label %q", ErrLabelMismatch, l)
		}
		setB[l] = struct{}{}
	}
	if len(setA) != len(setB) {
		return fmt.Errorf("%w: %d vs %d distinct labels", ErrLabelMismatch, len(setA), len(setB))
	}
	for l := range setA {
		if _, ok := setB[l]; !ok {
			return fmt.Errorf("%w: %q", ErrLabelMismatch, l)
		}
	}
	return nil
}
