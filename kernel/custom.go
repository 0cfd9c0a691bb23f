package kernel

import (
	"fmt"
	"math"

	"github.com/bioc/CaDrA/bitmat"
)

// customScorer wraps a user-supplied Func so it satisfies Scorer,
// validating the contract every kernel must meet: labels must be a
// subset of the candidate row names and scores must already be sorted
// descending (spec.md §7, "custom kernel return value fails the
// contract").
type customScorer struct{}

func (customScorer) ScoreAll(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts Options) ([]RowScore, error) {
	if opts.Custom == nil {
		return nil, fmt.Errorf("kernel: custom method selected without a callable")
	}
	scores, err := opts.Custom(a, s, sLabels, metaRows, opts)
	if err != nil {
		return nil, err
	}
	if err := validateCustomContract(a, metaRows, scores); err != nil {
		return nil, err
	}
	return scores, nil
}

func (customScorer) ScoreMeta(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts Options) (float64, error) {
	// Func only scores candidates OR-combined with a meta-feature
	// exclusion set; it has no direct way to ask for the score of a
	// union with nothing OR'd in. Reconstruct it exactly instead of
	// approximating: pull one row r out of metaRows and call Custom
	// with the rest excluded. The returned score for candidate row r
	// is, by Func's own contract, the score of r OR'd with the union
	// of the rest — which is exactly the union of all of metaRows.
	if opts.Custom == nil {
		return 0, fmt.Errorf("kernel: custom method selected without a callable")
	}
	if len(metaRows) == 0 {
		scores, err := opts.Custom(a, s, sLabels, nil, opts)
		if err != nil {
			return 0, err
		}
		if len(scores) == 0 {
			return 0, nil
		}
		return scores[0].Score, nil
	}
	r := metaRows[len(metaRows)-1]
	rest := metaRows[:len(metaRows)-1]
	scores, err := opts.Custom(a, s, sLabels, rest, opts)
	if err != nil {
		return 0, err
	}
	for _, sc := range scores {
		if sc.Row == r {
			return sc.Score, nil
		}
	}
	// r's OR-combination with the rest was all-ones and so was dropped
	// by Func's own contract: the meta-feature's union is unscorable,
	// an edge case equivalent to the degenerate-run case of spec.md §7.
	return math.Inf(-1), nil
}

func validateCustomContract(a *bitmat.Matrix, metaRows []int, scores []RowScore) error {
	excluded := make(map[int]struct{}, len(metaRows))
	for _, r := range metaRows {
		excluded[r] = struct{}{}
	}
	for i, sc := range scores {
		if sc.Row < 0 || sc.Row >= a.Rows() {
			return fmt.Errorf("kernel: custom scorer returned out-of-range row %d", sc.Row)
		}
		if _, skip := excluded[sc.Row]; skip {
			return fmt.Errorf("kernel: custom scorer returned a meta-feature row %d", sc.Row)
		}
		if sc.Label != a.RowNames()[sc.Row] {
			return fmt.Errorf("kernel: custom scorer label %q does not match row %d (%q)", sc.Label, sc.Row, a.RowNames()[sc.Row])
		}
		if i > 0 && scores[i-1].Score < sc.Score {
			return fmt.Errorf("kernel: custom scorer result is not sorted descending")
		}
	}
	return nil
}
