// Package kernel implements the pluggable row-score engine (component
// B): a uniform Scorer contract plus six concrete scoring functions
// that rank candidate feature rows against a continuous per-sample
// response.
package kernel

import (
	"math"
	"sort"

	"github.com/bioc/CaDrA/bitmat"
)

// Alternative selects the tail of a one- or two-sided test.
type Alternative int

const (
	// TwoSided reports the magnitude of the deviation, ignoring sign.
	TwoSided Alternative = iota
	// Less favors candidates whose union is skewed toward lower s.
	Less
	// Greater favors candidates whose union is skewed toward higher s.
	Greater
)

// Metric selects between a kernel's raw statistic and its -log(p-value)
// encoding, for the two kernels (KS, Wilcoxon) that support both.
type Metric int

const (
	// Stat reports the kernel's raw test statistic.
	Stat Metric = iota
	// PValue reports -log(p-value); higher is still better.
	PValue
)

// CMethod selects the correlation kernel's estimator.
type CMethod int

const (
	Pearson CMethod = iota
	Spearman
)

// smallestPositive is substituted for NaN, zero, or negative values
// that would otherwise be undefined input to a logarithm, per
// spec.md §4.2 ("NaN/undefined values are replaced by the smallest
// positive representable real before any logarithm").
const smallestPositive = 5e-324 // math.SmallestNonzeroFloat64, spelled out for clarity at call sites

// Options carries every per-call tuning knob a kernel may consult.
// Unused fields are ignored by kernels that don't need them.
type Options struct {
	Alternative Alternative
	Metric      Metric
	CMethod     CMethod
	// Weights are optional per-sample weights for the KS kernel, keyed
	// by the same sample labels as s. Nil means unweighted.
	Weights map[string]float64
	// K is the neighbor count for the k-NN MI kernel (default 3).
	K int
	// Custom is the user-supplied scorer for Method == Custom.
	Custom Func
}

// RowScore is one row's score, as returned by a Scorer. Row is the
// row's index in the Matrix that produced it; Label is its name.
type RowScore struct {
	Row   int
	Label string
	Score float64
}

// Scorer is the uniform contract every kernel satisfies: score every
// candidate row of A against s, optionally OR-combined with the
// current meta-feature union, and return the scores sorted descending.
//
// If metaRows is non-empty, candidates are {i not in metaRows} and
// each candidate is OR-combined with the union of metaRows before
// scoring; a candidate whose OR result is all-ones cannot be scored
// and is dropped. If metaRows is empty, every row of A is a candidate
// and no OR-combination happens.
type Scorer interface {
	ScoreAll(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts Options) ([]RowScore, error)
	// ScoreMeta scores the meta-feature union alone (no candidate
	// row), for the symmetric stopping check spec.md §4.2 requires.
	ScoreMeta(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts Options) (float64, error)
}

// Func is the user-supplied callable backing the Custom kernel. It
// must satisfy the same labeling and ordering contract as Scorer.ScoreAll.
type Func func(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts Options) ([]RowScore, error)

// Method names the six supported kernels.
type Method int

const (
	KSStat Method = iota
	KSPValue
	WilcoxStat
	WilcoxPValue
	Revealer
	KNNMI
	Correlation
	Custom
)

// Resolve returns the concrete Scorer for a Method.
func Resolve(m Method) Scorer {
	switch m {
	case KSStat, KSPValue:
		return ksScorer{}
	case WilcoxStat, WilcoxPValue:
		return wilcoxonScorer{}
	case Revealer:
		return revealerScorer{}
	case KNNMI:
		return knnMIScorer{}
	case Correlation:
		return correlationScorer{}
	case Custom:
		return customScorer{}
	default:
		panic("kernel: unknown method")
	}
}

// candidateRows returns the set of candidate row indices for a
// scoring pass: every row of a not in metaRows.
func candidateRows(a *bitmat.Matrix, metaRows []int) []int {
	excluded := make(map[int]struct{}, len(metaRows))
	for _, r := range metaRows {
		excluded[r] = struct{}{}
	}
	out := make([]int, 0, a.Rows()-len(metaRows))
	for i := 0; i < a.Rows(); i++ {
		if _, skip := excluded[i]; !skip {
			out = append(out, i)
		}
	}
	return out
}

// candidateRow returns the bits to score for candidate row i: just
// that row if no meta-feature is active, or its OR with the current
// union otherwise. ok is false if the OR-combination is all-ones and
// so cannot be scored (spec.md §4.2).
func candidateRow(a *bitmat.Matrix, i int, metaUnion *bitmat.Row) (bitmat.Row, bool) {
	row := a.Row(i)
	if metaUnion == nil {
		return row, true
	}
	combined := row.Or(*metaUnion)
	if combined.AllOnes() {
		return combined, false
	}
	return combined, true
}

// metaUnionOrNil builds the OR-union row of metaRows, or returns nil
// if metaRows is empty (no meta-feature active yet).
func metaUnionOrNil(a *bitmat.Matrix, metaRows []int) *bitmat.Row {
	if len(metaRows) == 0 {
		return nil
	}
	u := a.OrUnion(metaRows)
	return &u
}

// sortDescending sorts scores from highest to lowest, breaking ties by
// label for determinism (kernels don't know about union popcount, so
// that tie-break, per spec.md §4.3, is applied by the search engine,
// not here).
func sortDescending(scores []RowScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Label < scores[j].Label
	})
}

// descendingRanks assigns each sample a rank 1..N by descending s,
// matching spec.md §4.2's "sorted by s in descending order and
// assigned ranks 1..N" for the KS and Wilcoxon kernels. Ties receive
// the average of the ranks they span.
func descendingRanks(s []float64) []float64 {
	n := len(s)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return s[idx[i]] > s[idx[j]] })
	ranks := make([]float64, n)
	i := 0
	for i < n {
		j := i
		for j+1 < n && s[idx[j+1]] == s[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// clampLogInput replaces a non-positive or NaN value with the smallest
// positive representable real before a caller takes its logarithm.
func clampLogInput(p float64) float64 {
	if math.IsNaN(p) || p <= 0 {
		return smallestPositive
	}
	return p
}

// AlignByLabel reorders values (keyed by valueLabels) to match target
// order, returning an error if a target label is missing from
// valueLabels. Extra or duplicated entries in valueLabels are not
// detected. The root cadra package uses it to align an input score
// vector to a matrix's column order before any kernel sees it, after
// its own checkBijection has verified the label sets match.
func AlignByLabel(values []float64, valueLabels []string, target []string) ([]float64, error) {
	idx := make(map[string]int, len(valueLabels))
	for i, l := range valueLabels {
		idx[l] = i
	}
	out := make([]float64, len(target))
	for j, l := range target {
		i, ok := idx[l]
		if !ok {
			return nil, &LabelError{Label: l}
		}
		out[j] = values[i]
	}
	return out, nil
}

// LabelError reports a label present on one side of an alignment but
// missing on the other.
type LabelError struct{ Label string }

func (e *LabelError) Error() string { return "kernel: label not found: " + e.Label }
