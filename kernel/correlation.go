package kernel

import (
	"math"
	"sort"

	"github.com/bioc/CaDrA/bitmat"

	"gonum.org/v1/gonum/stat"
)

// correlationScorer implements the Pearson/Spearman correlation
// kernel of spec.md §4.2, built directly on the teacher's own
// gonum.org/v1/gonum/stat.Correlation.
type correlationScorer struct{}

func (correlationScorer) score(a *bitmat.Matrix, s []float64, metaRows []int, opts Options, includeCandidate bool) ([]RowScore, float64, error) {
	metaUnion := metaUnionOrNil(a, metaRows)
	var metaScore float64
	if metaUnion != nil {
		metaScore = correlationOf(s, bitsOf(*metaUnion, len(s)), opts)
	}
	if !includeCandidate {
		return nil, metaScore, nil
	}

	rows := candidateRows(a, metaRows)
	out := make([]RowScore, 0, len(rows))
	for _, i := range rows {
		combined, ok := candidateRow(a, i, metaUnion)
		if !ok {
			continue
		}
		out = append(out, RowScore{
			Row:   i,
			Label: a.RowNames()[i],
			Score: correlationOf(s, bitsOf(combined, len(s)), opts),
		})
	}
	sortDescending(out)
	return out, metaScore, nil
}

func (c correlationScorer) ScoreAll(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts Options) ([]RowScore, error) {
	out, _, err := c.score(a, s, metaRows, opts, true)
	return out, err
}

func (c correlationScorer) ScoreMeta(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts Options) (float64, error) {
	_, meta, err := c.score(a, s, metaRows, opts, false)
	return meta, err
}

func bitsOf(row bitmat.Row, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = float64(row.At(i))
	}
	return out
}

// correlationOf computes Pearson or Spearman correlation between s
// and the binary vector r, applying the sign convention spec.md §4.2
// specifies: |corr| with no alternative, signed corr (negated for
// Less) otherwise. Near-zero variance (a constant r, which input
// validation otherwise prevents as an all-zero/all-one row, but which
// can still occur transiently mid-search) returns 0 rather than NaN,
// per spec.md §7's numerical-edge-case handling.
func correlationOf(s, r []float64, opts Options) float64 {
	x, y := s, r
	if opts.CMethod == Spearman {
		x = rankAscending(s)
		y = rankAscending(r)
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) {
		return 0
	}
	switch opts.Alternative {
	case Less:
		return -c
	case Greater:
		return c
	default:
		return math.Abs(c)
	}
}

// rankAscending assigns ranks 1..N by ascending value, averaging ties,
// the convention Spearman correlation requires.
func rankAscending(vals []float64) []float64 {
	n := len(vals)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return vals[idx[i]] < vals[idx[j]] })
	ranks := make([]float64, n)
	i := 0
	for i < n {
		j := i
		for j+1 < n && vals[idx[j+1]] == vals[idx[i]] {
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
