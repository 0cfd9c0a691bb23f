package kernel

import (
	"math"

	"github.com/bioc/CaDrA/bitmat"

	"gonum.org/v1/gonum/stat/distuv"
)

// wilcoxonScorer implements the rank-sum kernel of spec.md §4.2,
// ported from the rank-assignment routine of the pack's
// stat/wilcoxontest package and generalized with the exact small-sample
// and normal-approximation paths the spec requires.
type wilcoxonScorer struct{}

func (wilcoxonScorer) score(a *bitmat.Matrix, s []float64, metaRows []int, opts Options, includeCandidate bool) ([]RowScore, float64, error) {
	ranks := descendingRanks(s)

	metaUnion := metaUnionOrNil(a, metaRows)
	var metaScore float64
	if metaUnion != nil {
		metaScore = wilcoxonEncode(ranks, *metaUnion, opts)
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
			Score: wilcoxonEncode(ranks, combined, opts),
		})
	}
	sortDescending(out)
	return out, metaScore, nil
}

func (w wilcoxonScorer) ScoreAll(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts Options) ([]RowScore, error) {
	out, _, err := w.score(a, s, metaRows, opts, true)
	return out, err
}

func (w wilcoxonScorer) ScoreMeta(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts Options) (float64, error) {
	_, meta, err := w.score(a, s, metaRows, opts, false)
	return meta, err
}

// wilcoxonW computes the rank-sum statistic W = sum(ranks where r=1) -
// n1(n1+1)/2 and reports whether any two samples share a rank (a tie
// in s, which descendingRanks resolves by averaging), which gates the
// exact-vs-normal path choice.
func wilcoxonW(ranks []float64, row bitmat.Row) (w float64, n1, n0 int, tied bool) {
	seen := make(map[float64]struct{}, len(ranks))
	for i, r := range ranks {
		if _, dup := seen[r]; dup {
			tied = true
		}
		seen[r] = struct{}{}
		if row.At(i) == 1 {
			n1++
			w += r
		} else {
			n0++
		}
	}
	w -= float64(n1*(n1+1)) / 2
	return w, n1, n0, tied
}

func wilcoxonEncode(ranks []float64, row bitmat.Row, opts Options) float64 {
	w, n1, n0, tied := wilcoxonW(ranks, row)
	if opts.Metric == Stat {
		return w
	}
	p := wilcoxonPValue(w, n1, n0, tied, opts.Alternative)
	return -math.Log(clampLogInput(p))
}

// wilcoxonPValue reports the rank-sum p-value for the chosen
// alternative. It uses the exact distribution when both sample sizes
// are below 50 and there are no ties, per spec.md §4.2/§9, and falls
// back to the continuity-corrected normal approximation otherwise.
func wilcoxonPValue(w float64, n1, n0 int, tied bool, alt Alternative) float64 {
	if n1 == 0 || n0 == 0 {
		return 1
	}
	if n1 < 50 && n0 < 50 && !tied {
		return wilcoxonExactPValue(int(math.Round(w)), n1, n0, alt)
	}
	return wilcoxonNormalPValue(w, n1, n0, alt)
}

func wilcoxonNormalPValue(w float64, n1, n0 int, alt Alternative) float64 {
	mu := 0.0
	sigma := math.Sqrt(float64(n1) * float64(n0) * float64(n1+n0+1) / 12)
	if sigma == 0 {
		return 1
	}
	norm := distuv.Normal{Mu: mu, Sigma: sigma}
	// Continuity correction shifts w toward 0 by 0.5 before evaluating
	// the normal approximation to the rank-sum null distribution.
	const correction = 0.5
	switch alt {
	case Greater:
		return norm.Survival(w - correction)
	case Less:
		return norm.CDF(w + correction)
	default:
		adj := w - correction
		if w < 0 {
			adj = w + correction
		}
		return 2 * norm.Survival(math.Abs(adj))
	}
}

// wilcoxonExactPValue enumerates the exact rank-sum null distribution
// via the classical recursive count of subsets of {1..n1+n0} of size
// n1 achieving each possible rank-sum, then sums the tail the
// alternative selects. n1,n0 < 50 keeps this recursion's table
// (O(n1*n0*(n1+n0)) cells) small.
func wilcoxonExactPValue(w, n1, n0 int, alt Alternative) float64 {
	m, n := n1, n0
	maxU := m * n
	// counts[u] = number of ways to choose m ranks from m+n summing to
	// u more than the minimum possible sum m(m+1)/2, i.e. the
	// Mann-Whitney U distribution, which is a shift of the rank-sum W.
	counts := mannWhitneyCounts(m, n)
	total := 0.0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 1
	}
	u := w // W as defined here already equals the U statistic (rank sum minus its minimum).
	if u < 0 {
		u = 0
	}
	if u > float64(maxU) {
		u = float64(maxU)
	}
	ui := int(math.Round(u))

	cdfAtMost := func(k int) float64 {
		if k < 0 {
			return 0
		}
		if k > maxU {
			k = maxU
		}
		s := 0.0
		for i := 0; i <= k; i++ {
			s += counts[i]
		}
		return s / total
	}

	switch alt {
	case Greater:
		return 1 - cdfAtMost(ui-1)
	case Less:
		return cdfAtMost(ui)
	default:
		lower := cdfAtMost(ui)
		upper := 1 - cdfAtMost(ui-1)
		p := 2 * math.Min(lower, upper)
		if p > 1 {
			p = 1
		}
		return p
	}
}

// mannWhitneyCounts returns, for u = 0..m*n, the number of ways to
// partition {1,...,m+n} ranks into a group of m and a group of n such
// that the U statistic (rank sum of the m-group minus m(m+1)/2) equals
// u. This is the standard O(m*n*(m+n)) dynamic program used to build
// the exact Mann-Whitney/Wilcoxon null distribution.
func mannWhitneyCounts(m, n int) []float64 {
	maxU := m * n
	// dp[j][u] = number of ways using j of the first items assigned to
	// the "in group" class to reach partial U value u, built up one
	// item at a time (standard generating-function recursion for the
	// Gaussian binomial coefficient).
	dp := make([][]float64, m+1)
	for j := range dp {
		dp[j] = make([]float64, maxU+1)
	}
	dp[0][0] = 1
	// Process ranks 1..m+n one at a time; each either joins the
	// m-group (contributing its current "excess above minimum
	// position" to U) or the n-group.
	for item := 1; item <= m+n; item++ {
		for j := minInt(item, m); j >= 1; j-- {
			// Including this item as the j-th member of the m-group:
			// its contribution to U above the minimum arrangement is
			// (item - j), the number of n-group items already placed.
			contrib := item - j
			if contrib > maxU {
				continue
			}
			for u := maxU; u >= contrib; u-- {
				dp[j][u] += dp[j-1][u-contrib]
			}
		}
	}
	return dp[m]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
