package kernel

import (
	"math"
	"sort"

	"github.com/bioc/CaDrA/bitmat"
)

// ksScorer implements the weighted one-sided/two-sided two-sample
// Kolmogorov-Smirnov kernel described in spec.md §4.2. Samples are
// walked in descending-s rank order; the running difference between
// the empirical CDF restricted to rows where the candidate is 1 and
// the CDF restricted to rows where it is 0 is the test statistic,
// exactly the GSEA-style weighted running-enrichment construction the
// original CaDrA scorer is built on.
type ksScorer struct{}

// ksStatistic computes the signed KS statistic of one candidate row
// against s, together with the group sizes n1, n0 the asymptotic
// p-value needs. s is already ranked in descending order, order[k]
// giving the original index of the k-th highest-scoring sample.
func ksStatistic(bit bitmat.Row, order []int, weights []float64, alt Alternative) (stat float64, n1, n0 int) {
	var w1Total float64
	for _, idx := range order {
		if bit.At(idx) == 1 {
			n1++
			if weights != nil {
				w1Total += weights[idx]
			}
		} else {
			n0++
		}
	}
	if weights == nil {
		w1Total = float64(n1)
	}
	if n1 == 0 || n0 == 0 {
		return 0, n1, n0
	}

	var cum1, cum0 float64
	var maxPos, maxNeg float64 // max(D), max(-D)
	invN0 := 1.0 / float64(n0)
	for _, idx := range order {
		if bit.At(idx) == 1 {
			if weights != nil {
				cum1 += weights[idx] / w1Total
			} else {
				cum1 += 1.0 / w1Total
			}
		} else {
			cum0 += invN0
		}
		d := cum1 - cum0
		if d > maxPos {
			maxPos = d
		}
		if -d > maxNeg {
			maxNeg = -d
		}
	}

	switch alt {
	case Greater:
		// "greater" tracks the maximum positive deviation of the "1"
		// CDF above the "0" CDF.
		return maxPos, n1, n0
	case Less:
		// "less" tracks the maximum deviation of the "1" CDF below
		// the "0" CDF, reported as a positive magnitude of interest.
		return maxNeg, n1, n0
	default:
		if maxPos > maxNeg {
			return maxPos, n1, n0
		}
		return maxNeg, n1, n0
	}
}

func (ksScorer) score(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts Options, includeCandidate bool) ([]RowScore, float64, error) {
	order := rankOrder(s)
	var weights []float64
	if opts.Weights != nil {
		weights = weightsToSlice(opts.Weights, sLabels)
	}

	metaUnion := metaUnionOrNil(a, metaRows)
	var metaScore float64
	if metaUnion != nil {
		stat, n1, n0 := ksStatistic(*metaUnion, order, weights, opts.Alternative)
		metaScore = ksEncode(stat, n1, n0, opts.Metric, opts.Alternative)
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
		stat, n1, n0 := ksStatistic(combined, order, weights, opts.Alternative)
		out = append(out, RowScore{
			Row:   i,
			Label: a.RowNames()[i],
			Score: ksEncode(stat, n1, n0, opts.Metric, opts.Alternative),
		})
	}
	sortDescending(out)
	return out, metaScore, nil
}

// KSResult augments the standard RowScore list with the
// weighted-p-value flag spec.md §9's open question (i) calls for: in
// PValue metric mode, weighted data is still scored against the
// unweighted Kolmogorov p-value, and that substitution is surfaced
// here rather than silently trusted.
type KSResult struct {
	Scores                     []RowScore
	WeightedPValueApproximated bool
}

// ScoreKS is a KS-kernel-specific entry point for callers that need
// the WeightedPValueApproximated flag alongside the standard scores.
// The search path (kernel.Resolve, cadra.CandidateSearch) does not call
// it; ksScorer itself satisfies the generic Scorer interface for
// uniform dispatch in kernel.Resolve.
func ScoreKS(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts Options) (KSResult, error) {
	scores, err := (ksScorer{}).ScoreAll(a, s, sLabels, metaRows, opts)
	if err != nil {
		return KSResult{}, err
	}
	return KSResult{
		Scores:                     scores,
		WeightedPValueApproximated: opts.Weights != nil && opts.Metric == PValue,
	}, nil
}

func (k ksScorer) ScoreAll(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts Options) ([]RowScore, error) {
	out, _, err := k.score(a, s, sLabels, metaRows, opts, true)
	return out, err
}

func (k ksScorer) ScoreMeta(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts Options) (float64, error) {
	_, meta, err := k.score(a, s, sLabels, metaRows, opts, false)
	return meta, err
}

// ksEncode turns a raw KS statistic into the reported score: the
// statistic itself in Stat mode, or -log(p) in PValue mode. Per
// spec.md §4.2's open question, weighted data always uses the
// unweighted p-value formula even in PValue mode; callers that need to
// know this happened can inspect KSResult.WeightedPValueApproximated,
// as returned by ScoreKS.
func ksEncode(stat float64, n1, n0 int, metric Metric, alt Alternative) float64 {
	if metric == Stat {
		return stat
	}
	p := kolmogorovPValue(stat, n1, n0, alt)
	return -math.Log(clampLogInput(p))
}

// kolmogorovPValue returns the asymptotic p-value of a two-sample KS
// statistic stat with sample sizes n1, n0. TwoSided uses the classical
// Kolmogorov distribution's series expansion; Less/Greater use the
// one-sided Smirnov approximation, since stat is already the signed
// one-tailed deviation in that case. Weighted statistics are, per
// spec.md, still scored against this unweighted formula.
func kolmogorovPValue(stat float64, n1, n0 int, alt Alternative) float64 {
	if n1 == 0 || n0 == 0 {
		return 1
	}
	neff := float64(n1) * float64(n0) / float64(n1+n0)
	if alt != TwoSided {
		// One-sided asymptotic approximation (Smirnov):
		//   P(D+ >= d) ~= exp(-2 * neff * d^2).
		return math.Exp(-2 * neff * stat * stat)
	}
	lambda := (math.Sqrt(neff) + 0.12 + 0.11/math.Sqrt(neff)) * stat
	return kolmogorovTwoSidedPValue(lambda)
}

// kolmogorovTwoSidedPValue evaluates the classical Kolmogorov
// distribution's survival function via its asymptotic alternating
// series 2*sum((-1)^(k-1) exp(-2 k^2 lambda^2)), used when an alternative explicitly wants the two-sided
// p-value rather than the one-sided approximation above.
func kolmogorovTwoSidedPValue(lambda float64) float64 {
	if lambda < 0.2 {
		return 1
	}
	sum := 0.0
	sign := 1.0
	for k := 1; k <= 100; k++ {
		term := sign * math.Exp(-2*float64(k)*float64(k)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-12 {
			break
		}
		sign = -sign
	}
	p := 2 * sum
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return p
}

// rankOrder returns sample indices sorted by descending s, i.e. the
// k-th entry is the index of the k-th highest-scoring sample. This is
// the ordering spec.md §4.2 requires before assigning ranks 1..N.
func rankOrder(s []float64) []int {
	order := make([]int, len(s))
	for i := range order {
		order[i] = i
	}
	// A stable descending sort by value; ties keep original order,
	// which is immaterial to the running-CDF statistic since tied
	// positions contribute identically regardless of sub-order.
	sort.SliceStable(order, func(i, j int) bool { return s[order[i]] > s[order[j]] })
	return order
}

func weightsToSlice(weights map[string]float64, labels []string) []float64 {
	out := make([]float64, len(labels))
	for i, l := range labels {
		out[i] = weights[l]
	}
	return out
}
