package kernel

import (
	"math"

	"github.com/bioc/CaDrA/bitmat"
)

// revealerScorer implements the conditional-mutual-information kernel
// of spec.md §4.2: I(S;R|U) = H(S,U)+H(R,U)-H(U)-H(S,R,U), where the
// joint entropies of the continuous response s with the binary
// candidate/meta-feature groupings are estimated from Gaussian kernel
// density estimates, generalizing the teacher's stat/it package (whose
// Entropy/MutualInformation operate on discrete empirical histograms,
// Emperical1D/2D/3D) to s's continuous domain.
type revealerScorer struct{}

func (revealerScorer) score(a *bitmat.Matrix, s []float64, metaRows []int, includeCandidate bool) ([]RowScore, float64, error) {
	metaUnion := metaUnionOrNil(a, metaRows)
	var metaScore float64
	if metaUnion != nil {
		// The meta-feature's own score, for the symmetric stopping
		// check (spec.md §4.2): scored as an unconditioned candidate,
		// i.e. I(S;meta) with no further grouping variable.
		metaScore = conditionalMI(s, groupLabels(*metaUnion, len(s)), zeros(len(s)))
	}
	if !includeCandidate {
		return nil, metaScore, nil
	}

	uLabels := zeros(len(s))
	if metaUnion != nil {
		uLabels = groupLabels(*metaUnion, len(s))
	}
	rows := candidateRows(a, metaRows)
	out := make([]RowScore, 0, len(rows))
	for _, i := range rows {
		// REVEALER conditions on the raw candidate row, not its union
		// with the meta-feature (spec.md §4.2); the OR-combination is
		// only used to decide whether the candidate is droppable.
		if _, ok := candidateRow(a, i, metaUnion); !ok {
			continue
		}
		rLabels := groupLabels(a.Row(i), len(s))
		out = append(out, RowScore{
			Row:   i,
			Label: a.RowNames()[i],
			Score: conditionalMI(s, rLabels, uLabels),
		})
	}
	sortDescending(out)
	return out, metaScore, nil
}

func (r revealerScorer) ScoreAll(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts Options) ([]RowScore, error) {
	out, _, err := r.score(a, s, metaRows, true)
	return out, err
}

func (r revealerScorer) ScoreMeta(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts Options) (float64, error) {
	_, meta, err := r.score(a, s, metaRows, false)
	return meta, err
}

func zeros(n int) []int { return make([]int, n) }

func groupLabels(row bitmat.Row, n int) []int {
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = int(row.At(i))
	}
	return out
}

// conditionalMI estimates I(S;R|U) for binary r, u against continuous
// s via I(S;R|U) = H(S,U)+H(R,U)-H(U)-H(S,R,U). The terms involving s
// are Gaussian-KDE resubstitution joint entropies; H(R,U) and H(U) are
// plain discrete entropies over the binary labelings themselves.
func conditionalMI(s []float64, r, u []int) float64 {
	hSU := jointEntropyContinuousDiscrete(s, u)
	hRU := discreteEntropy(pairwise(r, u))
	hU := discreteEntropy(u)
	hSRU := jointEntropyContinuousDiscrete(s, pairwise(r, u))
	ic := hSU + hRU - hU - hSRU
	if math.IsNaN(ic) || math.IsInf(ic, 0) {
		return 0
	}
	return ic
}

// pairwise combines two binary labelings into a 4-way group id.
func pairwise(a, b []int) []int {
	out := make([]int, len(a))
	for i := range a {
		out[i] = a[i]*2 + b[i]
	}
	return out
}

// jointEntropyContinuousDiscrete estimates H(S, G) for continuous s
// and a discrete grouping g via the resubstitution plug-in estimator
//
//	H(S,G) ~= -(1/N) sum_i log( p(g_i) * khat_{g_i}(s_i) )
//
// where khat_c is a leave-one-out Gaussian KDE fitted on the s values
// whose group equals c, and p(g_i) is the empirical group frequency.
func jointEntropyContinuousDiscrete(s []float64, g []int) float64 {
	n := len(s)
	byGroup := make(map[int][]int) // group -> sample indices
	for i, gi := range g {
		byGroup[gi] = append(byGroup[gi], i)
	}
	bandwidths := make(map[int]float64, len(byGroup))
	for gi, idxs := range byGroup {
		vals := make([]float64, len(idxs))
		for k, i := range idxs {
			vals[k] = s[i]
		}
		bandwidths[gi] = silverman(vals)
	}

	total := 0.0
	for i := 0; i < n; i++ {
		gi := g[i]
		idxs := byGroup[gi]
		p := float64(len(idxs)) / float64(n)
		dens := leaveOneOutKDE(s, idxs, i, bandwidths[gi])
		total -= math.Log(clampLogInput(p * dens))
	}
	return total / float64(n)
}

// discreteEntropy is the empirical Shannon entropy of an integer
// labeling, matching the teacher's it.Entropy over an empirical
// distribution (stat/it/entropy.go, stat/it/probabilityestimators.go).
func discreteEntropy(labels []int) float64 {
	counts := make(map[int]int)
	for _, l := range labels {
		counts[l]++
	}
	n := float64(len(labels))
	h := 0.0
	for _, c := range counts {
		p := float64(c) / n
		if p > 0 {
			h -= p * math.Log(p)
		}
	}
	return h
}

// silverman returns Silverman's rule-of-thumb bandwidth for a Gaussian
// KDE fitted on vals.
func silverman(vals []float64) float64 {
	n := len(vals)
	if n < 2 {
		return 1
	}
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(n)
	varSum := 0.0
	for _, v := range vals {
		d := v - mean
		varSum += d * d
	}
	sd := math.Sqrt(varSum / float64(n-1))
	if sd == 0 {
		sd = 1e-6
	}
	h := 1.06 * sd * math.Pow(float64(n), -0.2)
	if h <= 0 {
		h = 1e-6
	}
	return h
}

const invSqrt2Pi = 0.3989422804014327

func gaussianKernel(x float64) float64 {
	return invSqrt2Pi * math.Exp(-0.5*x*x)
}

// leaveOneOutKDE estimates the density at s[at] using the Gaussian
// kernel over every index in group except at itself, avoiding the
// self-match singularity in the resubstitution entropy estimate.
func leaveOneOutKDE(s []float64, group []int, at int, h float64) float64 {
	m := len(group) - 1
	if m <= 0 {
		return 1 / h
	}
	sum := 0.0
	for _, j := range group {
		if j == at {
			continue
		}
		sum += gaussianKernel((s[at] - s[j]) / h)
	}
	return sum / (float64(m) * h)
}
