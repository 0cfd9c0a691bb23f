package kernel

import (
	"math"
	"sort"

	"github.com/bioc/CaDrA/bitmat"

	"gonum.org/v1/gonum/mathext"
)

const defaultKNN = 3

// knnMIScorer implements the k-nearest-neighbor mutual information
// kernel of spec.md §4.2: I(s;r) (or I(s; r-or-u) with a meta-feature
// present), estimated with a Kraskov/Ross-style mixed continuous
// (s) - discrete (binary composite) estimator. The digamma term comes
// from the teacher's own special-functions package,
// gonum.org/v1/gonum/mathext.
type knnMIScorer struct{}

func (knnMIScorer) score(a *bitmat.Matrix, s []float64, metaRows []int, opts Options, includeCandidate bool) ([]RowScore, float64, error) {
	k := opts.K
	if k <= 0 {
		k = defaultKNN
	}
	metaUnion := metaUnionOrNil(a, metaRows)
	var metaScore float64
	if metaUnion != nil {
		metaScore = knnMI(s, groupLabels(*metaUnion, len(s)), k)
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
			Score: knnMI(s, groupLabels(combined, len(s)), k),
		})
	}
	sortDescending(out)
	return out, metaScore, nil
}

func (k knnMIScorer) ScoreAll(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts Options) ([]RowScore, error) {
	out, _, err := k.score(a, s, metaRows, opts, true)
	return out, err
}

func (k knnMIScorer) ScoreMeta(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts Options) (float64, error) {
	_, meta, err := k.score(a, s, metaRows, opts, false)
	return meta, err
}

// knnMI estimates the mutual information between continuous s and a
// discrete (here binary) label g, following Ross (2014)'s mixed
// estimator:
//
//	I(S;G) ~= psi(N) + psi(k) - <psi(N_x_i)> - <psi(M_y_i)>
//
// where for each sample i: M_y_i is the size of i's class, k_i is
// min(k, M_y_i - 1) nearest same-class neighbors in s, eps_i is the
// distance to the k_i-th such neighbor, and N_x_i counts all samples
// (any class) within eps_i of s_i.
func knnMI(s []float64, g []int, k int) float64 {
	n := len(s)
	if n < 2 {
		return 0
	}
	classIdx := make(map[int][]int)
	for i, gi := range g {
		classIdx[gi] = append(classIdx[gi], i)
	}
	if len(classIdx) < 2 {
		return 0 // a constant label carries no information about s
	}

	sumPsiNx := 0.0
	sumPsiMy := 0.0
	for i := 0; i < n; i++ {
		class := classIdx[g[i]]
		my := len(class)
		ki := k
		if ki > my-1 {
			ki = my - 1
		}
		if ki < 1 {
			ki = 1
		}
		eps := kthNearestDistance(s, class, i, ki)
		nx := countWithin(s, i, eps)
		sumPsiNx += mathext.Digamma(float64(nx))
		sumPsiMy += mathext.Digamma(float64(my))
	}
	mi := mathext.Digamma(float64(n)) + mathext.Digamma(float64(k)) -
		sumPsiNx/float64(n) - sumPsiMy/float64(n)
	if math.IsNaN(mi) || math.IsInf(mi, 0) {
		return 0
	}
	if mi < 0 {
		mi = 0
	}
	return mi
}

// kthNearestDistance returns the distance from s[at] to its k-th
// nearest neighbor among indices in group (excluding at itself).
func kthNearestDistance(s []float64, group []int, at, k int) float64 {
	dists := make([]float64, 0, len(group))
	for _, j := range group {
		if j == at {
			continue
		}
		dists = append(dists, math.Abs(s[at]-s[j]))
	}
	sort.Float64s(dists)
	if k > len(dists) {
		k = len(dists)
	}
	if k < 1 {
		return 0
	}
	return dists[k-1]
}

// countWithin counts, across every sample, how many lie within eps of
// s[at] (inclusive), not counting class. at itself always counts.
func countWithin(s []float64, at int, eps float64) int {
	c := 0
	for j := range s {
		if math.Abs(s[at]-s[j]) <= eps {
			c++
		}
	}
	return c
}
