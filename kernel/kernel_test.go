package kernel

import (
	"math"
	"testing"

	"github.com/bioc/CaDrA/bitmat"
)

// scenarioMatrix builds the toy 3x10 matrix from spec.md §8 scenario 1.
func scenarioMatrix() *bitmat.Matrix {
	grid := [][]uint8{
		{1, 0, 1, 0, 0, 0, 0, 0, 1, 0}, // TP_1
		{0, 0, 1, 0, 1, 0, 1, 0, 0, 0}, // TP_2
		{0, 0, 0, 0, 1, 0, 1, 0, 1, 0}, // TP_3
	}
	colNames := make([]string, 10)
	for i := range colNames {
		colNames[i] = string(rune('a' + i))
	}
	return bitmat.New(grid, []string{"TP_1", "TP_2", "TP_3"}, colNames)
}

func fixedScores() []float64 {
	return []float64{1.2, -0.4, 0.9, -1.8, 2.1, 0.0, -0.7, 1.5, -2.0, 0.3}
}

func TestKSKernelContractSortedDescending(t *testing.T) {
	a := scenarioMatrix()
	s := fixedScores()
	scores, err := Resolve(KSPValue).ScoreAll(a, s, a.ColNames(), nil, Options{Alternative: Less, Metric: PValue})
	if err != nil {
		t.Fatalf("ScoreAll: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("expected 3 candidate scores, got %d", len(scores))
	}
	for i := 1; i < len(scores); i++ {
		if scores[i-1].Score < scores[i].Score {
			t.Fatalf("scores not sorted descending: %+v", scores)
		}
	}
}

func TestKSKernelDeterministic(t *testing.T) {
	a := scenarioMatrix()
	s := fixedScores()
	opts := Options{Alternative: Less, Metric: PValue}
	s1, err1 := Resolve(KSPValue).ScoreAll(a, s, a.ColNames(), nil, opts)
	s2, err2 := Resolve(KSPValue).ScoreAll(a, s, a.ColNames(), nil, opts)
	if err1 != nil || err2 != nil {
		t.Fatalf("errors: %v %v", err1, err2)
	}
	for i := range s1 {
		if s1[i] != s2[i] {
			t.Fatalf("non-deterministic KS score at %d: %v vs %v", i, s1[i], s2[i])
		}
	}
}

func TestWilcoxonKernelLabelsMatchRows(t *testing.T) {
	a := scenarioMatrix()
	s := fixedScores()
	scores, err := Resolve(WilcoxPValue).ScoreAll(a, s, a.ColNames(), nil, Options{Alternative: Less, Metric: PValue})
	if err != nil {
		t.Fatalf("ScoreAll: %v", err)
	}
	seen := map[string]bool{}
	for _, sc := range scores {
		seen[sc.Label] = true
		if a.RowNames()[sc.Row] != sc.Label {
			t.Errorf("label/row mismatch: %+v", sc)
		}
	}
	for _, name := range a.RowNames() {
		if !seen[name] {
			t.Errorf("missing row %q from candidate scores", name)
		}
	}
}

func TestCorrelationKernelLabelSetEqualsRowNames(t *testing.T) {
	a := scenarioMatrix()
	s := fixedScores()
	scores, err := Resolve(Correlation).ScoreAll(a, s, a.ColNames(), nil, Options{CMethod: Spearman})
	if err != nil {
		t.Fatalf("ScoreAll: %v", err)
	}
	if len(scores) != a.Rows() {
		t.Fatalf("expected %d scores, got %d", a.Rows(), len(scores))
	}
}

func TestCustomKernelMatchesKSUpToEncoding(t *testing.T) {
	a := scenarioMatrix()
	s := fixedScores()
	opts := Options{Alternative: Less, Metric: Stat}

	ksScores, err := Resolve(KSStat).ScoreAll(a, s, a.ColNames(), nil, opts)
	if err != nil {
		t.Fatalf("ks ScoreAll: %v", err)
	}

	custom := Options{
		Alternative: Less,
		Custom: func(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts Options) ([]RowScore, error) {
			return Resolve(KSStat).ScoreAll(a, s, sLabels, metaRows, Options{Alternative: Less, Metric: Stat})
		},
	}
	customScores, err := Resolve(Custom).ScoreAll(a, s, a.ColNames(), nil, custom)
	if err != nil {
		t.Fatalf("custom ScoreAll: %v", err)
	}
	if len(customScores) != len(ksScores) {
		t.Fatalf("length mismatch: %d vs %d", len(customScores), len(ksScores))
	}
	for i := range ksScores {
		if customScores[i].Label != ksScores[i].Label || customScores[i].Score != ksScores[i].Score {
			t.Errorf("mismatch at %d: %+v vs %+v", i, customScores[i], ksScores[i])
		}
	}
}

func TestCustomKernelRejectsUnsortedResult(t *testing.T) {
	a := scenarioMatrix()
	s := fixedScores()
	custom := Options{
		Custom: func(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts Options) ([]RowScore, error) {
			return []RowScore{
				{Row: 0, Label: "TP_1", Score: 0.1},
				{Row: 1, Label: "TP_2", Score: 0.9},
			}, nil
		},
	}
	if _, err := Resolve(Custom).ScoreAll(a, s, a.ColNames(), nil, custom); err == nil {
		t.Fatal("expected contract violation error for unsorted custom result")
	}
}

func TestWeightedKSStillUsesUnweightedPValue(t *testing.T) {
	a := scenarioMatrix()
	s := fixedScores()
	weights := make(map[string]float64, len(a.ColNames()))
	for _, name := range a.ColNames() {
		weights[name] = 1.0
	}
	result, err := ScoreKS(a, s, a.ColNames(), nil, Options{Alternative: Less, Metric: PValue, Weights: weights})
	if err != nil {
		t.Fatalf("ScoreKS: %v", err)
	}
	if !result.WeightedPValueApproximated {
		t.Error("expected WeightedPValueApproximated to be flagged for weighted p-value mode")
	}
}

func TestKNNMIReturnsZeroForConstantCandidate(t *testing.T) {
	s := fixedScores()
	g := make([]int, len(s)) // constant label carries no information
	mi := knnMI(s, g, 3)
	if mi != 0 {
		t.Errorf("expected 0 MI for a constant label, got %v", mi)
	}
}

func TestRevealerConditionalMIFinite(t *testing.T) {
	a := scenarioMatrix()
	s := fixedScores()
	scores, err := Resolve(Revealer).ScoreAll(a, s, a.ColNames(), []int{0}, Options{})
	if err != nil {
		t.Fatalf("ScoreAll: %v", err)
	}
	for _, sc := range scores {
		if math.IsNaN(sc.Score) || math.IsInf(sc.Score, 0) {
			t.Errorf("non-finite REVEALER score: %+v", sc)
		}
	}
}

func TestRevealerSeedScoresVaryAcrossCandidates(t *testing.T) {
	// With no meta-feature active (metaRows=nil, u all-zero — the
	// top-N seeding case of topn.chooseSeeds), REVEALER must still
	// discriminate between candidate rows instead of collapsing every
	// row to the same constant H(S).
	a := scenarioMatrix()
	s := fixedScores()
	scores, err := Resolve(Revealer).ScoreAll(a, s, a.ColNames(), nil, Options{})
	if err != nil {
		t.Fatalf("ScoreAll: %v", err)
	}
	if len(scores) < 2 {
		t.Fatalf("expected at least 2 candidate scores, got %d", len(scores))
	}
	allEqual := true
	for _, sc := range scores {
		if sc.Score != scores[0].Score {
			allEqual = false
			break
		}
	}
	if allEqual {
		t.Fatalf("expected REVEALER seed scores to vary across candidates, all equal to %v: %+v", scores[0].Score, scores)
	}
}

func TestKernelDropsAllOnesUnion(t *testing.T) {
	// Row that, OR-combined with the meta-feature, becomes all-ones
	// must be excluded from the candidate set (spec.md §4.2).
	grid := [][]uint8{
		{1, 1, 0}, // meta
		{0, 0, 1}, // would complete to all-ones with meta
		{1, 0, 0}, // would not
	}
	colNames := []string{"a", "b", "c"}
	a := bitmat.New(grid, []string{"meta", "complete", "partial"}, colNames)
	s := []float64{1, 2, 3}
	scores, err := Resolve(KSStat).ScoreAll(a, s, colNames, []int{0}, Options{})
	if err != nil {
		t.Fatalf("ScoreAll: %v", err)
	}
	for _, sc := range scores {
		if sc.Label == "complete" {
			t.Fatalf("expected all-ones-completing row to be dropped, found %+v", sc)
		}
	}
}
