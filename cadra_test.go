package cadra

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/bioc/CaDrA/bitmat"
	"github.com/bioc/CaDrA/kernel"
	"github.com/bioc/CaDrA/metafeature"
)

// toyMatrix builds the spec.md §8 toy 3x10 matrix as raw grid/labels,
// the shape CandidateSearch/RunPermutation take directly.
func toyMatrix() ([][]uint8, []string, []string) {
	grid := [][]uint8{
		{1, 0, 1, 0, 0, 0, 0, 0, 1, 0}, // TP_1
		{0, 0, 1, 0, 1, 0, 1, 0, 0, 0}, // TP_2
		{0, 0, 0, 0, 1, 0, 1, 0, 1, 0}, // TP_3
	}
	colNames := make([]string, 10)
	for i := range colNames {
		colNames[i] = string(rune('a' + i))
	}
	return grid, []string{"TP_1", "TP_2", "TP_3"}, colNames
}

func fixedSampleScores() []float64 {
	return []float64{1.2, -0.4, 0.9, -1.8, 2.1, 0.0, -0.7, 1.5, -2.0, 0.3}
}

func TestCandidateSearchKSToyMatrix(t *testing.T) {
	grid, rowNames, colNames := toyMatrix()
	opts := Default()
	opts.Method = kernel.KSPValue
	opts.MethodAlternative = kernel.Less
	opts.MaxSize = 3

	result, err := CandidateSearch(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, opts)
	if err != nil {
		t.Fatalf("CandidateSearch: %v", err)
	}
	if len(result.Seeds) != 1 {
		t.Fatalf("expected 1 seed for top_N=1, got %d", len(result.Seeds))
	}
	if len(result.Seeds[0].Labels) == 0 {
		t.Fatal("expected at least one selected feature")
	}
}

func TestCandidateSearchWilcoxonToyMatrix(t *testing.T) {
	grid, rowNames, colNames := toyMatrix()
	opts := Default()
	opts.Method = kernel.WilcoxPValue
	opts.MethodAlternative = kernel.Less
	opts.MaxSize = 3

	result, err := CandidateSearch(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, opts)
	if err != nil {
		t.Fatalf("CandidateSearch: %v", err)
	}
	if len(result.Seeds) != 1 || len(result.Seeds[0].Labels) == 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCandidateSearchCorrelationSpearman(t *testing.T) {
	grid, rowNames, colNames := toyMatrix()
	opts := Default()
	opts.Method = kernel.Correlation
	opts.CMethod = kernel.Spearman
	opts.MaxSize = 3
	opts.TopN = 3

	result, err := CandidateSearch(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, opts)
	if err != nil {
		t.Fatalf("CandidateSearch: %v", err)
	}
	if len(result.Seeds) != 3 {
		t.Fatalf("expected 3 seeds for top_N=3, got %d", len(result.Seeds))
	}
}

func TestCandidateSearchCustomMatchesKS(t *testing.T) {
	grid, rowNames, colNames := toyMatrix()

	ksOpts := Default()
	ksOpts.Method = kernel.KSStat
	ksOpts.MethodAlternative = kernel.Less
	ksOpts.MaxSize = 3
	ksResult, err := CandidateSearch(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, ksOpts)
	if err != nil {
		t.Fatalf("ks CandidateSearch: %v", err)
	}

	customOpts := Default()
	customOpts.Method = kernel.Custom
	customOpts.MethodAlternative = kernel.Less
	customOpts.MaxSize = 3
	customOpts.Custom = func(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts kernel.Options) ([]kernel.RowScore, error) {
		return kernel.Resolve(kernel.KSStat).ScoreAll(a, s, sLabels, metaRows, kernel.Options{Alternative: kernel.Less, Metric: kernel.Stat})
	}
	customResult, err := CandidateSearch(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, customOpts)
	if err != nil {
		t.Fatalf("custom CandidateSearch: %v", err)
	}

	if ksResult.Seeds[0].BestScore != customResult.Seeds[0].BestScore {
		t.Fatalf("score mismatch: ks=%v custom=%v", ksResult.Seeds[0].BestScore, customResult.Seeds[0].BestScore)
	}
	if strings.Join(ksResult.Seeds[0].Labels, ",") != strings.Join(customResult.Seeds[0].Labels, ",") {
		t.Fatalf("selection mismatch: ks=%v custom=%v", ksResult.Seeds[0].Labels, customResult.Seeds[0].Labels)
	}
}

// fourFeatureBackwardScores builds the 4x4 matrix (one sample per
// feature) that TestCandidateSearchBackwardStepTriggers pairs with a
// table-driven custom kernel forcing a forward run to add three
// features and then remove one, exercising the backward half of the
// search end-to-end through CandidateSearch.
func fourFeatureBackwardScores() ([][]uint8, []string, []string) {
	grid := [][]uint8{
		{1, 0, 0, 0}, // A
		{0, 1, 0, 0}, // B
		{0, 0, 1, 0}, // C
		{0, 0, 0, 1}, // D
	}
	colNames := []string{"w", "x", "y", "z"}
	return grid, []string{"A", "B", "C", "D"}, colNames
}

func TestCandidateSearchBackwardStepTriggers(t *testing.T) {
	grid, rowNames, colNames := fourFeatureBackwardScores()

	table := map[string]float64{
		"A":         1,
		"A,B":       2,
		"A,C":       1.5,
		"A,D":       1.5,
		"A,B,C":     3,
		"A,B,D":     2.5,
		"A,B,C,D":   4,
		"A,C,D":     5,
	}
	lookup := func(labels []string) float64 {
		cp := append([]string(nil), labels...)
		sort.Strings(cp)
		if v, ok := table[strings.Join(cp, ",")]; ok {
			return v
		}
		return -1000
	}

	custom := func(a *bitmat.Matrix, s []float64, sLabels []string, metaRows []int, opts kernel.Options) ([]kernel.RowScore, error) {
		selected := make(map[int]bool, len(metaRows))
		selectedLabels := make([]string, 0, len(metaRows))
		for _, r := range metaRows {
			selected[r] = true
			selectedLabels = append(selectedLabels, a.RowNames()[r])
		}
		var out []kernel.RowScore
		for r := 0; r < a.Rows(); r++ {
			if selected[r] {
				continue
			}
			candidate := append(append([]string(nil), selectedLabels...), a.RowNames()[r])
			out = append(out, kernel.RowScore{Row: r, Label: a.RowNames()[r], Score: lookup(candidate)})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
		return out, nil
	}

	opts := Default()
	opts.Method = kernel.Custom
	opts.Custom = custom
	opts.MaxSize = 4
	opts.SearchMethod = metafeature.Both
	opts.TopN = 1
	opts.SearchStart = nil

	result, err := CandidateSearch(context.Background(), grid, rowNames, colNames, []float64{1, 2, 3, 4}, colNames, opts)
	if err != nil {
		t.Fatalf("CandidateSearch: %v", err)
	}
	seed := result.Seeds[0]
	got := append([]string(nil), seed.Labels...)
	sort.Strings(got)
	want := []string{"A", "C", "D"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected backward step to leave %v selected, got %v", want, got)
	}
	if seed.BestScore != 5 {
		t.Fatalf("expected best score 5, got %v", seed.BestScore)
	}
}

func TestRunPermutationSmoothing(t *testing.T) {
	grid, rowNames, colNames := toyMatrix()
	opts := Default()
	opts.Method = kernel.KSPValue
	opts.MethodAlternative = kernel.Less
	opts.MaxSize = 3
	opts.NPerm = 1000
	opts.Seed = 42

	result, err := RunPermutation(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, opts)
	if err != nil {
		t.Fatalf("RunPermutation: %v", err)
	}
	if len(result.Null) != 1000 {
		t.Fatalf("expected 1000 null draws, got %d", len(result.Null))
	}
	if result.PValue <= 0 || result.PValue > 1 {
		t.Fatalf("p-value out of range: %v", result.PValue)
	}

	result2, err := RunPermutation(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, opts)
	if err != nil {
		t.Fatalf("RunPermutation (rerun): %v", err)
	}
	if result.PValue != result2.PValue {
		t.Fatalf("non-deterministic p-value: %v vs %v", result.PValue, result2.PValue)
	}
}

func TestCandidateSearchRejectsNonBinaryValue(t *testing.T) {
	grid, rowNames, colNames := toyMatrix()
	grid[0][0] = 2
	opts := Default()
	opts.MaxSize = 3
	_, err := CandidateSearch(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, opts)
	if !errors.Is(err, ErrNonBinaryValue) {
		t.Fatalf("expected ErrNonBinaryValue, got %v", err)
	}
}

func TestCandidateSearchRejectsDegenerateRow(t *testing.T) {
	grid, rowNames, colNames := toyMatrix()
	for i := range grid[0] {
		grid[0][i] = 0
	}
	opts := Default()
	opts.MaxSize = 3
	_, err := CandidateSearch(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, opts)
	if !errors.Is(err, ErrDegenerateRow) {
		t.Fatalf("expected ErrDegenerateRow, got %v", err)
	}
}

func TestCandidateSearchRejectsDuplicateRowLabel(t *testing.T) {
	grid, rowNames, colNames := toyMatrix()
	rowNames[1] = rowNames[0]
	opts := Default()
	opts.MaxSize = 3
	_, err := CandidateSearch(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, opts)
	if !errors.Is(err, ErrDuplicateLabel) {
		t.Fatalf("expected ErrDuplicateLabel, got %v", err)
	}
}

func TestCandidateSearchRejectsMalformedShape(t *testing.T) {
	grid, rowNames, colNames := toyMatrix()
	grid[0] = grid[0][:len(grid[0])-1]
	opts := Default()
	opts.MaxSize = 3
	_, err := CandidateSearch(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, opts)
	if !errors.Is(err, ErrMalformedMatrix) {
		t.Fatalf("expected ErrMalformedMatrix, got %v", err)
	}
}

func TestCandidateSearchRejectsEmptyMatrix(t *testing.T) {
	opts := Default()
	opts.MaxSize = 3
	_, err := CandidateSearch(context.Background(), nil, nil, nil, nil, nil, opts)
	if !errors.Is(err, ErrEmptyMatrix) {
		t.Fatalf("expected ErrEmptyMatrix, got %v", err)
	}
}

func TestCandidateSearchRejectsLabelMismatch(t *testing.T) {
	grid, rowNames, colNames := toyMatrix()
	sLabels := append([]string(nil), colNames...)
	sLabels[0] = "not-a-column"
	opts := Default()
	opts.MaxSize = 3
	_, err := CandidateSearch(context.Background(), grid, rowNames, colNames, fixedSampleScores(), sLabels, opts)
	if !errors.Is(err, ErrLabelMismatch) {
		t.Fatalf("expected ErrLabelMismatch, got %v", err)
	}
}

func TestCandidateSearchRejectsSeedSpecConflict(t *testing.T) {
	grid, rowNames, colNames := toyMatrix()
	opts := Default()
	opts.SearchStart = []string{"a"}
	_, err := CandidateSearch(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, opts)
	if !errors.Is(err, ErrSeedSpecConflict) {
		t.Fatalf("expected ErrSeedSpecConflict, got %v", err)
	}
}

func TestCandidateSearchRejectsSeedSpecMissing(t *testing.T) {
	grid, rowNames, colNames := toyMatrix()
	opts := Default()
	opts.TopN = 0
	_, err := CandidateSearch(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, opts)
	if !errors.Is(err, ErrSeedSpecMissing) {
		t.Fatalf("expected ErrSeedSpecMissing, got %v", err)
	}
}

func TestCandidateSearchRejectsCustomWithoutCallable(t *testing.T) {
	grid, rowNames, colNames := toyMatrix()
	opts := Default()
	opts.MaxSize = 3
	opts.Method = kernel.Custom
	_, err := CandidateSearch(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, opts)
	if !errors.Is(err, ErrCustomWithoutCallable) {
		t.Fatalf("expected ErrCustomWithoutCallable, got %v", err)
	}
}

func TestCandidateSearchRejectsTopNExceedingRows(t *testing.T) {
	grid, rowNames, colNames := toyMatrix()
	opts := Default()
	opts.MaxSize = 3
	opts.TopN = 100
	_, err := CandidateSearch(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, opts)
	if !errors.Is(err, ErrTopNExceedsRows) {
		t.Fatalf("expected ErrTopNExceedsRows, got %v", err)
	}
}

func TestCandidateSearchRejectsUnknownSearchStartLabel(t *testing.T) {
	grid, rowNames, colNames := toyMatrix()
	opts := Default()
	opts.MaxSize = 3
	opts.TopN = 0
	opts.SearchStart = []string{"nonexistent"}
	_, err := CandidateSearch(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, opts)
	if !errors.Is(err, ErrUnknownLabel) {
		t.Fatalf("expected ErrUnknownLabel, got %v", err)
	}
}

func TestCandidateSearchRejectsWeightsLabelMismatch(t *testing.T) {
	grid, rowNames, colNames := toyMatrix()
	opts := Default()
	opts.MaxSize = 3
	opts.Method = kernel.KSPValue
	opts.Weights = map[string]float64{"not-a-column": 1.0}
	_, err := CandidateSearch(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, opts)
	if !errors.Is(err, ErrWeightsLabelMismatch) {
		t.Fatalf("expected ErrWeightsLabelMismatch, got %v", err)
	}
}

func TestCandidateSearchRejectsAllZeroWeights(t *testing.T) {
	grid, rowNames, colNames := toyMatrix()
	opts := Default()
	opts.MaxSize = 3
	opts.Method = kernel.KSPValue
	weights := make(map[string]float64, len(colNames))
	for _, name := range colNames {
		weights[name] = 0
	}
	opts.Weights = weights
	_, err := CandidateSearch(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, opts)
	if !errors.Is(err, ErrInvalidWeights) {
		t.Fatalf("expected ErrInvalidWeights, got %v", err)
	}
}

func TestCandidateSearchRejectsInvalidMaxSize(t *testing.T) {
	grid, rowNames, colNames := toyMatrix()
	opts := Default()
	opts.MaxSize = 0
	_, err := CandidateSearch(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, opts)
	if !errors.Is(err, ErrInvalidMaxSize) {
		t.Fatalf("expected ErrInvalidMaxSize, got %v", err)
	}
}

func TestRunPermutationRejectsInvalidNPerm(t *testing.T) {
	grid, rowNames, colNames := toyMatrix()
	opts := Default()
	opts.Method = kernel.KSPValue
	opts.MaxSize = 3
	opts.NPerm = 0
	_, err := RunPermutation(context.Background(), grid, rowNames, colNames, fixedSampleScores(), colNames, opts)
	if !errors.Is(err, ErrInvalidNPerm) {
		t.Fatalf("expected ErrInvalidNPerm, got %v", err)
	}
}
