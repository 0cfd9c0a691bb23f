package external

import "testing"

func TestPrefilterKeepsRowsWithinCutoffs(t *testing.T) {
	grid := [][]uint8{
		{1, 0, 0, 0}, // prevalence 0.25
		{1, 1, 1, 1}, // prevalence 1.0 (excluded by matrix rules elsewhere, but valid prefilter input)
		{1, 1, 0, 0}, // prevalence 0.5
		{0, 0, 0, 0}, // prevalence 0.0
	}
	names := []string{"low", "high", "mid", "zero"}

	outGrid, outNames, err := Prefilter(grid, names, 0.2, 0.6)
	if err != nil {
		t.Fatalf("Prefilter: %v", err)
	}
	if len(outGrid) != 2 || outNames[0] != "low" || outNames[1] != "mid" {
		t.Fatalf("unexpected prefilter result: names=%v", outNames)
	}
}

func TestPrefilterRejectsInvalidCutoffs(t *testing.T) {
	grid := [][]uint8{{1, 0}}
	names := []string{"a"}
	if _, _, err := Prefilter(grid, names, 0.8, 0.2); err == nil {
		t.Fatal("expected an error when min > max")
	}
	if _, _, err := Prefilter(grid, names, -0.1, 0.5); err == nil {
		t.Fatal("expected an error for a cutoff outside [0,1]")
	}
}

func TestSimpleAssayToMatrix(t *testing.T) {
	assay := &SimpleAssay{
		Grid:     [][]uint8{{1, 0, 1}, {0, 1, 0}},
		Rows:     []string{"r1", "r2"},
		Cols:     []string{"c1", "c2", "c3"},
	}
	m := ToMatrix(assay)
	if m.Rows() != 2 || m.Cols() != 3 {
		t.Fatalf("unexpected matrix shape: %dx%d", m.Rows(), m.Cols())
	}
	if m.RowCountOnes(0) != 2 {
		t.Errorf("expected row 0 to have 2 ones, got %d", m.RowCountOnes(0))
	}
}
