package external

import "fmt"

// Prefilter implements the prevalence-based row filter of spec.md §6:
// restrict a raw grid to the rows whose fraction of 1s falls in
// [minCutoff, maxCutoff]. Its output is handed to bitmat.New by the
// caller to become the core's A.
func Prefilter(grid [][]uint8, rowNames []string, minCutoff, maxCutoff float64) ([][]uint8, []string, error) {
	if minCutoff < 0 || minCutoff > 1 || maxCutoff < 0 || maxCutoff > 1 || minCutoff > maxCutoff {
		return nil, nil, fmt.Errorf("external: prefilter cutoffs must satisfy 0 <= min <= max <= 1, got [%v, %v]", minCutoff, maxCutoff)
	}
	if len(grid) != len(rowNames) {
		return nil, nil, fmt.Errorf("external: prefilter row count %d does not match label count %d", len(grid), len(rowNames))
	}

	var outGrid [][]uint8
	var outNames []string
	for i, row := range grid {
		ones := 0
		for _, v := range row {
			if v == 1 {
				ones++
			}
		}
		prevalence := float64(ones) / float64(len(row))
		if prevalence >= minCutoff && prevalence <= maxCutoff {
			outGrid = append(outGrid, row)
			outNames = append(outNames, rowNames[i])
		}
	}
	return outGrid, outNames, nil
}
