// Command cadra runs a candidate driver search over a binary feature
// matrix and a continuous sample score, per spec.md §6's informative
// CLI/driver surface.
package main // import "github.com/bioc/CaDrA/cmd/cadra"

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/bioc/CaDrA"
	"github.com/bioc/CaDrA/external"
	"github.com/bioc/CaDrA/kernel"
	"github.com/bioc/CaDrA/metafeature"
)

func main() {
	matrixPath := flag.String("matrix", "", "path to a CSV binary feature matrix (header row of sample labels, first column of row labels)")
	scorePath := flag.String("scores", "", "path to a two-column CSV of sample label,score")
	method := flag.String("method", "ks_pval", "scoring method: ks_stat, ks_pval, wilcox_stat, wilcox_pval, revealer, knnmi, correlation")
	alternative := flag.String("alternative", "two_sided", "method_alternative: less, greater, two_sided")
	cmethod := flag.String("cmethod", "pearson", "correlation cmethod: pearson, spearman")
	topN := flag.Int("top_n", 1, "number of highest-scoring features to seed from; mutually exclusive with -search_start")
	searchStart := flag.String("search_start", "", "comma-separated list of feature labels to seed from, instead of -top_n")
	searchMethod := flag.String("search_method", "forward", "search_method: forward, both")
	maxSize := flag.Int("max_size", 7, "maximum meta-feature size")
	bestScoreOnly := flag.Bool("best_score_only", true, "additionally report the single best-scoring seed")
	minCutoff := flag.Float64("min_cutoff", 0, "prefilter: minimum row prevalence in [0,1]")
	maxCutoff := flag.Float64("max_cutoff", 1, "prefilter: maximum row prevalence in [0,1]")
	nPerm := flag.Int("n_perm", 0, "number of permutations; 0 skips the permutation run")
	seed := flag.Int64("seed", 1, "permutation random seed")
	ncores := flag.Int("ncores", 0, "worker parallelism; <=0 defaults to GOMAXPROCS")
	doPlot := flag.String("plot", "", "if set, write a marginal/cumulative score trajectory plot to this path: of the best seed with -best_score_only, otherwise of the first seed; permutation runs write no plot")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: cadra -matrix FILE -scores FILE [options]

ex:
 $> cadra -matrix features.csv -scores response.csv -method ks_pval -top_n 5 -max_size 7
 $> cadra -matrix features.csv -scores response.csv -search_start TP53,KRAS -n_perm 1000 -seed 42

Options:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *matrixPath == "" || *scorePath == "" {
		flag.Usage()
		os.Exit(1)
	}

	grid, rowNames, colNames, err := loadMatrix(*matrixPath)
	if err != nil {
		logger.Error("loading matrix", "error", err)
		os.Exit(1)
	}
	s, sLabels, err := loadScores(*scorePath)
	if err != nil {
		logger.Error("loading scores", "error", err)
		os.Exit(1)
	}

	if *minCutoff > 0 || *maxCutoff < 1 {
		grid, rowNames, err = external.Prefilter(grid, rowNames, *minCutoff, *maxCutoff)
		if err != nil {
			logger.Error("prefiltering matrix", "error", err)
			os.Exit(1)
		}
	}

	opts, err := buildOptions(*method, *alternative, *cmethod, *topN, *searchStart, *searchMethod, *maxSize, *bestScoreOnly, *nPerm, *seed, *ncores, logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if opts.NPerm > 0 {
		result, err := cadra.RunPermutation(ctx, grid, rowNames, colNames, s, sLabels, opts)
		if err != nil {
			logger.Error("permutation run failed", "error", err)
			os.Exit(1)
		}
		emit(result)
		return
	}

	result, err := cadra.CandidateSearch(ctx, grid, rowNames, colNames, s, sLabels, opts)
	if err != nil {
		logger.Error("candidate search failed", "error", err)
		os.Exit(1)
	}
	emit(result)

	if *doPlot != "" && result.Best >= 0 && result.Best < len(result.Seeds) {
		best := result.Seeds[result.Best]
		plotter := external.TrajectoryPlot{WidthCM: 16, HeightCM: 10}
		if err := plotter.Plot("candidate search trajectory", best.Marginal, best.Cumulative, *doPlot); err != nil {
			logger.Error("plotting trajectory", "error", err)
			os.Exit(1)
		}
	}
}

func buildOptions(method, alternative, cmethod string, topN int, searchStart, searchMethod string, maxSize int, bestScoreOnly bool, nPerm int, seed int64, ncores int, logger *slog.Logger) (cadra.Options, error) {
	opts := cadra.Default()

	m, err := parseMethod(method)
	if err != nil {
		return cadra.Options{}, err
	}
	opts.Method = m

	alt, err := parseAlternative(alternative)
	if err != nil {
		return cadra.Options{}, err
	}
	opts.MethodAlternative = alt

	cm, err := parseCMethod(cmethod)
	if err != nil {
		return cadra.Options{}, err
	}
	opts.CMethod = cm

	if searchStart != "" {
		opts.SearchStart = strings.Split(searchStart, ",")
		opts.TopN = 0
	} else {
		opts.TopN = topN
	}

	switch searchMethod {
	case "forward":
		opts.SearchMethod = metafeature.Forward
	case "both":
		opts.SearchMethod = metafeature.Both
	default:
		return cadra.Options{}, fmt.Errorf("unknown search_method %q", searchMethod)
	}

	opts.MaxSize = maxSize
	opts.BestScoreOnly = bestScoreOnly
	opts.NPerm = nPerm
	opts.Seed = seed
	opts.NCores = ncores
	opts.Logger = logger
	return opts, nil
}

func parseMethod(s string) (kernel.Method, error) {
	switch s {
	case "ks_stat":
		return kernel.KSStat, nil
	case "ks_pval":
		return kernel.KSPValue, nil
	case "wilcox_stat":
		return kernel.WilcoxStat, nil
	case "wilcox_pval":
		return kernel.WilcoxPValue, nil
	case "revealer":
		return kernel.Revealer, nil
	case "knnmi":
		return kernel.KNNMI, nil
	case "correlation":
		return kernel.Correlation, nil
	default:
		return 0, fmt.Errorf("unknown method %q", s)
	}
}

func parseAlternative(s string) (kernel.Alternative, error) {
	switch s {
	case "less":
		return kernel.Less, nil
	case "greater":
		return kernel.Greater, nil
	case "two_sided":
		return kernel.TwoSided, nil
	default:
		return 0, fmt.Errorf("unknown method_alternative %q", s)
	}
}

func parseCMethod(s string) (kernel.CMethod, error) {
	switch s {
	case "pearson":
		return kernel.Pearson, nil
	case "spearman":
		return kernel.Spearman, nil
	default:
		return 0, fmt.Errorf("unknown cmethod %q", s)
	}
}

// loadMatrix reads a CSV whose header row holds sample (column) labels
// and whose first column of every subsequent row holds the feature
// (row) label, with 0/1 cells in between.
func loadMatrix(path string) ([][]uint8, []string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(records) < 2 {
		return nil, nil, nil, fmt.Errorf("matrix file has no data rows")
	}

	colNames := records[0][1:]
	rowNames := make([]string, 0, len(records)-1)
	grid := make([][]uint8, 0, len(records)-1)
	for _, rec := range records[1:] {
		rowNames = append(rowNames, rec[0])
		row := make([]uint8, len(rec)-1)
		for j, cell := range rec[1:] {
			v, err := strconv.ParseUint(strings.TrimSpace(cell), 10, 8)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("cell (%s,%s): %w", rec[0], colNames[j], err)
			}
			row[j] = uint8(v)
		}
		grid = append(grid, row)
	}
	return grid, rowNames, colNames, nil
}

// loadScores reads a two-column CSV of sample label,score.
func loadScores(path string) ([]float64, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	s := make([]float64, 0, len(records))
	labels := make([]string, 0, len(records))
	for _, rec := range records {
		if len(rec) < 2 {
			return nil, nil, fmt.Errorf("score row %v: expected 2 columns", rec)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, nil, fmt.Errorf("score for %s: %w", rec[0], err)
		}
		labels = append(labels, rec[0])
		s = append(s, v)
	}
	return s, labels, nil
}

func emit(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
