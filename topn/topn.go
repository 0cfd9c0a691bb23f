// Package topn implements the top-N driver (component E): it ranks
// every feature row against s under the active kernel, seeds a
// metafeature.Run from each of the top N (or an explicit list), and
// runs the seeds independently and in parallel.
package topn

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/bioc/CaDrA/bitmat"
	"github.com/bioc/CaDrA/kernel"
	"github.com/bioc/CaDrA/metafeature"
)

// Options carries the top-N driver's tuning knobs.
type Options struct {
	Search metafeature.Options
	// TopN is the number of highest-scoring single features to seed
	// from. Mutually exclusive with SearchStart at the cadra.Options
	// validation layer; exactly one of the two must be positive/non-empty
	// by the time it reaches Run.
	TopN int
	// SearchStart is an explicit list of seed row labels, used instead
	// of TopN when non-empty.
	SearchStart []string
	// BestScoreOnly, when set, additionally reports the index of the
	// single best-scoring seed result in Result.Best.
	BestScoreOnly bool
	// NCores bounds worker parallelism; <=0 defaults to GOMAXPROCS.
	NCores int
}

// SeedResult is the frozen outcome of running the search engine from
// one seed, matching spec.md §3's "score record".
type SeedResult struct {
	SeedLabel    string
	SelectedRows []int
	Labels       []string
	Union        bitmat.Row
	BestScore    float64
	Marginal     []float64
	Cumulative   []float64
}

// Result aggregates every seed's outcome.
type Result struct {
	Seeds []SeedResult
	// Best indexes the seed with the maximal BestScore, set only when
	// Options.BestScoreOnly was requested.
	Best int
}

// Run scores every row of a against s to rank candidate seeds, then
// runs metafeature.Run independently (and in parallel) from each of
// the chosen seeds.
func Run(ctx context.Context, a *bitmat.Matrix, s []float64, sLabels []string, opts Options) (Result, error) {
	seeds, err := chooseSeeds(a, s, sLabels, opts)
	if err != nil {
		return Result{}, err
	}

	ncores := opts.NCores
	if ncores <= 0 {
		ncores = runtime.GOMAXPROCS(0)
	}

	results := make([]SeedResult, len(seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ncores)
	for idx, seedRow := range seeds {
		idx, seedRow := idx, seedRow
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			st, err := metafeature.Run(a, s, sLabels, seedRow, opts.Search)
			if err != nil {
				return fmt.Errorf("topn: seed %q: %w", a.RowNames()[seedRow], err)
			}
			results[idx] = SeedResult{
				SeedLabel:    a.RowNames()[seedRow],
				SelectedRows: st.Selected,
				Labels:       st.Labels(a),
				Union:        st.Union,
				BestScore:    st.BestScore,
				Marginal:     st.Marginals(),
				Cumulative:   st.Cumulatives(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	out := Result{Seeds: results}
	if opts.BestScoreOnly {
		best := 0
		for i := 1; i < len(results); i++ {
			if results[i].BestScore > results[best].BestScore {
				best = i
			}
		}
		out.Best = best
	}
	return out, nil
}

// chooseSeeds resolves the seed row set: either the explicit
// SearchStart labels, or the TopN highest-scoring rows against s with
// no meta-feature active.
func chooseSeeds(a *bitmat.Matrix, s []float64, sLabels []string, opts Options) ([]int, error) {
	if len(opts.SearchStart) > 0 {
		rows := make([]int, len(opts.SearchStart))
		for i, label := range opts.SearchStart {
			r, ok := a.RowIndex(label)
			if !ok {
				return nil, fmt.Errorf("topn: search_start references unknown feature label %q", label)
			}
			rows[i] = r
		}
		return rows, nil
	}

	if opts.TopN <= 0 {
		return nil, fmt.Errorf("topn: top_N must be positive when search_start is not given")
	}
	if opts.TopN > a.Rows() {
		return nil, fmt.Errorf("topn: top_N (%d) exceeds the number of features (%d)", opts.TopN, a.Rows())
	}

	scorer := kernel.Resolve(opts.Search.Method)
	scores, err := scorer.ScoreAll(a, s, sLabels, nil, opts.Search.Kernel)
	if err != nil {
		return nil, fmt.Errorf("topn: ranking seeds: %w", err)
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Label < scores[j].Label
	})

	rows := make([]int, opts.TopN)
	for i := 0; i < opts.TopN; i++ {
		rows[i] = scores[i].Row
	}
	return rows, nil
}
