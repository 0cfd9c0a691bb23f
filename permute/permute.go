// Package permute implements the permutation driver (component F): it
// draws K pairwise-distinct label-shuffles of s, runs the top-N driver
// against each one in parallel, and reports the empirical p-value of
// the observed best score against that null distribution.
package permute

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"gonum.org/v1/gonum/mathext/prng"

	"github.com/bioc/CaDrA/bitmat"
	"github.com/bioc/CaDrA/topn"
)

// ErrCanceled is returned when the run's context is canceled before
// completion; any partial results are discarded.
var ErrCanceled = errors.New("permute: canceled")

// ErrDistinctPermutationsUnavailable is returned when K distinct
// permutations of s cannot be produced: either K exceeds N! (the
// number of distinct orderings that exist) or repeated sampling failed
// to find K distinct orderings within the retry budget.
var ErrDistinctPermutationsUnavailable = errors.New("permute: cannot produce K pairwise-distinct permutations")

// ErrTooManyFailures is returned once the fraction of permutations
// whose search produced no usable result exceeds Options.FailureFraction.
var ErrTooManyFailures = errors.New("permute: too many permutation workers failed")

// defaultFailureFraction is spec.md §5's default escalation threshold.
const defaultFailureFraction = 0.25

// retryBudgetFactor bounds the total number of shuffle attempts, as a
// multiple of K, made to find K pairwise-distinct orderings before
// giving up.
const retryBudgetFactor = 1000

// Options carries the permutation driver's tuning knobs.
type Options struct {
	NPerm  int
	Seed   int64
	NCores int
	// FailureFraction overrides the default 0.25 worker-failure
	// escalation threshold when positive.
	FailureFraction float64
	Logger          *slog.Logger
}

// Result is the permutation record of spec.md §3/§6: the observed
// best score, its empirical p-value, and the K-element null
// distribution in the order permutations were generated.
type Result struct {
	Observed float64
	PValue   float64
	Null     []float64
}

// Run draws Options.NPerm distinct label-permutations of s, runs
// topn.Run against each (with searchOpts), and reports the empirical
// p-value of observed (the unpermuted search's best_score) against the
// resulting null distribution.
func Run(ctx context.Context, a *bitmat.Matrix, s []float64, sLabels []string, observed float64, searchOpts topn.Options, opts Options) (Result, error) {
	if opts.NPerm <= 0 {
		return Result{}, fmt.Errorf("permute: n_perm must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	perms, err := distinctPermutations(len(s), opts.NPerm, uint64(opts.Seed))
	if err != nil {
		return Result{}, err
	}

	ncores := opts.NCores
	if ncores <= 0 {
		ncores = runtime.GOMAXPROCS(0)
	}
	failureFraction := opts.FailureFraction
	if failureFraction <= 0 {
		failureFraction = defaultFailureFraction
	}

	null := make([]float64, len(perms))
	var failures atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ncores)
	for k, perm := range perms {
		k, perm := k, perm
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return ErrCanceled
			}
			permuted := ApplyPermutation(s, perm)
			result, err := topn.Run(gctx, a, permuted, sLabels, searchOpts)
			if err != nil {
				logger.Warn("permutation worker failed", "index", k, "error", err)
				null[k] = math.Inf(-1)
				failures.Add(1)
				return nil
			}
			best := math.Inf(-1)
			for _, seed := range result.Seeds {
				if seed.BestScore > best {
					best = seed.BestScore
				}
			}
			null[k] = best
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return Result{}, ErrCanceled
		}
		return Result{}, err
	}

	if failureCount := failures.Load(); float64(failureCount)/float64(len(perms)) > failureFraction {
		return Result{}, fmt.Errorf("%w: %d/%d permutations failed", ErrTooManyFailures, failureCount, len(perms))
	}

	sorted := append([]float64(nil), null...)
	sort.Float64s(sorted)
	ge := 0
	for _, v := range sorted {
		if v >= observed {
			ge++
		}
	}
	pvalue := float64(1+ge) / float64(1+len(perms))

	return Result{Observed: observed, PValue: pvalue, Null: null}, nil
}

// ApplyPermutation returns a new slice with s reordered by perm: the
// output's i-th value is s[perm[i]]. Column labels are unaffected,
// matching spec.md §4.5's "column labels unchanged".
func ApplyPermutation(s []float64, perm []int) []float64 {
	out := make([]float64, len(s))
	for i, p := range perm {
		out[i] = s[p]
	}
	return out
}

// distinctPermutations sequentially draws k permutations of [0,n)
// that are all pairwise distinct, deriving each draw's sub-seed from a
// single master gonum.org/v1/gonum/mathext/prng.SplitMix64 stream so
// the result is independent of worker-pool size (spec.md §9's RNG
// discipline). Generation is single-threaded and deterministic; only
// the subsequent scoring of each permutation is parallelized.
func distinctPermutations(n, k int, seed uint64) ([][]int, error) {
	if err := checkDistinctPermutationsFeasible(n, k); err != nil {
		return nil, err
	}

	master := prng.NewSplitMix64(seed)
	seen := make(map[string]struct{}, k)
	out := make([][]int, 0, k)
	budget := k * retryBudgetFactor
	if budget < k {
		budget = k // overflow guard for pathologically large k
	}

	for attempt := 0; len(out) < k && attempt < budget; attempt++ {
		sub := master.Uint64()
		perm := shuffledIndices(n, sub)
		key := permutationKey(perm)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, perm)
	}
	if len(out) < k {
		return nil, fmt.Errorf("%w: found %d of %d within the retry budget", ErrDistinctPermutationsUnavailable, len(out), k)
	}
	return out, nil
}

// checkDistinctPermutationsFeasible rejects k > n! using log-factorial
// comparison (via math.Lgamma) so it never overflows for realistic n.
func checkDistinctPermutationsFeasible(n, k int) error {
	if n <= 1 {
		if k > 1 {
			return fmt.Errorf("%w: only one ordering exists for n=%d", ErrDistinctPermutationsUnavailable, n)
		}
		return nil
	}
	logFactorialN, _ := math.Lgamma(float64(n) + 1)
	logK := math.Log(float64(k))
	if logK > logFactorialN {
		return fmt.Errorf("%w: n_perm=%d exceeds %d! distinct orderings", ErrDistinctPermutationsUnavailable, k, n)
	}
	return nil
}

// shuffledIndices draws a Fisher-Yates shuffle of [0,n) seeded
// deterministically from sub, using golang.org/x/exp/rand in the
// style of the teacher's stat/distmat.UniformPermutation, which pairs
// an x/exp/rand.Source with Rand.Shuffle.
func shuffledIndices(n int, sub uint64) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	r := rand.New(rand.NewSource(int64(sub)))
	r.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	return idx
}

// permutationKey canonicalizes a permutation into a comparable string
// for distinctness tracking.
func permutationKey(perm []int) string {
	var b strings.Builder
	for _, p := range perm {
		b.WriteString(strconv.Itoa(p))
		b.WriteByte(',')
	}
	return b.String()
}
