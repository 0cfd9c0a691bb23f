package cadra

import (
	"log/slog"

	"github.com/bioc/CaDrA/kernel"
	"github.com/bioc/CaDrA/metafeature"
)

// Options mirrors the "Configuration options (enumerated)" list of
// spec.md §6, following the teacher's own settings-struct-with-
// defaults pattern (optimize.Settings, diff/fd.Settings).
type Options struct {
	// Method selects the scoring kernel.
	Method kernel.Method
	// MethodAlternative applies to ks, wilcox, and correlation.
	MethodAlternative kernel.Alternative
	// CMethod applies to the correlation kernel only.
	CMethod kernel.CMethod
	// Weights are optional per-sample weights for the KS kernel, keyed
	// by the same labels as s.
	Weights map[string]float64
	// Custom is required when Method == kernel.Custom.
	Custom kernel.Func
	// K is the neighbor count for the k-NN MI kernel (default 3).
	K int

	// TopN and SearchStart are mutually exclusive; exactly one must be
	// set.
	TopN        int
	SearchStart []string

	// SearchMethod selects forward-only or bidirectional search.
	SearchMethod metafeature.Method
	// MaxSize bounds the meta-feature's size; must be positive.
	MaxSize int
	// BestScoreOnly additionally reports the single best-scoring seed.
	BestScoreOnly bool

	// NPerm, Seed, and NCores configure RunPermutation; NPerm must be
	// positive to request a permutation run.
	NPerm  int
	Seed   int64
	NCores int
	// FailureFraction overrides permute's default 0.25 worker-failure
	// escalation threshold when positive.
	FailureFraction float64

	// Logger receives worker-failure messages from the permutation
	// driver; nil discards them. No progress messages are logged.
	Logger *slog.Logger
}

// Default returns an Options with the non-zero defaults spec.md §6
// implies for an otherwise-unconfigured run: forward-only search,
// two-sided alternative, top_N=1. MaxSize is left at zero, which
// validation rejects with ErrInvalidMaxSize, so callers must set it.
func Default() Options {
	return Options{
		MethodAlternative: kernel.TwoSided,
		TopN:              1,
		SearchMethod:      metafeature.Forward,
	}
}

func (o Options) validate() error {
	if o.TopN > 0 && len(o.SearchStart) > 0 {
		return ErrSeedSpecConflict
	}
	if o.TopN <= 0 && len(o.SearchStart) == 0 {
		return ErrSeedSpecMissing
	}
	if o.MaxSize <= 0 {
		return ErrInvalidMaxSize
	}
	if o.Method == kernel.Custom && o.Custom == nil {
		return ErrCustomWithoutCallable
	}
	if o.Weights != nil {
		allZero := true
		for _, w := range o.Weights {
			if w != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			return ErrInvalidWeights
		}
	}
	return nil
}

func (o Options) kernelOptions() kernel.Options {
	metric := kernel.PValue
	switch o.Method {
	case kernel.KSStat, kernel.WilcoxStat:
		metric = kernel.Stat
	}
	return kernel.Options{
		Alternative: o.MethodAlternative,
		Metric:      metric,
		CMethod:     o.CMethod,
		Weights:     o.Weights,
		K:           o.K,
		Custom:      o.Custom,
	}
}
