package cadra

import "errors"

// Sentinel errors for the input-validation and configuration error
// classes of spec.md §7. All are fatal and abort the top-level call;
// inspect with errors.Is.
var (
	ErrNonBinaryValue       = errors.New("cadra: matrix contains a non-binary value")
	ErrEmptyMatrix          = errors.New("cadra: matrix has no rows or no columns")
	ErrMalformedMatrix      = errors.New("cadra: matrix rows/labels are inconsistently shaped")
	ErrDegenerateRow        = errors.New("cadra: row is all-zero or all-one")
	ErrDuplicateLabel       = errors.New("cadra: row or column label is empty or duplicated")
	ErrLabelMismatch        = errors.New("cadra: s labels do not bijectively match matrix column labels")
	ErrUnknownLabel         = errors.New("cadra: label does not reference a known feature")
	ErrTopNExceedsRows      = errors.New("cadra: top_N exceeds the number of features")
	ErrWeightsLabelMismatch = errors.New("cadra: weights labels do not match s labels")
	ErrInvalidWeights       = errors.New("cadra: weights must not be all-zero")
	ErrSeedSpecConflict     = errors.New("cadra: top_N and search_start are mutually exclusive")
	ErrSeedSpecMissing      = errors.New("cadra: exactly one of top_N or search_start must be set")
	ErrCustomWithoutCallable = errors.New("cadra: custom method selected without a callable")
	ErrInvalidMaxSize        = errors.New("cadra: max_size must be positive")
	ErrInvalidNPerm          = errors.New("cadra: n_perm must be positive to run a permutation")
)
