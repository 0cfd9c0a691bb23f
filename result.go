package cadra

import (
	"github.com/bioc/CaDrA/permute"
	"github.com/bioc/CaDrA/topn"
)

// SearchResult is the persisted artifact of spec.md §6 for a
// candidate_search run: every top-N seed's frozen score record, plus
// (when Options.BestScoreOnly was set) the index of the best seed.
type SearchResult struct {
	Seeds []topn.SeedResult
	Best  int
}

// PermutationResult is the persisted artifact of spec.md §6 for a
// permutation run: the observed best score, its empirical p-value, and
// the K-element null distribution.
type PermutationResult = permute.Result
