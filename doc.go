// Package cadra (Candidate Driver Analysis) identifies a small subset
// of binary features whose logical OR ("meta-feature") is maximally
// associated with a continuous per-sample response, via a greedy
// forward/backward search over a pluggable family of scoring kernels,
// with top-N seeding and a permutation-based null distribution for the
// resulting best score.
//
// The binary matrix view, score kernels, meta-feature search, top-N
// driver, and permutation driver each live in their own package
// (bitmat, kernel, metafeature, topn, permute); this package is the
// top-level orchestration entry point (CandidateSearch, RunPermutation)
// plus the public Options/error surface.
package cadra
