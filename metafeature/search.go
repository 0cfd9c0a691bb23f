package metafeature

import (
	"fmt"
	"sort"

	"github.com/bioc/CaDrA/bitmat"
	"github.com/bioc/CaDrA/kernel"
)

// Method selects whether the search engine runs forward-only or
// bidirectional (forward with backward pruning), per spec.md §4.3 and
// the `search_method` option of §6.
type Method int

const (
	Forward Method = iota
	Both
)

// Options carries the search engine's tuning knobs: the kernel to
// score candidates with, the bidirectionality switch, and the size
// ceiling on the meta-feature.
type Options struct {
	Method  kernel.Method
	Kernel  kernel.Options
	Search  Method
	MaxSize int
}

// Run executes the forward/backward greedy search of spec.md §4.3
// starting from the single seed row seedRow, returning the terminal
// State.
func Run(a *bitmat.Matrix, s []float64, sLabels []string, seedRow int, opts Options) (*State, error) {
	scorer := kernel.Resolve(opts.Method)

	seedScore, err := scorer.ScoreMeta(a, s, sLabels, []int{seedRow}, opts.Kernel)
	if err != nil {
		return nil, fmt.Errorf("metafeature: scoring seed %q: %w", a.RowNames()[seedRow], err)
	}
	st := &State{
		Selected:  []int{seedRow},
		Union:     a.Row(seedRow),
		BestScore: seedScore,
		History: []Step{{
			Action:     Seed,
			Row:        seedRow,
			Label:      a.RowNames()[seedRow],
			Marginal:   seedScore,
			Cumulative: seedScore,
		}},
	}

	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = a.Rows()
	}

	for {
		if len(st.Selected) < maxSize {
			ok, err := tryForward(a, s, sLabels, scorer, opts, st)
			if err != nil {
				return nil, err
			}
			if ok {
				continue
			}
		}

		if opts.Search == Both && len(st.Selected) >= 3 {
			ok, err := tryBackward(a, s, sLabels, scorer, opts, st)
			if err != nil {
				return nil, err
			}
			if ok {
				continue
			}
		}
		break
	}

	return st, nil
}

// tryForward attempts one forward step: score every candidate row
// OR-combined with the current union, pick the best by the forward
// tie-break rule, and accept it only if it strictly improves
// BestScore.
func tryForward(a *bitmat.Matrix, s []float64, sLabels []string, scorer kernel.Scorer, opts Options, st *State) (bool, error) {
	scores, err := scorer.ScoreAll(a, s, sLabels, st.Selected, opts.Kernel)
	if err != nil {
		return false, fmt.Errorf("metafeature: forward scoring: %w", err)
	}
	if len(scores) == 0 {
		// Every candidate's OR-union with the current meta-feature is
		// all-ones: the degenerate-run case of spec.md §7. The search
		// terminates cleanly from here.
		return false, nil
	}

	winner := pickBest(scores, func(row int) int {
		return a.Row(row).Or(st.Union).PopCount()
	})
	if winner.Score <= st.BestScore {
		return false, nil
	}

	st.Selected = append(st.Selected, winner.Row)
	st.Union = st.Union.Or(a.Row(winner.Row))
	st.BestScore = winner.Score
	st.History = append(st.History, Step{
		Action:     Add,
		Row:        winner.Row,
		Label:      winner.Label,
		Marginal:   winner.Score,
		Cumulative: winner.Score,
	})
	return true, nil
}

// tryBackward attempts one backward step: for each currently selected
// row, score the union formed by removing it, pick the best removal
// by the same tie-break rule, and accept it only if it strictly
// improves BestScore. Requires |selected| >= 3 per spec.md §4.3.
func tryBackward(a *bitmat.Matrix, s []float64, sLabels []string, scorer kernel.Scorer, opts Options, st *State) (bool, error) {
	type candidate struct {
		row      int
		label    string
		score    float64
		popcount int
	}
	candidates := make([]candidate, 0, len(st.Selected))
	for _, j := range st.Selected {
		rest := st.selectedExcept(j)
		score, err := scorer.ScoreMeta(a, s, sLabels, rest, opts.Kernel)
		if err != nil {
			return false, fmt.Errorf("metafeature: backward scoring: %w", err)
		}
		union := a.OrUnion(rest)
		candidates = append(candidates, candidate{
			row:      j,
			label:    a.RowNames()[j],
			score:    score,
			popcount: union.PopCount(),
		})
	}
	if len(candidates) == 0 {
		return false, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.score != cj.score {
			return ci.score > cj.score
		}
		if ci.popcount != cj.popcount {
			return ci.popcount < cj.popcount
		}
		return ci.label < cj.label
	})
	winner := candidates[0]
	if winner.score <= st.BestScore {
		return false, nil
	}

	st.Selected = st.selectedExcept(winner.row)
	st.Union = a.OrUnion(st.Selected)
	st.BestScore = winner.score
	st.History = append(st.History, Step{
		Action:     Remove,
		Row:        winner.row,
		Label:      winner.label,
		Marginal:   winner.score,
		Cumulative: winner.score,
	})
	return true, nil
}

// pickBest selects the top-scoring candidate from an already
// score-descending list, breaking ties (per spec.md §4.3) by the
// smaller popcount the candidate's OR-union would produce, then by
// lexicographic row label. resultingPopcount must report that
// popcount for a given candidate's row index.
func pickBest(scores []kernel.RowScore, resultingPopcount func(row int) int) kernel.RowScore {
	top := scores[0].Score
	end := 1
	for end < len(scores) && scores[end].Score == top {
		end++
	}
	if end == 1 {
		return scores[0]
	}
	tied := append([]kernel.RowScore(nil), scores[:end]...)
	sort.SliceStable(tied, func(i, j int) bool {
		pi, pj := resultingPopcount(tied[i].Row), resultingPopcount(tied[j].Row)
		if pi != pj {
			return pi < pj
		}
		return tied[i].Label < tied[j].Label
	})
	return tied[0]
}
