// Package metafeature implements the meta-feature state (component C)
// and the forward/backward greedy search engine (component D) that
// drives a kernel.Scorer over a bitmat.Matrix to grow it.
package metafeature

import "github.com/bioc/CaDrA/bitmat"

// StepAction names what a trajectory step did.
type StepAction int

const (
	// Seed is the initial state before any forward/backward step.
	Seed StepAction = iota
	Add
	Remove
)

func (a StepAction) String() string {
	switch a {
	case Seed:
		return "seed"
	case Add:
		return "add"
	case Remove:
		return "remove"
	default:
		return "unknown"
	}
}

// Step records one entry of the trajectory: the row that was seeded,
// added, or removed, the marginal score produced by that step's
// selection, and the cumulative best_score after applying it.
type Step struct {
	Action     StepAction
	Row        int
	Label      string
	Marginal   float64
	Cumulative float64
}

// State is the meta-feature state of spec.md §3/§4.3: the ordered set
// of selected rows, their OR-union, the best score achieved so far,
// and the full step-by-step trajectory.
type State struct {
	Selected  []int
	Union     bitmat.Row
	BestScore float64
	History   []Step
}

// Labels returns the row labels of the currently selected features, in
// selection order.
func (st *State) Labels(a *bitmat.Matrix) []string {
	out := make([]string, len(st.Selected))
	for i, r := range st.Selected {
		out[i] = a.RowNames()[r]
	}
	return out
}

// Marginals returns the marginal score recorded at each trajectory
// step, in order.
func (st *State) Marginals() []float64 {
	out := make([]float64, len(st.History))
	for i, step := range st.History {
		out[i] = step.Marginal
	}
	return out
}

// Cumulatives returns the cumulative best_score recorded at each
// trajectory step, in order.
func (st *State) Cumulatives() []float64 {
	out := make([]float64, len(st.History))
	for i, step := range st.History {
		out[i] = step.Cumulative
	}
	return out
}

func (st *State) selectedExcept(j int) []int {
	out := make([]int, 0, len(st.Selected)-1)
	for _, r := range st.Selected {
		if r != j {
			out = append(out, r)
		}
	}
	return out
}

func (st *State) indexOf(row int) int {
	for i, r := range st.Selected {
		if r == row {
			return i
		}
	}
	return -1
}
