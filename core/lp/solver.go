package lp

import "context"

// Status is the termination status reported by a Solver.
type Status int

const (
	StatusOptimal Status = iota
	StatusInfeasible
	StatusUnbounded
	StatusNodeLimit
	StatusTimeLimit
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	case StatusNodeLimit:
		return "node_limit"
	case StatusTimeLimit:
		return "time_limit"
	default:
		return "error"
	}
}

// Solution is the outcome of a solve. Values and Assigned are indexed by
// variable id and only meaningful when Status is StatusOptimal.
type Solution struct {
	Status     Status
	Objective  float64
	Values     []float64
	Assigned   []bool
	Diagnostic string
	// Nodes counts solved relaxations.
	Nodes int
}

// Value returns the value of v. The boolean is false when the solver
// assigned no value.
func (s *Solution) Value(v Var) (float64, bool) {
	if s == nil || v.id < 0 || v.id >= len(s.Values) {
		return 0, false
	}
	if s.Assigned != nil && !s.Assigned[v.id] {
		return 0, false
	}
	return s.Values[v.id], true
}

// Solver solves linear and mixed-integer models. Non-optimal terminations
// are reported through Solution.Status; the error is reserved for failures
// to run at all.
type Solver interface {
	Solve(ctx context.Context, m *Model) (*Solution, error)
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, m *Model) (*Solution, error)

// Solve calls f.
func (f SolverFunc) Solve(ctx context.Context, m *Model) (*Solution, error) { return f(ctx, m) }
