package solver

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/kilianp07/buildopt/core/logger"
	"github.com/kilianp07/buildopt/core/lp"
)

// Simplex solves models with gonum's dense simplex. Binary variables are
// handled by a depth-first branch-and-bound over LP relaxations.
type Simplex struct {
	cfg     Config
	log     logger.Logger
	simplex simplexFunc
}

// NewSimplex returns a solver using cfg. Unset fields take defaults.
func NewSimplex(cfg Config, log logger.Logger) *Simplex {
	cfg.SetDefaults()
	return &Simplex{cfg: cfg, log: logger.OrNop(log), simplex: gonumSimplex}
}

// Config returns the effective configuration.
func (s *Simplex) Config() Config { return s.cfg }

type node struct {
	fixed map[int]float64
	bound float64
	depth int
}

// Solve implements lp.Solver.
func (s *Simplex) Solve(ctx context.Context, m *lp.Model) (*lp.Solution, error) {
	if err := m.Validate(); err != nil {
		return &lp.Solution{Status: lp.StatusError, Diagnostic: err.Error()}, nil
	}
	var binaries []int
	for id, v := range m.Vars() {
		if v.Domain == lp.Binary {
			binaries = append(binaries, id)
		}
	}

	var deadline time.Time
	if lim := s.cfg.timeLimit(); lim > 0 {
		deadline = time.Now().Add(lim)
	}

	var (
		best     []float64
		bestObj  = math.Inf(1)
		nodes    int
		stack    = []node{{fixed: map[int]float64{}, bound: math.Inf(-1)}}
		stopped  lp.Status
		lastDiag string
	)
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			stopped = lp.StatusTimeLimit
			break
		}
		if nodes >= s.cfg.MaxNodes {
			stopped = lp.StatusNodeLimit
			break
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.pruned(nd.bound, bestObj) {
			continue
		}

		nodes++
		r := s.relax(m, nd.fixed)
		if s.cfg.Verbose {
			s.log.Debugw("relaxation solved", map[string]any{
				"node":   nodes,
				"depth":  nd.depth,
				"status": r.status.String(),
				"bound":  r.obj,
				"best":   bestObj,
			})
		}
		switch r.status {
		case lp.StatusOptimal:
		case lp.StatusInfeasible:
			lastDiag = r.diag
			continue
		default:
			return &lp.Solution{Status: r.status, Diagnostic: r.diag, Nodes: nodes}, nil
		}
		if s.pruned(r.obj, bestObj) {
			continue
		}

		branch := s.mostFractional(r.x, binaries, nd.fixed, s.cfg.IntegralityTolerance)
		if branch < 0 {
			cand, ok := s.polish(m, r, binaries, nd.fixed)
			if len(binaries) > 0 {
				nodes++
			}
			if ok && cand.obj < bestObj {
				best, bestObj = cand.x, cand.obj
			}
			if ok && !worse(cand.obj, r.obj) {
				continue
			}
			// Rounding lost objective, e.g. a big-M indicator relaxed to a
			// tiny positive value: both values of a free binary are explored.
			branch = s.mostFractional(r.x, binaries, nd.fixed, 0)
			if branch < 0 {
				branch = firstFree(binaries, nd.fixed)
			}
			if branch < 0 {
				continue
			}
		}

		v := r.x[branch]
		near := math.Round(math.Min(1, math.Max(0, v)))
		for _, val := range []float64{1 - near, near} {
			child := make(map[int]float64, len(nd.fixed)+1)
			for k, fv := range nd.fixed {
				child[k] = fv
			}
			child[branch] = val
			stack = append(stack, node{fixed: child, bound: r.obj, depth: nd.depth + 1})
		}
	}

	if best == nil {
		if stopped != lp.StatusOptimal {
			return &lp.Solution{Status: stopped, Diagnostic: "search stopped before a feasible solution was found", Nodes: nodes}, nil
		}
		if lastDiag == "" {
			lastDiag = "no feasible assignment of binary variables"
		}
		return &lp.Solution{Status: lp.StatusInfeasible, Diagnostic: lastDiag, Nodes: nodes}, nil
	}
	sol := s.solution(m, best, nodes)
	if stopped != lp.StatusOptimal {
		sol.Status = stopped
		sol.Diagnostic = fmt.Sprintf("search stopped with incumbent objective %g", sol.Objective)
	}
	return sol, nil
}

func (s *Simplex) solution(m *lp.Model, x []float64, nodes int) *lp.Solution {
	assigned := make([]bool, len(x))
	for i := range assigned {
		assigned[i] = true
	}
	obj, _ := m.Objective()
	return &lp.Solution{
		Status:    lp.StatusOptimal,
		Objective: obj.Eval(func(v lp.Var) float64 { return x[v.ID()] }),
		Values:    x,
		Assigned:  assigned,
		Nodes:     nodes,
	}
}

func (s *Simplex) pruned(bound, best float64) bool {
	if math.IsInf(best, 1) {
		return false
	}
	return bound >= best-s.cfg.Tolerance*math.Max(1, math.Abs(best))
}

// roundingGap is the relative objective loss above which a rounded
// relaxation is not accepted without branching.
const roundingGap = 1e-6

// worse reports whether obj exceeds the relaxation bound by more than
// roundingGap.
func worse(obj, bound float64) bool {
	return obj > bound+roundingGap*math.Max(1, math.Abs(bound))
}

// mostFractional returns the free binary farthest from integrality, or -1
// when all are within tol of 0 or 1.
func (s *Simplex) mostFractional(x []float64, binaries []int, fixed map[int]float64, tol float64) int {
	branch, worst := -1, tol
	for _, id := range binaries {
		if _, ok := fixed[id]; ok {
			continue
		}
		f := math.Abs(x[id] - math.Round(x[id]))
		if f > worst {
			branch, worst = id, f
		}
	}
	return branch
}

// polish fixes every free binary at its rounded value and re-solves, so the
// returned point satisfies the constraints with exact 0/1 values.
func (s *Simplex) polish(m *lp.Model, r relaxResult, binaries []int, fixed map[int]float64) (relaxResult, bool) {
	if firstFree(binaries, fixed) < 0 {
		return r, true
	}
	all := make(map[int]float64, len(binaries))
	for k, v := range fixed {
		all[k] = v
	}
	for _, id := range binaries {
		if _, ok := all[id]; !ok {
			all[id] = math.Round(math.Min(1, math.Max(0, r.x[id])))
		}
	}
	p := s.relax(m, all)
	return p, p.status == lp.StatusOptimal
}

func firstFree(binaries []int, fixed map[int]float64) int {
	free := make([]int, 0, len(binaries))
	for _, id := range binaries {
		if _, ok := fixed[id]; !ok {
			free = append(free, id)
		}
	}
	if len(free) == 0 {
		return -1
	}
	sort.Ints(free)
	return free[0]
}
