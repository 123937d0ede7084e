package solver

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	golp "gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/buildopt/core/factory"
	"github.com/kilianp07/buildopt/core/lp"
)

func sum(terms ...lp.Term) lp.Expr { return lp.Expr{Terms: terms} }

func term(v lp.Var, c float64) lp.Term { return lp.Term{Var: v, Coef: c} }

func value(t *testing.T, sol *lp.Solution, v lp.Var) float64 {
	t.Helper()
	x, ok := sol.Value(v)
	require.True(t, ok, "variable %d unassigned", v.ID())
	return x
}

func TestSimplex_ContinuousMaximize(t *testing.T) {
	m := lp.NewModel()
	x := m.AddVar("x", lp.NonNegative)
	y := m.AddVar("y", lp.NonNegative)
	m.AddConstraint("c1", sum(term(x, 1), term(y, 2)), lp.LessEq, lp.Const(4))
	m.AddConstraint("c2", sum(term(x, 3), term(y, 1)), lp.LessEq, lp.Const(6))
	m.SetObjective(sum(term(x, 1), term(y, 1)), lp.Maximize)

	sol, err := NewSimplex(Config{}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, lp.StatusOptimal, sol.Status, sol.Diagnostic)
	assert.InDelta(t, 1.6, value(t, sol, x), 1e-6)
	assert.InDelta(t, 1.2, value(t, sol, y), 1e-6)
	assert.InDelta(t, 2.8, sol.Objective, 1e-6)
}

func TestSimplex_FreeVariablesAndEqualities(t *testing.T) {
	m := lp.NewModel()
	x := m.AddVar("x", lp.Real)
	y := m.AddVar("y", lp.Real)
	// x = y - 3, y >= 1, minimize x.
	m.AddConstraint("def", lp.Scaled(x, 1), lp.Equal, lp.Expr{Terms: []lp.Term{term(y, 1)}, Constant: -3})
	m.AddConstraint("lb", lp.Scaled(y, 1), lp.GreaterEq, lp.Const(1))
	m.SetObjective(lp.Scaled(x, 1), lp.Minimize)

	sol, err := NewSimplex(Config{}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, lp.StatusOptimal, sol.Status, sol.Diagnostic)
	assert.InDelta(t, -2, value(t, sol, x), 1e-6)
	assert.InDelta(t, 1, value(t, sol, y), 1e-6)
}

func TestSimplex_Infeasible(t *testing.T) {
	m := lp.NewModel()
	x := m.AddVar("x", lp.Real)
	m.AddConstraint("lo", lp.Scaled(x, 1), lp.GreaterEq, lp.Const(2))
	m.AddConstraint("hi", lp.Scaled(x, 1), lp.LessEq, lp.Const(1))
	m.SetObjective(lp.Scaled(x, 1), lp.Minimize)

	sol, err := NewSimplex(Config{}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, lp.StatusInfeasible, sol.Status)
	_, ok := sol.Value(x)
	assert.False(t, ok)
}

func TestSimplex_Unbounded(t *testing.T) {
	m := lp.NewModel()
	x := m.AddVar("x", lp.NonNegative)
	m.AddConstraint("lo", lp.Scaled(x, 1), lp.GreaterEq, lp.Const(1))
	m.SetObjective(lp.Scaled(x, -1), lp.Minimize)

	sol, err := NewSimplex(Config{}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, lp.StatusUnbounded, sol.Status)
}

func TestSimplex_UnconstrainedPricedVariable(t *testing.T) {
	m := lp.NewModel()
	x := m.AddVar("x", lp.Real)
	m.SetObjective(lp.Scaled(x, 1), lp.Minimize)

	sol, err := NewSimplex(Config{}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, lp.StatusUnbounded, sol.Status)
}

func TestSimplex_ConstantRows(t *testing.T) {
	m := lp.NewModel()
	x := m.AddVar("x", lp.NonNegative)
	m.AddConstraint("trivial", lp.Const(0), lp.LessEq, lp.Const(1))
	m.AddConstraint("cap", lp.Scaled(x, 1), lp.LessEq, lp.Const(3))
	m.SetObjective(lp.Scaled(x, -1), lp.Minimize)

	sol, err := NewSimplex(Config{}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, lp.StatusOptimal, sol.Status, sol.Diagnostic)
	assert.InDelta(t, 3, value(t, sol, x), 1e-6)

	m.AddConstraint("impossible", lp.Const(1), lp.LessEq, lp.Const(0))
	sol, err = NewSimplex(Config{}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, lp.StatusInfeasible, sol.Status)
	assert.Contains(t, sol.Diagnostic, "impossible")
}

func TestSimplex_BinaryKnapsack(t *testing.T) {
	m := lp.NewModel()
	a := m.AddVar("a", lp.Binary)
	b := m.AddVar("b", lp.Binary)
	c := m.AddVar("c", lp.Binary)
	m.AddConstraint("weight", sum(term(a, 2), term(b, 3), term(c, 1)), lp.LessEq, lp.Const(4))
	m.SetObjective(sum(term(a, 5), term(b, 4), term(c, 3)), lp.Maximize)

	sol, err := NewSimplex(Config{}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, lp.StatusOptimal, sol.Status, sol.Diagnostic)
	assert.Equal(t, 1.0, value(t, sol, a))
	assert.Equal(t, 0.0, value(t, sol, b))
	assert.Equal(t, 1.0, value(t, sol, c))
	assert.InDelta(t, 8, sol.Objective, 1e-6)
	assert.Greater(t, sol.Nodes, 1)
}

func TestSimplex_BigMIndicator(t *testing.T) {
	build := func(gain float64) (*lp.Model, lp.Var, lp.Var) {
		m := lp.NewModel()
		size := m.AddVar("size", lp.NonNegative)
		exists := m.AddVar("exists", lp.Binary)
		m.AddConstraint("cap", lp.Scaled(size, 1), lp.LessEq, lp.Const(10))
		m.AddConstraint("exists", lp.Scaled(size, 1), lp.LessEq, lp.Scaled(exists, 1e4))
		m.SetObjective(sum(term(exists, 100), term(size, -gain)), lp.Minimize)
		return m, size, exists
	}

	m, size, exists := build(2)
	sol, err := NewSimplex(Config{}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, lp.StatusOptimal, sol.Status, sol.Diagnostic)
	assert.Equal(t, 0.0, value(t, sol, exists))
	assert.InDelta(t, 0, value(t, sol, size), 1e-9)

	m, size, exists = build(20)
	sol, err = NewSimplex(Config{}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, lp.StatusOptimal, sol.Status, sol.Diagnostic)
	assert.Equal(t, 1.0, value(t, sol, exists))
	assert.InDelta(t, 10, value(t, sol, size), 1e-6)
	assert.InDelta(t, -100, sol.Objective, 1e-6)
}

func TestSimplex_SolverFailure(t *testing.T) {
	m := lp.NewModel()
	x := m.AddVar("x", lp.NonNegative)
	m.AddConstraint("cap", lp.Scaled(x, 1), lp.LessEq, lp.Const(3))
	m.SetObjective(lp.Scaled(x, 1), lp.Minimize)

	s := NewSimplex(Config{}, nil)
	s.simplex = func([]float64, mat.Matrix, []float64, float64) (float64, []float64, error) {
		return 0, nil, errors.New("boom")
	}
	sol, err := s.Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, lp.StatusError, sol.Status)
	assert.Equal(t, "boom", sol.Diagnostic)
}

func TestSimplex_SingularEqualitiesRetried(t *testing.T) {
	m := lp.NewModel()
	x := m.AddVar("x", lp.NonNegative)
	y := m.AddVar("y", lp.NonNegative)
	m.AddConstraint("e1", sum(term(x, 1), term(y, 1)), lp.Equal, lp.Const(2))
	m.AddConstraint("e2", sum(term(x, 1), term(y, 1)), lp.Equal, lp.Const(2))
	m.SetObjective(sum(term(x, 1), term(y, 2)), lp.Minimize)

	s := NewSimplex(Config{}, nil)
	calls := 0
	s.simplex = func(c []float64, a mat.Matrix, b []float64, tol float64) (float64, []float64, error) {
		calls++
		if calls == 1 {
			return 0, nil, golp.ErrSingular
		}
		return gonumSimplex(c, a, b, tol)
	}
	sol, err := s.Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, lp.StatusOptimal, sol.Status, sol.Diagnostic)
	assert.Equal(t, 2, calls)
	assert.InDelta(t, 2, value(t, sol, x), 1e-6)
	assert.InDelta(t, 0, value(t, sol, y), 1e-6)
}

func TestSimplex_ContextCancelled(t *testing.T) {
	m := lp.NewModel()
	m.AddVar("x", lp.NonNegative)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSimplex(Config{}, nil).Solve(ctx, m)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSimplex_NodeLimit(t *testing.T) {
	m := lp.NewModel()
	a := m.AddVar("a", lp.Binary)
	b := m.AddVar("b", lp.Binary)
	m.AddConstraint("half", sum(term(a, 2), term(b, 2)), lp.Equal, lp.Const(1))
	m.SetObjective(sum(term(a, 1), term(b, 1)), lp.Minimize)

	sol, err := NewSimplex(Config{MaxNodes: 1}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, lp.StatusNodeLimit, sol.Status)
}

func TestSimplex_Registered(t *testing.T) {
	s, err := lp.NewSolver(factory.ModuleConfig{Type: Name, Conf: map[string]any{"max_nodes": 50, "tolerance": 1e-8}})
	require.NoError(t, err)
	sx, ok := s.(*Simplex)
	require.True(t, ok)
	assert.Equal(t, 50, sx.Config().MaxNodes)
	assert.Equal(t, 1e-8, sx.Config().Tolerance)

	_, err = lp.NewSolver(factory.ModuleConfig{Type: Name, Conf: map[string]any{"integrality_tolerance": 0.7}})
	assert.Error(t, err)
}

func TestSimplex_BigMIndicatorSmallSize(t *testing.T) {
	m := lp.NewModel()
	size := m.AddVar("size", lp.NonNegative)
	shortfall := m.AddVar("shortfall", lp.NonNegative)
	exists := m.AddVar("exists", lp.Binary)
	m.AddConstraint("demand", sum(term(size, 1), term(shortfall, 1)), lp.GreaterEq, lp.Const(0.5))
	m.AddConstraint("exists", lp.Scaled(size, 1e-9), lp.LessEq, lp.Scaled(exists, 1))
	m.SetObjective(sum(term(exists, 100), term(size, 1), term(shortfall, 1000)), lp.Minimize)

	sol, err := NewSimplex(Config{}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, lp.StatusOptimal, sol.Status, sol.Diagnostic)
	// The relaxed indicator is far below the integrality tolerance, yet
	// rounding it to 0 would cost 500.
	assert.Equal(t, 1.0, value(t, sol, exists))
	assert.InDelta(t, 0.5, value(t, sol, size), 1e-6)
	assert.InDelta(t, 0, value(t, sol, shortfall), 1e-6)
	assert.InDelta(t, 100.5, sol.Objective, 1e-6)
}

func TestSimplex_SpuriousUnboundedRetried(t *testing.T) {
	m := lp.NewModel()
	x := m.AddVar("x", lp.NonNegative)
	y := m.AddVar("y", lp.NonNegative)
	m.AddConstraint("lo", sum(term(x, 1), term(y, 1)), lp.GreaterEq, lp.Const(3))
	m.SetObjective(sum(term(x, 2), term(y, 1)), lp.Minimize)

	s := NewSimplex(Config{}, nil)
	calls := 0
	s.simplex = func(c []float64, a mat.Matrix, b []float64, tol float64) (float64, []float64, error) {
		calls++
		if calls == 1 {
			return 0, nil, golp.ErrUnbounded
		}
		return gonumSimplex(c, a, b, tol)
	}
	sol, err := s.Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, lp.StatusOptimal, sol.Status, sol.Diagnostic)
	assert.Equal(t, 2, calls)
	assert.InDelta(t, 0, value(t, sol, x), 1e-6)
	assert.InDelta(t, 3, value(t, sol, y), 1e-6)
	assert.InDelta(t, 3, sol.Objective, 1e-6)
}

func TestSimplex_BadlyScaledRows(t *testing.T) {
	m := lp.NewModel()
	energy := m.AddVar("energy", lp.NonNegative)
	power := m.AddVar("power", lp.NonNegative)
	// energy in J is 3600 times the power in W over one hour.
	m.AddConstraint("integrate", lp.Scaled(energy, 1), lp.Equal, lp.Scaled(power, 3600))
	m.AddConstraint("need", lp.Scaled(energy, 1), lp.GreaterEq, lp.Const(3.6e6))
	m.AddConstraint("cap", lp.Scaled(power, 1e-9), lp.LessEq, lp.Const(1))
	m.SetObjective(lp.Scaled(power, 1e-3), lp.Minimize)

	sol, err := NewSimplex(Config{}, nil).Solve(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, lp.StatusOptimal, sol.Status, sol.Diagnostic)
	assert.InDelta(t, 1000, value(t, sol, power), 1e-6)
	assert.InDelta(t, 3.6e6, value(t, sol, energy), 1e-3)
	assert.InDelta(t, 1, sol.Objective, 1e-9)
}

func TestEquilibrate(t *testing.T) {
	rows := []sparseRow{
		{name: "link", idx: []int{0, 1}, coef: []float64{1, -1e9}, rel: lp.LessEq},
		{name: "cap", idx: []int{0}, coef: []float64{1}, rel: lp.LessEq, rhs: 10},
	}
	scale := equilibrate(2, rows)
	require.Len(t, scale, 2)

	lo, hi := math.Inf(1), 0.0
	for _, r := range rows {
		for _, v := range r.coef {
			lo, hi = math.Min(lo, math.Abs(v)), math.Max(hi, math.Abs(v))
		}
	}
	assert.Less(t, hi/lo, 1e3)
	for _, k := range scale {
		assert.Equal(t, math.Round(math.Log2(k)), math.Log2(k), "factor %g", k)
	}
	// Unscaling the columns restores the row's proportions.
	assert.InEpsilon(t, -1e9, (rows[0].coef[1]/scale[1])/(rows[0].coef[0]/scale[0]), 1e-12)
	assert.InEpsilon(t, 10, rows[1].rhs/(rows[1].coef[0]/scale[0]), 1e-12)
}

func TestRegisterSolver_Duplicate(t *testing.T) {
	assert.Contains(t, lp.SolverNames(), Name)
	assert.Error(t, lp.RegisterSolver(Name, newFromConf))
}
