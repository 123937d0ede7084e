package solver

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	golp "gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/kilianp07/buildopt/core/lp"
)

// simplexFunc solves min cᵀx s.t. Ax = b, x >= 0. It can be replaced in tests
// to simulate solver failures.
type simplexFunc func(c []float64, a mat.Matrix, b []float64, tol float64) (float64, []float64, error)

func gonumSimplex(c []float64, a mat.Matrix, b []float64, tol float64) (f float64, x []float64, err error) {
	// Simplex panics on malformed input; surface that as a solver error.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("simplex panic: %v", r)
		}
	}()
	return golp.Simplex(c, a, b, tol, nil)
}

// sparseRow is one general-form row over variable ids.
type sparseRow struct {
	name string
	idx  []int
	coef []float64
	rel  lp.Relation
	rhs  float64
}

// relaxResult is a solved LP relaxation in minimization sense.
type relaxResult struct {
	status lp.Status
	obj    float64
	x      []float64
	diag   string
	// retry is set when the simplex itself failed or claimed unboundedness,
	// so another standard form may still solve the relaxation.
	retry bool
	// equalities reports whether the form carried equality rows.
	equalities bool
}

// form selects how the general-form rows are handed to the simplex.
type form struct {
	// splitEq turns every equality into a pair of inequalities.
	splitEq bool
	// box bounds every scaled variable by boxBound.
	box bool
}

// boxBound is the magnitude, in scaled units, of the bounds added by the
// boxed form. A boxed optimum at half of it or more is reported unbounded.
const boxBound = 1e12

// scalingPasses is the number of alternating row and column passes of the
// geometric equilibration.
const scalingPasses = 4

// relax solves the LP relaxation of m with the given variables fixed. Binary
// variables that are not fixed are relaxed to [0, 1].
//
// The simplex can fail on near-singular bases or report a bounded problem as
// unbounded. Such failures are retried with equalities split into
// inequality pairs, then with every variable boxed.
func (s *Simplex) relax(m *lp.Model, fixed map[int]float64) relaxResult {
	r := s.relaxForm(m, fixed, form{})
	if !r.retry {
		return r
	}
	if r.equalities {
		r = s.relaxForm(m, fixed, form{splitEq: true})
		if !r.retry {
			return r
		}
	}
	if s.cfg.Verbose {
		s.log.Debugw("relaxation retried with boxed variables", map[string]any{"diag": r.diag})
	}
	r = s.relaxForm(m, fixed, form{splitEq: true, box: true})
	r.retry = false
	return r
}

func (s *Simplex) relaxForm(m *lp.Model, fixed map[int]float64, f form) relaxResult {
	splitEq := f.splitEq
	vars := m.Vars()
	n := len(vars)
	obj, sense := m.Objective()
	sign := 1.0
	if sense == lp.Maximize {
		sign = -1
	}
	cost := make([]float64, n)
	for _, t := range obj.Terms {
		cost[t.Var.ID()] += sign * t.Coef
	}
	constObj := sign * obj.Constant
	x := make([]float64, n)
	for id, v := range fixed {
		x[id] = v
		constObj += cost[id] * v
	}

	rows := make([]sparseRow, 0, m.NumConstraints()+n)
	for _, c := range m.Constraints() {
		r := sparseRow{name: c.Name, rel: c.Rel, rhs: c.RHS}
		for _, t := range c.Expr.Terms {
			id := t.Var.ID()
			if v, ok := fixed[id]; ok {
				r.rhs -= t.Coef * v
				continue
			}
			r.idx = append(r.idx, id)
			r.coef = append(r.coef, t.Coef)
		}
		rows = append(rows, r)
	}
	for id, info := range vars {
		if _, ok := fixed[id]; ok {
			continue
		}
		switch info.Domain {
		case lp.NonNegative:
			rows = append(rows, sparseRow{name: info.Name + ">=0", idx: []int{id}, coef: []float64{1}, rel: lp.GreaterEq})
		case lp.Binary:
			rows = append(rows,
				sparseRow{name: info.Name + ">=0", idx: []int{id}, coef: []float64{1}, rel: lp.GreaterEq},
				sparseRow{name: info.Name + "<=1", idx: []int{id}, coef: []float64{1}, rel: lp.LessEq, rhs: 1},
			)
		}
	}

	// Rows without variables are either trivially true or make the node
	// infeasible.
	kept := rows[:0]
	for _, r := range rows {
		if len(r.idx) > 0 {
			kept = append(kept, r)
			continue
		}
		if !constantHolds(r, s.cfg.Tolerance) {
			return relaxResult{status: lp.StatusInfeasible, diag: fmt.Sprintf("constraint %s reduces to an infeasible constant", r.name)}
		}
	}
	rows = kept

	col := make([]int, n)
	for i := range col {
		col[i] = -1
	}
	var cols []int
	for _, r := range rows {
		for _, id := range r.idx {
			if col[id] < 0 {
				col[id] = len(cols)
				cols = append(cols, id)
			}
		}
	}
	for id := range vars {
		if _, ok := fixed[id]; ok || col[id] >= 0 {
			continue
		}
		if cost[id] != 0 {
			return relaxResult{status: lp.StatusUnbounded, diag: fmt.Sprintf("variable %s is unconstrained but priced", vars[id].Name)}
		}
	}
	if len(cols) == 0 {
		return relaxResult{status: lp.StatusOptimal, obj: constObj, x: x}
	}

	nEq := 0
	for _, r := range rows {
		if r.rel == lp.Equal {
			nEq++
		}
	}
	// Standard form needs at least as many columns as rows.
	if nEq > 2*len(cols) {
		splitEq = true
	}
	var gRows, aRows []sparseRow
	for _, r := range rows {
		switch {
		case r.rel == lp.Equal && !splitEq:
			aRows = append(aRows, r)
		case r.rel == lp.Equal:
			gRows = append(gRows, r, negate(r))
		case r.rel == lp.GreaterEq:
			gRows = append(gRows, negate(r))
		default:
			gRows = append(gRows, r)
		}
	}

	scale := equilibrate(n, gRows, aRows)
	if f.box {
		// Box rows bound the scaled variables.
		for _, id := range cols {
			gRows = append(gRows,
				sparseRow{name: vars[id].Name + "<=box", idx: []int{id}, coef: []float64{1}, rel: lp.LessEq, rhs: boxBound},
				sparseRow{name: vars[id].Name + ">=-box", idx: []int{id}, coef: []float64{-1}, rel: lp.LessEq, rhs: boxBound},
			)
		}
	}
	c := make([]float64, len(cols))
	for j, id := range cols {
		c[j] = cost[id] * scale[id]
	}
	var g, a mat.Matrix
	var h, b []float64
	if len(gRows) > 0 {
		g, h = dense(gRows, col, len(cols))
	}
	if len(aRows) > 0 {
		a, b = dense(aRows, col, len(cols))
	}
	cStd, aStd, bStd := golp.Convert(c, g, h, a, b)
	rr, cc := aStd.Dims()
	for i := 0; i < rr; i++ {
		if bStd[i] >= 0 {
			continue
		}
		bStd[i] = -bStd[i]
		for j := 0; j < cc; j++ {
			aStd.Set(i, j, -aStd.At(i, j))
		}
	}

	eq := len(aRows) > 0
	_, xs, err := s.simplex(cStd, aStd, bStd, s.cfg.Tolerance)
	if err != nil {
		switch {
		case errors.Is(err, golp.ErrInfeasible):
			return relaxResult{status: lp.StatusInfeasible, diag: err.Error()}
		case errors.Is(err, golp.ErrUnbounded):
			return relaxResult{status: lp.StatusUnbounded, diag: err.Error(), retry: true, equalities: eq}
		default:
			return relaxResult{status: lp.StatusError, diag: err.Error(), retry: true, equalities: eq}
		}
	}
	nc := len(cols)
	for j, id := range cols {
		y := xs[j] - xs[nc+j]
		if f.box && math.Abs(y) >= boxBound/2 {
			return relaxResult{status: lp.StatusUnbounded, diag: fmt.Sprintf("variable %s grows without bound", vars[id].Name)}
		}
		x[id] = y * scale[id]
	}
	objVal := constObj
	for _, id := range cols {
		objVal += cost[id] * x[id]
	}
	return relaxResult{status: lp.StatusOptimal, obj: objVal, x: x}
}

// equilibrate scales rows and columns in place so that the nonzero
// magnitudes of every row and column have a geometric mean near one. Factors
// are powers of two. It returns the column factors by variable id: the
// original variable is the scaled one times its factor.
func equilibrate(n int, sets ...[]sparseRow) []float64 {
	scale := make([]float64, n)
	for i := range scale {
		scale[i] = 1
	}
	lo := make([]float64, n)
	hi := make([]float64, n)
	for pass := 0; pass < scalingPasses; pass++ {
		for _, rows := range sets {
			for i := range rows {
				mn, mx := math.Inf(1), 0.0
				for _, v := range rows[i].coef {
					if a := math.Abs(v); a > 0 {
						mn, mx = math.Min(mn, a), math.Max(mx, a)
					}
				}
				if mx == 0 {
					continue
				}
				k := pow2(1 / math.Sqrt(mn*mx))
				for j := range rows[i].coef {
					rows[i].coef[j] *= k
				}
				rows[i].rhs *= k
			}
		}
		for i := range lo {
			lo[i], hi[i] = math.Inf(1), 0
		}
		for _, rows := range sets {
			for _, r := range rows {
				for j, id := range r.idx {
					if a := math.Abs(r.coef[j]); a > 0 {
						lo[id], hi[id] = math.Min(lo[id], a), math.Max(hi[id], a)
					}
				}
			}
		}
		k := make([]float64, n)
		for id := range k {
			k[id] = 1
			if hi[id] > 0 {
				k[id] = pow2(1 / math.Sqrt(lo[id]*hi[id]))
			}
			scale[id] *= k[id]
		}
		for _, rows := range sets {
			for _, r := range rows {
				for j, id := range r.idx {
					r.coef[j] *= k[id]
				}
			}
		}
	}
	return scale
}

// pow2 rounds v to the nearest power of two.
func pow2(v float64) float64 {
	return math.Exp2(math.Round(math.Log2(v)))
}

func constantHolds(r sparseRow, tol float64) bool {
	t := tol * math.Max(1, math.Abs(r.rhs))
	switch r.rel {
	case lp.LessEq:
		return 0 <= r.rhs+t
	case lp.GreaterEq:
		return 0 >= r.rhs-t
	default:
		return math.Abs(r.rhs) <= t
	}
}

func negate(r sparseRow) sparseRow {
	out := sparseRow{name: r.name, idx: r.idx, coef: make([]float64, len(r.coef)), rel: lp.LessEq, rhs: -r.rhs}
	for i, v := range r.coef {
		out.coef[i] = -v
	}
	return out
}

func dense(rows []sparseRow, col []int, nCols int) (*mat.Dense, []float64) {
	m := mat.NewDense(len(rows), nCols, nil)
	rhs := make([]float64, len(rows))
	for i, r := range rows {
		for k, id := range r.idx {
			j := col[id]
			m.Set(i, j, m.At(i, j)+r.coef[k])
		}
		rhs[i] = r.rhs
	}
	return m, rhs
}
