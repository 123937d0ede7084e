package lp

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownVariable is returned when an expression references a variable
// that does not belong to the model.
var ErrUnknownVariable = errors.New("unknown variable")

// Domain restricts the values a variable can take.
type Domain int

const (
	Real Domain = iota
	NonNegative
	Binary
)

func (d Domain) String() string {
	switch d {
	case Real:
		return "real"
	case NonNegative:
		return "non_negative"
	case Binary:
		return "binary"
	default:
		return fmt.Sprintf("domain(%d)", int(d))
	}
}

// Relation is the comparison operator of a constraint.
type Relation int

const (
	LessEq Relation = iota
	GreaterEq
	Equal
)

func (r Relation) String() string {
	switch r {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	case Equal:
		return "=="
	default:
		return "?"
	}
}

// Sense is the optimization direction of the objective.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

// VarInfo describes a declared variable.
type VarInfo struct {
	Name   string
	Domain Domain
}

// Constraint is Expr Rel RHS with Expr free of constants.
type Constraint struct {
	Name string
	Expr Expr
	Rel  Relation
	RHS  float64
}

// Satisfied reports whether the constraint holds for the given values within
// tol.
func (c Constraint) Satisfied(value func(Var) float64, tol float64) bool {
	lhs := c.Expr.Eval(value)
	switch c.Rel {
	case LessEq:
		return lhs <= c.RHS+tol
	case GreaterEq:
		return lhs >= c.RHS-tol
	default:
		return math.Abs(lhs-c.RHS) <= tol
	}
}

// Model is a linear or mixed-integer program. Constraints are append-only.
type Model struct {
	vars        []VarInfo
	constraints []Constraint
	objective   Expr
	sense       Sense
}

// NewModel returns an empty model with a zero objective to minimize.
func NewModel() *Model { return &Model{} }

// AddVar declares a new variable.
func (m *Model) AddVar(name string, d Domain) Var {
	m.vars = append(m.vars, VarInfo{Name: name, Domain: d})
	return Var{id: len(m.vars) - 1}
}

// AddConstraint appends lhs rel rhs. Constants of both sides are folded into
// the right-hand side.
func (m *Model) AddConstraint(name string, lhs Expr, rel Relation, rhs Expr) {
	var e Expr
	e.AddExpr(lhs, 1)
	e.AddExpr(rhs, -1)
	e = e.Compact()
	m.constraints = append(m.constraints, Constraint{
		Name: name,
		Expr: Expr{Terms: e.Terms},
		Rel:  rel,
		RHS:  -e.Constant,
	})
}

// SetObjective replaces the objective.
func (m *Model) SetObjective(e Expr, s Sense) {
	m.objective = e.Compact()
	m.sense = s
}

// NumVars returns the number of declared variables.
func (m *Model) NumVars() int { return len(m.vars) }

// NumConstraints returns the number of constraints.
func (m *Model) NumConstraints() int { return len(m.constraints) }

// Var returns the declaration of v.
func (m *Model) Var(v Var) VarInfo { return m.vars[v.id] }

// Vars returns the variable declarations in declaration order.
func (m *Model) Vars() []VarInfo { return m.vars }

// Constraints returns the constraints in insertion order.
func (m *Model) Constraints() []Constraint { return m.constraints }

// Objective returns the objective expression and its sense.
func (m *Model) Objective() (Expr, Sense) { return m.objective, m.sense }

// Validate checks that every expression references declared variables and
// carries finite coefficients.
func (m *Model) Validate() error {
	check := func(where string, e Expr) error {
		for _, t := range e.Terms {
			if t.Var.id < 0 || t.Var.id >= len(m.vars) {
				return fmt.Errorf("%s: %w %d", where, ErrUnknownVariable, t.Var.id)
			}
			if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
				return fmt.Errorf("%s: coefficient of %s is not finite", where, m.vars[t.Var.id].Name)
			}
		}
		if math.IsNaN(e.Constant) || math.IsInf(e.Constant, 0) {
			return fmt.Errorf("%s: constant is not finite", where)
		}
		return nil
	}
	for i, c := range m.constraints {
		if err := check(fmt.Sprintf("constraint %d (%s)", i, c.Name), c.Expr); err != nil {
			return err
		}
		if math.IsNaN(c.RHS) || math.IsInf(c.RHS, 0) {
			return fmt.Errorf("constraint %d (%s): right-hand side is not finite", i, c.Name)
		}
	}
	return check("objective", m.objective)
}
