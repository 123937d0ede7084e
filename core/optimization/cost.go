package optimization

import "github.com/kilianp07/buildopt/core/lp"

// Cost is an objective component that is either the concrete zero or a
// linear expression. The zero value is the concrete zero.
type Cost struct {
	expr    lp.Expr
	touched bool
}

// Add accumulates coef·v.
func (c *Cost) Add(v lp.Var, coef float64) {
	c.expr.Add(v, coef)
	c.touched = true
}

// AddExpr accumulates scale·e.
func (c *Cost) AddExpr(e lp.Expr, scale float64) {
	c.expr.AddExpr(e, scale)
	c.touched = true
}

// IsZero reports whether the cost was never accumulated into.
func (c Cost) IsZero() bool { return !c.touched }

// Expr returns the accumulated expression, the constant 0 when untouched.
func (c Cost) Expr() lp.Expr { return c.expr }

// Value evaluates the cost. An untouched cost yields 0 without evaluation.
func (c Cost) Value(value func(lp.Var) float64) float64 {
	if !c.touched {
		return 0
	}
	return c.expr.Eval(value)
}
