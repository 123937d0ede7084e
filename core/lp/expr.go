package lp

import "sort"

// Var is a handle to a decision variable of a Model.
type Var struct{ id int }

// ID returns the index of the variable in its model.
func (v Var) ID() int { return v.id }

// Term is a coefficient applied to a variable.
type Term struct {
	Var  Var
	Coef float64
}

// Expr is an affine expression Σ coef·var + Constant.
// The zero value is the constant 0.
type Expr struct {
	Terms    []Term
	Constant float64
}

// Const returns the constant expression c.
func Const(c float64) Expr { return Expr{Constant: c} }

// Scaled returns the expression coef·v.
func Scaled(v Var, coef float64) Expr { return Expr{Terms: []Term{{Var: v, Coef: coef}}} }

// Add appends coef·v to e.
func (e *Expr) Add(v Var, coef float64) {
	if coef == 0 {
		return
	}
	e.Terms = append(e.Terms, Term{Var: v, Coef: coef})
}

// AddConst adds c to the constant part of e.
func (e *Expr) AddConst(c float64) { e.Constant += c }

// AddExpr adds scale·o to e.
func (e *Expr) AddExpr(o Expr, scale float64) {
	if scale == 0 {
		return
	}
	for _, t := range o.Terms {
		e.Add(t.Var, t.Coef*scale)
	}
	e.Constant += o.Constant * scale
}

// Scale returns a copy of e multiplied by s.
func (e Expr) Scale(s float64) Expr {
	var out Expr
	out.AddExpr(e, s)
	return out
}

// IsConstant reports whether e carries no variable terms.
func (e Expr) IsConstant() bool { return len(e.Terms) == 0 }

// Eval evaluates e using value to resolve variables.
func (e Expr) Eval(value func(Var) float64) float64 {
	sum := e.Constant
	for _, t := range e.Terms {
		sum += t.Coef * value(t.Var)
	}
	return sum
}

// Compact returns e with duplicate variables merged, zero coefficients
// dropped and terms sorted by variable id.
func (e Expr) Compact() Expr {
	if len(e.Terms) == 0 {
		return Expr{Constant: e.Constant}
	}
	acc := make(map[int]float64, len(e.Terms))
	for _, t := range e.Terms {
		acc[t.Var.id] += t.Coef
	}
	out := Expr{Constant: e.Constant, Terms: make([]Term, 0, len(acc))}
	for id, c := range acc {
		if c != 0 {
			out.Terms = append(out.Terms, Term{Var: Var{id: id}, Coef: c})
		}
	}
	sort.Slice(out.Terms, func(i, j int) bool { return out.Terms[i].Var.id < out.Terms[j].Var.id })
	return out
}
