// Package lp is a small solver-independent modelling layer for linear and
// mixed-integer programs. A Model collects variables with a Domain, affine
// constraints and an objective; a Solver turns it into a Solution.
//
// Example usage:
//
//	m := lp.NewModel()
//	x := m.AddVar("x", lp.NonNegative)
//	m.AddConstraint("cap", lp.Scaled(x, 1), lp.LessEq, lp.Const(4))
//	m.SetObjective(lp.Scaled(x, -1), lp.Minimize)
//	sol, err := solver.Solve(ctx, m)
package lp
