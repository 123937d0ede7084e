// Package solver provides the concrete lp.Solver used by the optimization
// core. Relaxations are converted to gonum's standard form with lp.Convert
// and solved with lp.Simplex; binary variables are resolved by depth-first
// branch-and-bound. The solver registers itself under the name "simplex".
package solver
