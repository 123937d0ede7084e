// Package optimization formulates and solves optimal operation and planning
// problems over a building's linear state-space model.
//
// NewProblem builds the variables, constraints and objective of one problem
// kind; Problem.Solve hands the model to an lp.Solver and extracts the
// trajectories, costs and solved scalars into a Result:
//
//	p, err := optimization.NewProblem(building, optimization.KindOperation, optimization.Options{})
//	if err != nil {
//		return err
//	}
//	res, err := p.Solve(ctx, solver, optimization.SolveConfig{})
//	if err != nil {
//		return err
//	}
//	if err := res.Err(); err != nil {
//		return err // infeasible, unbounded or limit reached
//	}
//
// Every NewProblem call works on its own copy of the price series, so
// problems for the same building may be formulated and solved concurrently.
package optimization
