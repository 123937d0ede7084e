package optimization

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/buildopt/core/model"
)

// ErrTrajectoryMismatch reports a trajectory violating the building model.
var ErrTrajectoryMismatch = errors.New("trajectory violates the building model")

// VerifyTrajectory checks the initial state, state equation and output
// equation of b against fixed trajectories. It returns the largest absolute
// residual and an error wrapping ErrTrajectoryMismatch when that residual
// exceeds tol.
func VerifyTrajectory(b *model.Building, states, controls, outputs *model.Table, tol float64) (float64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	for _, tc := range []struct {
		name  string
		table *model.Table
		cols  []string
	}{
		{"states", states, b.States},
		{"controls", controls, b.Controls},
		{"outputs", outputs, b.Outputs},
	} {
		if tc.table == nil {
			return 0, fmt.Errorf("%w: no %s table", ErrMissingParameter, tc.name)
		}
		if miss := tc.table.Covers(b.Timesteps, tc.cols); miss != "" {
			return 0, fmt.Errorf("%w: %s table has no %s", ErrInvalidParameter, tc.name, miss)
		}
	}

	a := coefficients(b.StateMatrix, b.States, b.States)
	bm := coefficients(b.ControlMatrix, b.States, b.Controls)
	e := coefficients(b.DisturbanceMatrix, b.States, b.Disturbances)
	c := coefficients(b.StateOutputMatrix, b.Outputs, b.States)
	d := coefficients(b.ControlOutputMatrix, b.Outputs, b.Controls)
	f := coefficients(b.DisturbanceOutputMatrix, b.Outputs, b.Disturbances)
	dist := disturbances(b)

	row := func(t *model.Table, ts time.Time, cols []string) []float64 {
		out := make([]float64, len(cols))
		for j, name := range cols {
			out[j], _ = t.At(ts, name)
		}
		return out
	}

	worst, where := 0.0, ""
	check := func(got, want float64, label string) {
		if r := math.Abs(got - want); r > worst || math.IsNaN(r) {
			worst, where = r, label
		}
	}

	x0 := row(states, b.Timesteps[0], b.States)
	for i, s := range b.States {
		check(x0[i], b.StateInitial[s], "initial state "+s)
	}
	for t, ts := range b.Timesteps {
		x := row(states, ts, b.States)
		u := row(controls, ts, b.Controls)
		y := row(outputs, ts, b.Outputs)
		stamp := ts.Format(time.RFC3339)
		for k, o := range b.Outputs {
			check(y[k], linear(c[k], x, d[k], u, f[k], dist[t]), "output "+o+" at "+stamp)
		}
		if t == len(b.Timesteps)-1 {
			continue
		}
		next := row(states, b.Timesteps[t+1], b.States)
		for i, s := range b.States {
			check(next[i], linear(a[i], x, bm[i], u, e[i], dist[t]), "state "+s+" after "+stamp)
		}
	}
	if worst > tol || math.IsNaN(worst) {
		return worst, fmt.Errorf("%w: residual %g at %s", ErrTrajectoryMismatch, worst, where)
	}
	return worst, nil
}

func linear(x, vx, u, vu, w, vw []float64) float64 {
	sum := 0.0
	for j := range x {
		sum += x[j] * vx[j]
	}
	for j := range u {
		sum += u[j] * vu[j]
	}
	for j := range w {
		sum += w[j] * vw[j]
	}
	return sum
}
