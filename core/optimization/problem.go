package optimization

import (
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/buildopt/core/logger"
	"github.com/kilianp07/buildopt/core/lp"
	"github.com/kilianp07/buildopt/core/model"
)

// Problem is the optimization model of one building under one problem kind.
// It is built by NewProblem and consumed by Solve; it is not safe for
// concurrent use.
type Problem struct {
	building *model.Building
	kind     Kind
	opts     Options
	log      logger.Logger

	model *lp.Model
	delta time.Duration
	// price is the invocation-scoped copy of the building's price series.
	price *model.Table

	// Trajectory variables indexed [timestep][name].
	states   [][]lp.Var
	controls [][]lp.Var
	outputs  [][]lp.Var

	storageSize      *lp.Var
	storagePeakPower *lp.Var
	storageExists    *lp.Var
	loadReduction    *lp.Var
	medium           storageMedium
	capacityFactor   float64

	costFactor     float64
	operationCost  Cost
	investmentCost Cost
	setup          time.Duration
}

// NewProblem formulates the optimization model of b for kind. Missing or
// invalid kind parameters are reported as errors wrapping
// ErrMissingParameter or ErrInvalidParameter; no partial problem is returned.
func NewProblem(b *model.Building, kind Kind, opts Options) (*Problem, error) {
	start := time.Now()
	if err := b.Validate(); err != nil {
		return nil, err
	}
	v, ok := variants[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown problem kind %d", ErrInvalidParameter, int(kind))
	}
	opts.Planning = opts.Planning.withDefaults()
	p := &Problem{
		building:   b,
		kind:       kind,
		opts:       opts,
		log:        logger.OrNop(opts.Logger),
		model:      lp.NewModel(),
		delta:      b.TimestepDelta(),
		price:      b.ElectricityPrice.Copy(),
		costFactor: 1.0,
	}

	p.declareTrajectories()
	if v.declare != nil {
		if err := v.declare(p); err != nil {
			return nil, err
		}
	}
	p.constrainInitialState()
	p.constrainDynamics()
	if err := p.constrainOutputs(v); err != nil {
		return nil, err
	}
	if v.constrain != nil {
		v.constrain(p)
	}
	if v.costFactor != nil {
		p.costFactor = v.costFactor(p)
	}
	if v.adjustPrice != nil {
		if err := v.adjustPrice(p); err != nil {
			return nil, err
		}
	}
	if err := p.accumulateOperationCost(v.pureLoad); err != nil {
		return nil, err
	}
	if v.investment != nil {
		v.investment(p)
	}

	var objective lp.Expr
	objective.AddExpr(p.operationCost.Expr(), 1)
	objective.AddExpr(p.investmentCost.Expr(), 1)
	p.model.SetObjective(objective, lp.Minimize)

	p.setup = time.Since(start)
	p.log.Debugw("problem formulated", map[string]any{
		"kind":          kind.String(),
		"variables":     p.model.NumVars(),
		"constraints":   p.model.NumConstraints(),
		"setup_seconds": p.setup.Seconds(),
	})
	return p, nil
}

// Kind returns the problem kind.
func (p *Problem) Kind() Kind { return p.kind }

// Model exposes the formulated model.
func (p *Problem) Model() *lp.Model { return p.model }

// Building returns the building the problem was formulated for.
func (p *Problem) Building() *model.Building { return p.building }

// OperationCostFactor returns the factor applied to every operation cost term.
func (p *Problem) OperationCostFactor() float64 { return p.costFactor }

// Prices returns a copy of the price series used for the operation cost.
func (p *Problem) Prices() *model.Table { return p.price.Copy() }

// SetupDuration returns the time spent formulating the problem.
func (p *Problem) SetupDuration() time.Duration { return p.setup }

func (p *Problem) declareTrajectories() {
	b := p.building
	n := len(b.Timesteps)
	p.states = make([][]lp.Var, n)
	p.controls = make([][]lp.Var, n)
	p.outputs = make([][]lp.Var, n)
	for t, ts := range b.Timesteps {
		stamp := ts.Format(time.RFC3339)
		p.states[t] = make([]lp.Var, len(b.States))
		for i, s := range b.States {
			p.states[t][i] = p.model.AddVar("state["+stamp+","+s+"]", lp.Real)
		}
		p.controls[t] = make([]lp.Var, len(b.Controls))
		for i, c := range b.Controls {
			p.controls[t][i] = p.model.AddVar("control["+stamp+","+c+"]", lp.NonNegative)
		}
		p.outputs[t] = make([]lp.Var, len(b.Outputs))
		for i, o := range b.Outputs {
			p.outputs[t][i] = p.model.AddVar("output["+stamp+","+o+"]", lp.Real)
		}
	}
}

func (p *Problem) constrainInitialState() {
	for i, s := range p.building.States {
		p.model.AddConstraint("initial_state["+s+"]",
			lp.Scaled(p.states[0][i], 1), lp.Equal, lp.Const(p.building.StateInitial[s]))
	}
}

// constrainDynamics adds state[t+Δt] = A·state[t] + B·control[t] + E·disturbance[t]
// for every consecutive timestep pair.
func (p *Problem) constrainDynamics() {
	b := p.building
	a := coefficients(b.StateMatrix, b.States, b.States)
	bm := coefficients(b.ControlMatrix, b.States, b.Controls)
	e := coefficients(b.DisturbanceMatrix, b.States, b.Disturbances)
	dist := disturbances(b)
	for t := 0; t < len(b.Timesteps)-1; t++ {
		for i, s := range b.States {
			var rhs lp.Expr
			p.addLinear(&rhs, a[i], p.states[t], bm[i], p.controls[t], e[i], dist[t])
			p.model.AddConstraint(fmt.Sprintf("state_equation[%s,%d]", s, t),
				lp.Scaled(p.states[t+1][i], 1), lp.Equal, rhs)
		}
	}
}

func (p *Problem) constrainOutputs(v variant) error {
	b := p.building
	c := coefficients(b.StateOutputMatrix, b.Outputs, b.States)
	d := coefficients(b.ControlOutputMatrix, b.Outputs, b.Controls)
	f := coefficients(b.DisturbanceOutputMatrix, b.Outputs, b.Disturbances)
	dist := disturbances(b)
	for t, ts := range b.Timesteps {
		for k, o := range b.Outputs {
			out := lp.Scaled(p.outputs[t][k], 1)
			var rhs lp.Expr
			p.addLinear(&rhs, c[k], p.states[t], d[k], p.controls[t], f[k], dist[t])
			p.model.AddConstraint(fmt.Sprintf("output_equation[%s,%d]", o, t), out, lp.Equal, rhs)

			lo, _ := b.OutputMinimum.At(ts, o)
			hi, _ := b.OutputMaximum.At(ts, o)
			if math.IsNaN(lo) || math.IsNaN(hi) {
				return fmt.Errorf("%w: output bound of %q at %s is NaN", model.ErrInvalidBuilding, o, ts.Format(time.RFC3339))
			}

			switch {
			case v.pinTemperatures && isTemperature(o):
				// The initial temperature is given by the initial state.
				if t > 0 {
					if math.IsInf(lo, 0) {
						return fmt.Errorf("%w: cannot pin %q to an infinite minimum", ErrInvalidParameter, o)
					}
					p.model.AddConstraint(fmt.Sprintf("output_pinned[%s,%d]", o, t), out, lp.Equal, lp.Const(lo))
				}
			case !math.IsInf(lo, -1):
				p.model.AddConstraint(fmt.Sprintf("output_minimum[%s,%d]", o, t), out, lp.GreaterEq, lp.Const(lo))
			}

			switch {
			case v.storageCapacity && isStateOfCharge(o):
				p.model.AddConstraint(fmt.Sprintf("storage_capacity[%s,%d]", o, t), out, lp.LessEq, p.storageCapacity())
			case !math.IsInf(hi, 1):
				p.model.AddConstraint(fmt.Sprintf("output_maximum[%s,%d]", o, t), out, lp.LessEq, lp.Const(hi))
			}
		}
	}
	return nil
}

// storageCapacity is the state-of-charge bound: storage size times the
// medium's capacity factor, the constant 0 when no size variable exists.
func (p *Problem) storageCapacity() lp.Expr {
	if p.storageSize == nil {
		return lp.Const(0)
	}
	return lp.Scaled(*p.storageSize, p.capacityFactor)
}

func (p *Problem) accumulateOperationCost(pureLoad bool) error {
	b := p.building
	if pureLoad {
		k := indexOf(b.Outputs, GridPowerOutput)
		if k < 0 {
			return fmt.Errorf("%w: %s requires a %q output", ErrInvalidParameter, p.kind, GridPowerOutput)
		}
		for t := range b.Timesteps {
			p.operationCost.Add(p.outputs[t][k], 1)
		}
		return nil
	}
	col, _ := p.price.Column(model.PriceColumn)
	// W to kWh over one timestep.
	energy := p.delta.Hours() / 1000.0
	for t, ts := range b.Timesteps {
		row, _ := p.price.Row(ts)
		price := p.price.AtIndex(row, col)
		for k, o := range b.Outputs {
			if isElectricDemand(o) {
				p.operationCost.Add(p.outputs[t][k], energy*price*p.costFactor)
			}
		}
	}
	return nil
}

// addLinear appends Σ x·vx + Σ u·vu + Σ w·dist to e.
func (p *Problem) addLinear(e *lp.Expr, x []float64, vx []lp.Var, u []float64, vu []lp.Var, w []float64, dist []float64) {
	for j, c := range x {
		e.Add(vx[j], c)
	}
	for j, c := range u {
		e.Add(vu[j], c)
	}
	for j, c := range w {
		e.AddConst(c * dist[j])
	}
}

// coefficients lays m out densely in the order of rows and cols.
func coefficients(m *model.Matrix, rows, cols []string) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = make([]float64, len(cols))
		for j, c := range cols {
			out[i][j] = m.At(r, c)
		}
	}
	return out
}

// disturbances returns the disturbance values indexed [timestep][name].
func disturbances(b *model.Building) [][]float64 {
	out := make([][]float64, len(b.Timesteps))
	for t, ts := range b.Timesteps {
		out[t] = make([]float64, len(b.Disturbances))
		for j, d := range b.Disturbances {
			out[t][j], _ = b.DisturbanceTimeseries.At(ts, d)
		}
	}
	return out
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
