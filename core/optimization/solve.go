package optimization

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/buildopt/core/logger"
	"github.com/kilianp07/buildopt/core/lp"
	"github.com/kilianp07/buildopt/core/metrics"
	"github.com/kilianp07/buildopt/core/model"
)

// ErrSolveFailed is wrapped by SolveError.
var ErrSolveFailed = errors.New("optimization did not terminate optimally")

// SolveError describes a non-optimal termination.
type SolveError struct {
	Kind       Kind
	Status     lp.Status
	Diagnostic string
}

func (e *SolveError) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Status)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Status, e.Diagnostic)
}

func (e *SolveError) Unwrap() error { return ErrSolveFailed }

// SolveConfig configures one Solve call.
type SolveConfig struct {
	// Verbose logs model size and solve progress at info level.
	Verbose  bool
	Recorder metrics.Recorder
	Logger   logger.Logger
}

// Result holds the extracted solution of a Problem. Tables and costs are
// only set when Status is lp.StatusOptimal.
type Result struct {
	RunID      uuid.UUID
	Kind       Kind
	Status     lp.Status
	Diagnostic string

	Controls *model.Table
	States   *model.Table
	Outputs  *model.Table

	OperationCost  float64
	InvestmentCost float64
	Objective      float64

	// StorageSize is set for the storage planning kinds only.
	StorageSize      *float64
	StoragePeakPower *float64
	StorageExists    *float64
	// LoadReduction is the achieved reduction in percent.
	LoadReduction *float64

	// MissingValues counts trajectory entries the solver left unassigned;
	// they read as zero.
	MissingValues int

	SetupDuration   time.Duration
	SolveDuration   time.Duration
	ExtractDuration time.Duration
}

// Optimal reports whether the solve terminated optimally.
func (r *Result) Optimal() bool { return r.Status == lp.StatusOptimal }

// Err returns nil for optimal results and a *SolveError otherwise.
func (r *Result) Err() error {
	if r.Optimal() {
		return nil
	}
	return &SolveError{Kind: r.Kind, Status: r.Status, Diagnostic: r.Diagnostic}
}

// Solve invokes solver on the problem and extracts the result. A non-optimal
// termination is returned as a Result with that status; the error is
// reserved for the solver failing to run.
func (p *Problem) Solve(ctx context.Context, solver lp.Solver, cfg SolveConfig) (*Result, error) {
	log := logger.OrNop(cfg.Logger)
	if cfg.Logger == nil {
		log = p.log
	}
	rec := cfg.Recorder
	if rec == nil {
		rec = metrics.NopRecorder{}
	}
	res := &Result{RunID: uuid.New(), Kind: p.kind, SetupDuration: p.setup}
	if cfg.Verbose {
		log.Infof("solving %s problem %s: %d variables, %d constraints",
			p.kind, res.RunID, p.model.NumVars(), p.model.NumConstraints())
	}

	start := time.Now()
	sol, err := solver.Solve(ctx, p.model)
	res.SolveDuration = time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("solve %s: %w", p.kind, err)
	}
	log.Debugf("solve time: %.2f seconds", res.SolveDuration.Seconds())
	res.Status, res.Diagnostic = sol.Status, sol.Diagnostic

	if sol.Status == lp.StatusOptimal {
		start = time.Now()
		p.extract(sol, res)
		res.ExtractDuration = time.Since(start)
		if res.MissingValues > 0 {
			log.Warnf("%d trajectory values unassigned by the solver were set to zero", res.MissingValues)
		}
		log.Debugf("results compilation time: %.2f seconds", res.ExtractDuration.Seconds())
	} else {
		log.Warnf("%s problem terminated %s: %s", p.kind, sol.Status, sol.Diagnostic)
	}
	if cfg.Verbose {
		log.Infof("%s problem %s finished: status=%s nodes=%d objective=%g",
			p.kind, res.RunID, sol.Status, sol.Nodes, res.Objective)
	}

	if err := rec.RecordSolve(p.event(res)); err != nil {
		log.Errorf("record solve: %v", err)
	}
	if res.Optimal() {
		if tr, ok := rec.(metrics.TrajectoryRecorder); ok {
			if err := tr.RecordTrajectory(metrics.TrajectoryEvent{
				RunID:   res.RunID.String(),
				Kind:    p.kind.String(),
				Outputs: res.Outputs,
			}); err != nil {
				log.Errorf("record trajectory: %v", err)
			}
		}
	}
	return res, nil
}

func (p *Problem) extract(sol *lp.Solution, res *Result) {
	b := p.building
	value := func(v lp.Var) float64 {
		x, ok := sol.Value(v)
		if !ok {
			return 0
		}
		return x
	}
	fill := func(names []string, vars [][]lp.Var) *model.Table {
		t := model.NewTable(b.Timesteps, names)
		for i := range b.Timesteps {
			for j := range names {
				x, ok := sol.Value(vars[i][j])
				if !ok {
					res.MissingValues++
					continue
				}
				t.SetIndex(i, j, x)
			}
		}
		return t
	}
	res.Controls = fill(b.Controls, p.controls)
	res.States = fill(b.States, p.states)
	res.Outputs = fill(b.Outputs, p.outputs)

	res.OperationCost = p.operationCost.Value(value)
	res.InvestmentCost = p.investmentCost.Value(value)
	res.Objective = res.OperationCost + res.InvestmentCost

	scalar := func(v *lp.Var) *float64 {
		if v == nil {
			return nil
		}
		x := value(*v)
		return &x
	}
	switch p.kind {
	case KindStoragePlanning:
		res.StorageSize = scalar(p.storageSize)
		res.StoragePeakPower = scalar(p.storagePeakPower)
		res.StorageExists = scalar(p.storageExists)
	case KindStoragePlanningBaseline:
		zero := 0.0
		res.StorageSize = &zero
	case KindLoadReduction:
		res.LoadReduction = scalar(p.loadReduction)
	}
}

func (p *Problem) event(res *Result) metrics.SolveEvent {
	ev := metrics.SolveEvent{
		RunID:           res.RunID.String(),
		Kind:            p.kind.String(),
		Status:          res.Status.String(),
		Variables:       p.model.NumVars(),
		Constraints:     p.model.NumConstraints(),
		SetupDuration:   res.SetupDuration,
		SolveDuration:   res.SolveDuration,
		ExtractDuration: res.ExtractDuration,
		Time:            time.Now(),
	}
	if res.Optimal() {
		ev.OperationCost = res.OperationCost
		ev.InvestmentCost = res.InvestmentCost
		ev.StorageSize = res.StorageSize
	}
	return ev
}
