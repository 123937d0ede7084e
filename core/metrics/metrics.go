package metrics

import (
	"time"

	"github.com/kilianp07/buildopt/core/model"
)

// SolveEvent summarizes one optimization run.
type SolveEvent struct {
	RunID  string
	Kind   string
	Status string

	Variables   int
	Constraints int

	SetupDuration   time.Duration
	SolveDuration   time.Duration
	ExtractDuration time.Duration

	// Costs are zero for non-optimal runs.
	OperationCost  float64
	InvestmentCost float64
	StorageSize    *float64

	Time time.Time
}

// Recorder records solve events for observability purposes.
type Recorder interface {
	RecordSolve(ev SolveEvent) error
}

// TrajectoryEvent carries the output trajectories of an optimal run.
type TrajectoryEvent struct {
	RunID   string
	Kind    string
	Outputs *model.Table
}

// TrajectoryRecorder is implemented by recorders able to persist
// time-indexed trajectories.
type TrajectoryRecorder interface {
	RecordTrajectory(ev TrajectoryEvent) error
}

// NopRecorder implements Recorder with no-op methods.
type NopRecorder struct{}

func (NopRecorder) RecordSolve(SolveEvent) error { return nil }

func (NopRecorder) RecordTrajectory(TrajectoryEvent) error { return nil }
