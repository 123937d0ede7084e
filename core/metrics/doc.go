// Package metrics defines the recorders fed by optimization runs. A Recorder
// receives one SolveEvent per run; recorders that also implement
// TrajectoryRecorder receive the output trajectories of optimal runs.
// Implementations live in infra/metrics and register themselves by name;
// NewRecorder returns a MultiRecorder automatically when several sinks are
// configured.
package metrics
