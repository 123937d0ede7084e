package metrics

// MultiRecorder fans events out to multiple recorders.
type MultiRecorder struct {
	Recorders []Recorder
}

// NewMultiRecorder creates a MultiRecorder with the provided recorders.
func NewMultiRecorder(recs ...Recorder) *MultiRecorder {
	return &MultiRecorder{Recorders: recs}
}

// RecordSolve forwards the event to all recorders, returning the first error encountered.
func (m *MultiRecorder) RecordSolve(ev SolveEvent) error {
	for _, r := range m.Recorders {
		if err := r.RecordSolve(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordTrajectory forwards trajectories to the recorders supporting them.
func (m *MultiRecorder) RecordTrajectory(ev TrajectoryEvent) error {
	for _, r := range m.Recorders {
		if tr, ok := r.(TrajectoryRecorder); ok {
			if err := tr.RecordTrajectory(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
