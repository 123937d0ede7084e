package publish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/buildopt/core/optimization"
)

// ErrAckTimeout is returned when no acknowledgment is received before the timeout.
var ErrAckTimeout = errors.New("timeout waiting for ack")

// ErrNoSchedule is returned for results that carry no control trajectories.
var ErrNoSchedule = errors.New("result has no control schedule")

// Publisher sends control schedules to the controlled building.
type Publisher interface {
	// PublishSchedule delivers s and, when the transport supports it, waits
	// for the receiver to acknowledge it.
	PublishSchedule(ctx context.Context, s Schedule) error
	Close()
}

// Control is the optimal trajectory of one control input.
type Control struct {
	Name      string      `json:"control"`
	Timesteps []time.Time `json:"timesteps"`
	Values    []float64   `json:"values"`
}

// Schedule groups the control trajectories of one optimal run.
type Schedule struct {
	ID          string    `json:"schedule_id"`
	RunID       string    `json:"run_id"`
	ProblemType string    `json:"problem_type"`
	Controls    []Control `json:"controls"`
}

// NewSchedule extracts the control trajectories of an optimal result.
func NewSchedule(res *optimization.Result) (Schedule, error) {
	if !res.Optimal() || res.Controls == nil {
		return Schedule{}, fmt.Errorf("%w: status %s", ErrNoSchedule, res.Status)
	}
	s := Schedule{
		ID:          uuid.NewString(),
		RunID:       res.RunID.String(),
		ProblemType: res.Kind.String(),
	}
	for _, name := range res.Controls.Columns {
		values, _ := res.Controls.Series(name)
		s.Controls = append(s.Controls, Control{
			Name:      name,
			Timesteps: append([]time.Time(nil), res.Controls.Timesteps...),
			Values:    values,
		})
	}
	return s, nil
}

// MockPublisher records schedules in memory.
type MockPublisher struct {
	mu        sync.Mutex
	Schedules []Schedule
	Err       error
}

func (m *MockPublisher) PublishSchedule(_ context.Context, s Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Schedules = append(m.Schedules, s)
	return nil
}

func (m *MockPublisher) Close() {}
