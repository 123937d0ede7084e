package buildingfile

import (
	"fmt"
	"time"

	"github.com/kilianp07/buildopt/core/model"
)

// Document is the YAML description of a pre-built building model. Matrices
// are sparse: row name to column name to coefficient. Timeseries reference
// CSV files relative to the document.
type Document struct {
	Horizon Horizon `yaml:"horizon"`

	States       []string `yaml:"states"`
	Controls     []string `yaml:"controls"`
	Outputs      []string `yaml:"outputs"`
	Disturbances []string `yaml:"disturbances"`

	StateInitial map[string]float64 `yaml:"state_vector_initial"`

	Matrices   Matrices   `yaml:"matrices"`
	Timeseries Timeseries `yaml:"timeseries"`

	Scenario   model.Scenario     `yaml:"scenario"`
	Parameters map[string]float64 `yaml:"parameters"`
}

// Horizon spans [Start, End] at a fixed Interval.
type Horizon struct {
	Start    time.Time     `yaml:"timestep_start"`
	End      time.Time     `yaml:"timestep_end"`
	Interval time.Duration `yaml:"timestep_interval"`
}

// Timesteps enumerates the horizon, both ends included.
func (h Horizon) Timesteps() ([]time.Time, error) {
	if h.Interval <= 0 {
		return nil, fmt.Errorf("%w: timestep_interval must be positive", model.ErrInvalidBuilding)
	}
	if h.Start.IsZero() || !h.End.After(h.Start) {
		return nil, fmt.Errorf("%w: timestep_end must be after timestep_start", model.ErrInvalidBuilding)
	}
	var out []time.Time
	for ts := h.Start; !ts.After(h.End); ts = ts.Add(h.Interval) {
		out = append(out, ts)
	}
	return out, nil
}

// Sparse is a row → column → value matrix.
type Sparse map[string]map[string]float64

// Matrices holds the state-space matrices of the building.
type Matrices struct {
	State             Sparse `yaml:"state_matrix"`
	Control           Sparse `yaml:"control_matrix"`
	Disturbance       Sparse `yaml:"disturbance_matrix"`
	StateOutput       Sparse `yaml:"state_output_matrix"`
	ControlOutput     Sparse `yaml:"control_output_matrix"`
	DisturbanceOutput Sparse `yaml:"disturbance_output_matrix"`
}

// Timeseries names the CSV files of the building.
type Timeseries struct {
	Disturbance      string `yaml:"disturbance_timeseries"`
	OutputMinimum    string `yaml:"output_constraint_timeseries_minimum"`
	OutputMaximum    string `yaml:"output_constraint_timeseries_maximum"`
	ElectricityPrice string `yaml:"electricity_price_timeseries"`
}

func (s Sparse) matrix(name string, rows, cols []string) (*model.Matrix, error) {
	m := model.NewMatrix(rows, cols)
	for r, entries := range s {
		for c, v := range entries {
			if err := m.Set(r, c, v); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", model.ErrInvalidBuilding, name, err)
			}
		}
	}
	return m, nil
}
