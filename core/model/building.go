package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidBuilding is returned when a building model is inconsistent.
var ErrInvalidBuilding = errors.New("invalid building model")

// PriceColumn is the column name of the electricity price table.
const PriceColumn = "price"

// Scenario holds the scalar scenario parameters a building is evaluated
// under.
type Scenario struct {
	// StorageType names the storage medium, e.g. "sensible_thermal_storage"
	// or "battery_storage".
	StorageType string `json:"building_storage_type" yaml:"building_storage_type"`
	// StorageLifetime is the storage lifetime in years.
	StorageLifetime float64 `json:"storage_lifetime" yaml:"storage_lifetime"`
	// EnergyInstallationCost is per m3 (sensible) or per kWh (battery).
	EnergyInstallationCost float64 `json:"storage_planning_energy_installation_cost" yaml:"storage_planning_energy_installation_cost"`
	// PowerInstallationCost is per kW of peak charging power.
	PowerInstallationCost float64 `json:"storage_planning_power_installation_cost" yaml:"storage_planning_power_installation_cost"`
	// FixedInstallationCost applies once when any storage is installed.
	FixedInstallationCost float64 `json:"storage_planning_fixed_installation_cost" yaml:"storage_planning_fixed_installation_cost"`
	// BatteryDepthOfDischarge is the usable fraction of battery capacity.
	BatteryDepthOfDischarge float64 `json:"storage_battery_depth_of_discharge" yaml:"storage_battery_depth_of_discharge"`
}

// Building is a pre-built linear state-space model of a building:
//
//	state[t+Δt] = A·state[t] + B·control[t] + E·disturbance[t]
//	output[t]   = C·state[t] + D·control[t] + F·disturbance[t]
//
// It is consumed read-only by the optimization core.
type Building struct {
	Timesteps    []time.Time
	States       []string
	Controls     []string
	Outputs      []string
	Disturbances []string

	StateMatrix       *Matrix // A: states x states
	ControlMatrix     *Matrix // B: states x controls
	DisturbanceMatrix *Matrix // E: states x disturbances

	StateOutputMatrix       *Matrix // C: outputs x states
	ControlOutputMatrix     *Matrix // D: outputs x controls
	DisturbanceOutputMatrix *Matrix // F: outputs x disturbances

	DisturbanceTimeseries *Table
	StateInitial          map[string]float64

	OutputMinimum *Table
	OutputMaximum *Table

	// ElectricityPrice carries a single PriceColumn.
	ElectricityPrice *Table

	Scenario   Scenario
	Parameters map[string]float64
}

// TimestepDelta returns the fixed spacing of the horizon.
func (b *Building) TimestepDelta() time.Duration {
	if len(b.Timesteps) < 2 {
		return 0
	}
	return b.Timesteps[1].Sub(b.Timesteps[0])
}

// Parameter looks up a named scalar parameter such as "water_density".
func (b *Building) Parameter(name string) (float64, error) {
	v, ok := b.Parameters[name]
	if !ok {
		return 0, fmt.Errorf("%w: parameter %q not defined", ErrInvalidBuilding, name)
	}
	return v, nil
}

// Validate checks the building model for structural consistency.
func (b *Building) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil building", ErrInvalidBuilding)
	}
	if len(b.Timesteps) < 2 {
		return fmt.Errorf("%w: at least two timesteps are required", ErrInvalidBuilding)
	}
	delta := b.TimestepDelta()
	if delta <= 0 {
		return fmt.Errorf("%w: timesteps must be increasing", ErrInvalidBuilding)
	}
	for i := 1; i < len(b.Timesteps); i++ {
		if b.Timesteps[i].Sub(b.Timesteps[i-1]) != delta {
			return fmt.Errorf("%w: timesteps are not equally spaced at index %d", ErrInvalidBuilding, i)
		}
	}
	for _, set := range []struct {
		kind  string
		names []string
	}{
		{"state", b.States},
		{"control", b.Controls},
		{"output", b.Outputs},
		{"disturbance", b.Disturbances},
	} {
		if err := unique(set.names); err != nil {
			return fmt.Errorf("%w: %s %v", ErrInvalidBuilding, set.kind, err)
		}
	}

	for _, m := range []struct {
		name       string
		mat        *Matrix
		rows, cols []string
	}{
		{"state_matrix", b.StateMatrix, b.States, b.States},
		{"control_matrix", b.ControlMatrix, b.States, b.Controls},
		{"disturbance_matrix", b.DisturbanceMatrix, b.States, b.Disturbances},
		{"state_output_matrix", b.StateOutputMatrix, b.Outputs, b.States},
		{"control_output_matrix", b.ControlOutputMatrix, b.Outputs, b.Controls},
		{"disturbance_output_matrix", b.DisturbanceOutputMatrix, b.Outputs, b.Disturbances},
	} {
		if err := m.mat.within(m.rows, m.cols); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidBuilding, m.name, err)
		}
	}

	for _, s := range b.States {
		v, ok := b.StateInitial[s]
		if !ok {
			return fmt.Errorf("%w: no initial value for state %q", ErrInvalidBuilding, s)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: initial value for state %q is not finite", ErrInvalidBuilding, s)
		}
	}

	if len(b.Disturbances) > 0 {
		if err := requireTable("disturbance_timeseries", b.DisturbanceTimeseries, b.Timesteps, b.Disturbances); err != nil {
			return err
		}
	}
	if err := requireTable("output_constraint_timeseries_minimum", b.OutputMinimum, b.Timesteps, b.Outputs); err != nil {
		return err
	}
	if err := requireTable("output_constraint_timeseries_maximum", b.OutputMaximum, b.Timesteps, b.Outputs); err != nil {
		return err
	}
	return requireTable("electricity_price_timeseries", b.ElectricityPrice, b.Timesteps, []string{PriceColumn})
}

func requireTable(name string, t *Table, timesteps []time.Time, cols []string) error {
	if t == nil {
		return fmt.Errorf("%w: %s is missing", ErrInvalidBuilding, name)
	}
	if miss := t.Covers(timesteps, cols); miss != "" {
		return fmt.Errorf("%w: %s has no %s", ErrInvalidBuilding, name, miss)
	}
	return nil
}

func unique(names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			return errors.New("empty name")
		}
		if _, ok := seen[n]; ok {
			return fmt.Errorf("duplicate name %q", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}
