package optimization_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/buildopt/core/model"
	"github.com/kilianp07/buildopt/infra/solver"
)

var (
	start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	inf   = math.Inf(1)
)

func hours(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Hour)
	}
	return out
}

// series builds a table whose columns are given as per-timestep values.
func series(t *testing.T, ts []time.Time, cols map[string][]float64) *model.Table {
	t.Helper()
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	tbl := model.NewTable(ts, names)
	for name, values := range cols {
		require.Len(t, values, len(ts), name)
		for i, v := range values {
			require.NoError(t, tbl.Set(ts[i], name, v))
		}
	}
	return tbl
}

type entry struct {
	row, col string
	v        float64
}

func matrix(t *testing.T, rows, cols []string, entries ...entry) *model.Matrix {
	t.Helper()
	m := model.NewMatrix(rows, cols)
	for _, e := range entries {
		require.NoError(t, m.Set(e.row, e.col, e.v))
	}
	return m
}

func prices(t *testing.T, ts []time.Time, values ...float64) *model.Table {
	return series(t, ts, map[string][]float64{model.PriceColumn: values})
}

// integrator is x[t+1] = x[t] + u[t] with x observed as x_out and u drawn as
// electric power, over three hourly timesteps with x pinned to 0, 1, 2.
func integrator(t *testing.T) *model.Building {
	t.Helper()
	ts := hours(3)
	states, controls := []string{"x"}, []string{"u"}
	outputs := []string{"x_out", "u_electric_power"}
	return &model.Building{
		Timesteps: ts,
		States:    states,
		Controls:  controls,
		Outputs:   outputs,

		StateMatrix:         matrix(t, states, states, entry{"x", "x", 1}),
		ControlMatrix:       matrix(t, states, controls, entry{"x", "u", 1}),
		StateOutputMatrix:   matrix(t, outputs, states, entry{"x_out", "x", 1}),
		ControlOutputMatrix: matrix(t, outputs, controls, entry{"u_electric_power", "u", 1}),

		StateInitial: map[string]float64{"x": 0},
		OutputMinimum: series(t, ts, map[string][]float64{
			"x_out":            {0, 1, 2},
			"u_electric_power": {0, 0, 0},
		}),
		OutputMaximum: series(t, ts, map[string][]float64{
			"x_out":            {0, 1, 2},
			"u_electric_power": {inf, inf, inf},
		}),
		ElectricityPrice: prices(t, ts, 1, 1, 1),
	}
}

// thermal is a single zone heated by grid power: the zone temperature
// integrates the heating power drawn from the grid.
func thermal(t *testing.T, minTemperature ...float64) *model.Building {
	t.Helper()
	ts := hours(3)
	if minTemperature == nil {
		minTemperature = []float64{0, 1, 1}
	}
	states, controls := []string{"zone"}, []string{"heating"}
	outputs := []string{"zone_temperature", "grid_electric_power"}
	return &model.Building{
		Timesteps: ts,
		States:    states,
		Controls:  controls,
		Outputs:   outputs,

		StateMatrix:         matrix(t, states, states, entry{"zone", "zone", 1}),
		ControlMatrix:       matrix(t, states, controls, entry{"zone", "heating", 1}),
		StateOutputMatrix:   matrix(t, outputs, states, entry{"zone_temperature", "zone", 1}),
		ControlOutputMatrix: matrix(t, outputs, controls, entry{"grid_electric_power", "heating", 1}),

		StateInitial: map[string]float64{"zone": 0},
		OutputMinimum: series(t, ts, map[string][]float64{
			"zone_temperature":    minTemperature,
			"grid_electric_power": {0, 0, 0},
		}),
		OutputMaximum: series(t, ts, map[string][]float64{
			"zone_temperature":    {inf, inf, inf},
			"grid_electric_power": {inf, inf, inf},
		}),
		ElectricityPrice: prices(t, ts, 1, 2, 1),
		Scenario: model.Scenario{
			StorageType:             "battery_storage",
			StorageLifetime:         1,
			BatteryDepthOfDischarge: 1,
		},
	}
}

// battery serves a 1 kW load at the expensive middle timestep. A battery
// charged at the cheap first timestep can shift the whole load.
func battery(t *testing.T, fixedCost float64) *model.Building {
	t.Helper()
	ts := hours(3)
	states := []string{"storage_soc"}
	controls := []string{"storage_charge", "storage_discharge"}
	disturbances := []string{"load"}
	outputs := []string{"storage_state_of_charge", "storage_charge_electric_power", "zone_electric_power"}
	return &model.Building{
		Timesteps:    ts,
		States:       states,
		Controls:     controls,
		Outputs:      outputs,
		Disturbances: disturbances,

		StateMatrix: matrix(t, states, states, entry{"storage_soc", "storage_soc", 1}),
		ControlMatrix: matrix(t, states, controls,
			entry{"storage_soc", "storage_charge", 3600},
			entry{"storage_soc", "storage_discharge", -3600}),
		StateOutputMatrix: matrix(t, outputs, states, entry{"storage_state_of_charge", "storage_soc", 1}),
		ControlOutputMatrix: matrix(t, outputs, controls,
			entry{"storage_charge_electric_power", "storage_charge", 1},
			entry{"zone_electric_power", "storage_discharge", -1}),
		DisturbanceOutputMatrix: matrix(t, outputs, disturbances, entry{"zone_electric_power", "load", 1}),

		DisturbanceTimeseries: series(t, ts, map[string][]float64{"load": {0, 1000, 0}}),
		StateInitial:          map[string]float64{"storage_soc": 0},
		OutputMinimum: series(t, ts, map[string][]float64{
			"storage_state_of_charge":       {0, 0, 0},
			"storage_charge_electric_power": {0, 0, 0},
			"zone_electric_power":           {0, 0, 0},
		}),
		OutputMaximum: series(t, ts, map[string][]float64{
			"storage_state_of_charge":       {inf, inf, inf},
			"storage_charge_electric_power": {inf, inf, inf},
			"zone_electric_power":           {inf, inf, inf},
		}),
		ElectricityPrice: prices(t, ts, 0.1, 1.0, 0.1),
		Scenario: model.Scenario{
			StorageType:             "battery_storage",
			StorageLifetime:         1,
			EnergyInstallationCost:  100,
			PowerInstallationCost:   100,
			FixedInstallationCost:   fixedCost,
			BatteryDepthOfDischarge: 1,
		},
	}
}

// heater draws heating power with a per-timestep minimum.
func heater(t *testing.T, minimum float64) *model.Building {
	t.Helper()
	ts := hours(3)
	states, controls := []string{"x"}, []string{"heating"}
	outputs := []string{"heating_electric_power"}
	return &model.Building{
		Timesteps: ts,
		States:    states,
		Controls:  controls,
		Outputs:   outputs,

		ControlOutputMatrix: matrix(t, outputs, controls, entry{"heating_electric_power", "heating", 1}),

		StateInitial: map[string]float64{"x": 0},
		OutputMinimum: series(t, ts, map[string][]float64{
			"heating_electric_power": {minimum, minimum, minimum},
		}),
		OutputMaximum: series(t, ts, map[string][]float64{
			"heating_electric_power": {inf, inf, inf},
		}),
		ElectricityPrice: prices(t, ts, 1, 1, 1),
	}
}

func newSolver() *solver.Simplex {
	return solver.NewSimplex(solver.Config{}, nil)
}

// annualization is the cost factor of the three-hour fixtures with a one
// year lifetime: hours per average year over three.
const annualization = 365.2425 * 24 / 3
