package buildingfile

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/buildopt/core/model"
)

// Load reads the building document at path together with the CSV files it
// references and returns the validated building model.
func Load(path string) (*model.Building, error) {
	doc, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}
	return doc.Building(filepath.Dir(path))
}

// ReadDocument parses the building document at path without reading the
// timeseries it references.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &doc, nil
}

// Building assembles the model, resolving timeseries files against dir.
func (d Document) Building(dir string) (*model.Building, error) {
	return d.BuildingWithPrices(dir, nil)
}

// BuildingWithPrices assembles the model like Building but takes the
// electricity price from prices when it is not nil, ignoring
// electricity_price_timeseries.
func (d Document) BuildingWithPrices(dir string, prices *model.Table) (*model.Building, error) {
	ts, err := d.Horizon.Timesteps()
	if err != nil {
		return nil, err
	}
	b := &model.Building{
		Timesteps:    ts,
		States:       d.States,
		Controls:     d.Controls,
		Outputs:      d.Outputs,
		Disturbances: d.Disturbances,
		StateInitial: d.StateInitial,
		Scenario:     d.Scenario,
		Parameters:   d.Parameters,
	}

	for _, m := range []struct {
		name       string
		src        Sparse
		rows, cols []string
		dst        **model.Matrix
	}{
		{"state_matrix", d.Matrices.State, d.States, d.States, &b.StateMatrix},
		{"control_matrix", d.Matrices.Control, d.States, d.Controls, &b.ControlMatrix},
		{"disturbance_matrix", d.Matrices.Disturbance, d.States, d.Disturbances, &b.DisturbanceMatrix},
		{"state_output_matrix", d.Matrices.StateOutput, d.Outputs, d.States, &b.StateOutputMatrix},
		{"control_output_matrix", d.Matrices.ControlOutput, d.Outputs, d.Controls, &b.ControlOutputMatrix},
		{"disturbance_output_matrix", d.Matrices.DisturbanceOutput, d.Outputs, d.Disturbances, &b.DisturbanceOutputMatrix},
	} {
		if *m.dst, err = m.src.matrix(m.name, m.rows, m.cols); err != nil {
			return nil, err
		}
	}

	resolve := func(name string) string {
		if name == "" || filepath.IsAbs(name) {
			return name
		}
		return filepath.Join(dir, name)
	}
	if len(d.Disturbances) > 0 {
		if b.DisturbanceTimeseries, err = readRequired("disturbance_timeseries", resolve(d.Timeseries.Disturbance), 0); err != nil {
			return nil, err
		}
	}
	if b.OutputMinimum, err = readRequired("output_constraint_timeseries_minimum", resolve(d.Timeseries.OutputMinimum), math.Inf(-1)); err != nil {
		return nil, err
	}
	if b.OutputMaximum, err = readRequired("output_constraint_timeseries_maximum", resolve(d.Timeseries.OutputMaximum), math.Inf(1)); err != nil {
		return nil, err
	}
	switch {
	case prices != nil:
		b.ElectricityPrice = prices
	case d.Timeseries.ElectricityPrice == "":
		return nil, fmt.Errorf("%w: electricity_price_timeseries is not set", model.ErrInvalidBuilding)
	default:
		if b.ElectricityPrice, err = ReadPrices(resolve(d.Timeseries.ElectricityPrice)); err != nil {
			return nil, err
		}
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func readRequired(name, path string, blank float64) (*model.Table, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: %s is not set", model.ErrInvalidBuilding, name)
	}
	return ReadTableFile(path, blank)
}
