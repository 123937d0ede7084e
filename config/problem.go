package config

import (
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/buildopt/core/optimization"
)

// ProblemConfig selects the problem kind and carries its parameters.
type ProblemConfig struct {
	// Type is one of the optimization kind names, e.g. "storage_planning".
	Type             string                 `json:"type"`
	Verbose          bool                   `json:"verbose"`
	LoadReduction    LoadReductionConfig    `json:"load_reduction"`
	PriceSensitivity PriceSensitivityConfig `json:"price_sensitivity"`
	Planning         optimization.Planning  `json:"planning"`
}

// LoadReductionConfig configures the load_reduction kind. ReferencePath is
// a CSV timeseries with one column per electric demand output.
type LoadReductionConfig struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	ReferencePath string    `json:"reference_path"`
	Target        *float64  `json:"target"`
}

// PriceSensitivityConfig configures the price_sensitivity kind.
type PriceSensitivityConfig struct {
	Factor   float64   `json:"factor"`
	Timestep time.Time `json:"timestep"`
}

func (c *ProblemConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = optimization.KindOperation.String()
	}
}

// Kind parses Type.
func (c ProblemConfig) Kind() (optimization.Kind, error) {
	return optimization.ParseKind(c.Type)
}

// Validate checks that the parameters of the selected kind are present.
// Value checks against the building happen when the problem is built.
func (c ProblemConfig) Validate() error {
	kind, err := c.Kind()
	if err != nil {
		return err
	}
	switch kind {
	case optimization.KindLoadReduction:
		lr := c.LoadReduction
		if lr.Start.IsZero() || lr.End.IsZero() {
			return fmt.Errorf("load_reduction.start and load_reduction.end are required")
		}
		if !lr.End.After(lr.Start) {
			return fmt.Errorf("load_reduction.end must be after load_reduction.start")
		}
		if lr.ReferencePath == "" {
			return fmt.Errorf("load_reduction.reference_path is required")
		}
	case optimization.KindPriceSensitivity:
		ps := c.PriceSensitivity
		if ps.Timestep.IsZero() {
			return fmt.Errorf("price_sensitivity.timestep is required")
		}
		if math.IsNaN(ps.Factor) || math.IsInf(ps.Factor, 0) {
			return fmt.Errorf("price_sensitivity.factor must be finite")
		}
	}
	if c.Planning.StorageBigM < 0 || c.Planning.AnnualizationMultiplier < 0 {
		return fmt.Errorf("planning values must not be negative")
	}
	return nil
}
