package solver

import (
	"fmt"
	"time"
)

const (
	defaultTolerance            = 1e-9
	defaultIntegralityTolerance = 1e-6
	defaultMaxNodes             = 10000
)

// Config tunes the simplex solver and its branch-and-bound search.
type Config struct {
	// Tolerance is passed to the simplex as the reduced-cost tolerance.
	Tolerance float64 `json:"tolerance"`
	// IntegralityTolerance is the distance to 0 or 1 at which a binary is
	// considered integral.
	IntegralityTolerance float64 `json:"integrality_tolerance"`
	// MaxNodes bounds the number of relaxations solved per model.
	MaxNodes int `json:"max_nodes"`
	// TimeLimitSeconds stops the search after this duration. Zero disables it.
	TimeLimitSeconds float64 `json:"time_limit_seconds"`
	// Verbose logs every branch-and-bound node at debug level.
	Verbose bool `json:"verbose"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Tolerance == 0 {
		c.Tolerance = defaultTolerance
	}
	if c.IntegralityTolerance == 0 {
		c.IntegralityTolerance = defaultIntegralityTolerance
	}
	if c.MaxNodes == 0 {
		c.MaxNodes = defaultMaxNodes
	}
}

// Validate rejects nonsensical settings.
func (c Config) Validate() error {
	if c.Tolerance < 0 || c.IntegralityTolerance < 0 || c.IntegralityTolerance >= 0.5 {
		return fmt.Errorf("invalid tolerances: tolerance=%g integrality_tolerance=%g", c.Tolerance, c.IntegralityTolerance)
	}
	if c.MaxNodes < 0 {
		return fmt.Errorf("max_nodes must not be negative")
	}
	if c.TimeLimitSeconds < 0 {
		return fmt.Errorf("time_limit_seconds must not be negative")
	}
	return nil
}

func (c Config) timeLimit() time.Duration {
	return time.Duration(c.TimeLimitSeconds * float64(time.Second))
}
