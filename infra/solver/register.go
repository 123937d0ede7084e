package solver

import (
	"github.com/kilianp07/buildopt/core/factory"
	"github.com/kilianp07/buildopt/core/lp"
	"github.com/kilianp07/buildopt/infra/logger"
)

// Name is the registry name of the simplex solver.
const Name = "simplex"

func init() {
	if err := lp.RegisterSolver(Name, newFromConf); err != nil {
		panic(err)
	}
}

func newFromConf(conf map[string]any) (lp.Solver, error) {
	var c Config
	if err := factory.Decode(conf, &c); err != nil {
		return nil, err
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return NewSimplex(c, logger.New("solver")), nil
}
