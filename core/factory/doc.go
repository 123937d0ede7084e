// Package factory is a small generic registry that builds modules from
// configuration. A module is selected by a type name and configured by a map
// of raw settings which the factory decodes into its own struct.
//
// Solvers and metrics recorders are both created this way:
//
//	reg := factory.NewRegistry[lp.Solver]()
//	err := reg.Register("simplex", func(conf map[string]any) (lp.Solver, error) {
//	    var c solver.Config
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return solver.NewSimplex(c, nil), nil
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "simplex"})
package factory
