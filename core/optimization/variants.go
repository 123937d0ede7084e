package optimization

import (
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/buildopt/core/lp"
	"github.com/kilianp07/buildopt/core/model"
)

// LoadReductionCostWeight de-weights the operation cost of load reduction
// problems so the reduction dominates the objective while demand stays
// realistic.
const LoadReductionCostWeight = 1.0e-6

// year is the average Gregorian year.
const year = time.Duration(365.2425 * 24 * float64(time.Hour))

// variant collects the kind-specific contributions to a problem. Nil hooks
// contribute nothing.
type variant struct {
	// declare validates kind parameters and adds extra variables.
	declare func(p *Problem) error
	// pinTemperatures fixes temperature outputs to their minimum after the
	// initial timestep instead of bounding them below.
	pinTemperatures bool
	// storageCapacity bounds state-of-charge outputs by the storage capacity
	// instead of their maximum timeseries.
	storageCapacity bool
	constrain       func(p *Problem)
	costFactor      func(p *Problem) float64
	adjustPrice     func(p *Problem) error
	// pureLoad reduces the operation cost to the unweighted grid power.
	pureLoad   bool
	investment func(p *Problem)
}

var variants = map[Kind]variant{
	KindOperation: {},
	KindStoragePlanning: {
		declare:         declareStoragePlanning,
		storageCapacity: true,
		constrain:       constrainStorage,
		costFactor:      annualizationFactor,
		investment:      storageInvestment,
	},
	KindStoragePlanningBaseline: {
		declare:         declareStorageMedium,
		storageCapacity: true,
		costFactor:      annualizationFactor,
	},
	KindLoadReduction: {
		declare:    declareLoadReduction,
		constrain:  constrainLoadReduction,
		costFactor: func(*Problem) float64 { return LoadReductionCostWeight },
		investment: func(p *Problem) { p.investmentCost.Add(*p.loadReduction, -1) },
	},
	KindPriceSensitivity: {
		declare:     validatePriceSensitivity,
		adjustPrice: perturbPrice,
	},
	KindMaximumLoad: {
		pinTemperatures: true,
		pureLoad:        true,
	},
	KindMinimumLoad: {
		pureLoad: true,
	},
}

// declareStorageMedium resolves the storage medium and the factor relating
// storage size to state of charge.
func declareStorageMedium(p *Problem) error {
	sc := p.building.Scenario
	medium, ok := parseMedium(sc.StorageType)
	if !ok {
		return fmt.Errorf("%w: storage type %q is neither sensible nor battery", ErrInvalidParameter, sc.StorageType)
	}
	if sc.StorageLifetime <= 0 {
		return fmt.Errorf("%w: storage_lifetime must be positive", ErrInvalidParameter)
	}
	p.medium = medium
	switch medium {
	case mediumSensible:
		density, err := p.building.Parameter("water_density")
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMissingParameter, err)
		}
		p.capacityFactor = density
	case mediumBattery:
		p.capacityFactor = sc.BatteryDepthOfDischarge
	}
	return nil
}

func declareStoragePlanning(p *Problem) error {
	if err := declareStorageMedium(p); err != nil {
		return err
	}
	size := p.model.AddVar("storage_size", lp.NonNegative)
	peak := p.model.AddVar("storage_peak_power", lp.NonNegative)
	exists := p.model.AddVar("storage_exists", lp.Binary)
	p.storageSize, p.storagePeakPower, p.storageExists = &size, &peak, &exists
	return nil
}

// constrainStorage adds the peak charging power bound per timestep and the
// big-M link between storage size and existence. The big-M relaxation is an
// approximation: it is exact only while M exceeds every feasible size. The
// link is written as size/M <= exists.
func constrainStorage(p *Problem) {
	b := p.building
	for t := range b.Timesteps {
		var charge lp.Expr
		for k, o := range b.Outputs {
			if isStorageChargePower(o) {
				charge.Add(p.outputs[t][k], 1)
			}
		}
		p.model.AddConstraint(fmt.Sprintf("storage_peak_power[%d]", t), charge, lp.LessEq, lp.Scaled(*p.storagePeakPower, 1))
	}
	p.model.AddConstraint("storage_exists", lp.Scaled(*p.storageSize, 1/p.opts.Planning.StorageBigM), lp.LessEq,
		lp.Scaled(*p.storageExists, 1))
}

// annualizationFactor scales the horizon's operation cost to the storage
// lifetime: timesteps per year over timesteps modelled, times lifetime in
// years, times the caller's multiplier.
func annualizationFactor(p *Problem) float64 {
	perYear := year.Seconds() / p.delta.Seconds()
	return perYear / float64(len(p.building.Timesteps)) *
		p.building.Scenario.StorageLifetime *
		p.opts.Planning.AnnualizationMultiplier
}

func storageInvestment(p *Problem) {
	sc := p.building.Scenario
	switch p.medium {
	case mediumSensible:
		// Size in m3, cost per m3.
		p.investmentCost.Add(*p.storageSize, sc.EnergyInstallationCost)
	case mediumBattery:
		// Size in J, cost per kWh.
		p.investmentCost.Add(*p.storageSize, sc.EnergyInstallationCost/3600.0/1000.0)
	}
	// Peak power in W, cost per kW.
	p.investmentCost.Add(*p.storagePeakPower, sc.PowerInstallationCost/1000.0)
	p.investmentCost.Add(*p.storageExists, sc.FixedInstallationCost)
}

func declareLoadReduction(p *Problem) error {
	lr := p.opts.LoadReduction
	switch {
	case lr == nil:
		return fmt.Errorf("%w: load_reduction requires a window and a reference", ErrMissingParameter)
	case lr.Start.IsZero() || lr.End.IsZero():
		return fmt.Errorf("%w: load_reduction start and end time", ErrMissingParameter)
	case lr.Reference == nil:
		return fmt.Errorf("%w: load_reduction reference output trajectory", ErrMissingParameter)
	case !lr.End.After(lr.Start):
		return fmt.Errorf("%w: load_reduction end %s is not after start %s", ErrInvalidParameter,
			lr.End.Format(time.RFC3339), lr.Start.Format(time.RFC3339))
	case lr.Target != nil && (*lr.Target < 0 || math.IsNaN(*lr.Target) || math.IsInf(*lr.Target, 0)):
		return fmt.Errorf("%w: load_reduction target %g", ErrInvalidParameter, *lr.Target)
	}
	var demand []string
	for _, o := range p.building.Outputs {
		if isElectricDemand(o) {
			demand = append(demand, o)
		}
	}
	if miss := lr.Reference.Covers(p.window(), demand); miss != "" {
		return fmt.Errorf("%w: load_reduction reference has no %s", ErrInvalidParameter, miss)
	}
	r := p.model.AddVar("load_reduction", lp.NonNegative)
	p.loadReduction = &r
	return nil
}

// window returns the timesteps within [Start, End).
func (p *Problem) window() []time.Time {
	lr := p.opts.LoadReduction
	var out []time.Time
	for _, ts := range p.building.Timesteps {
		if !ts.Before(lr.Start) && ts.Before(lr.End) {
			out = append(out, ts)
		}
	}
	return out
}

// constrainLoadReduction holds the electric demand at (1 - r/100) times the
// reference demand over the window.
func constrainLoadReduction(p *Problem) {
	b := p.building
	ref := p.opts.LoadReduction.Reference
	for t, ts := range b.Timesteps {
		if ts.Before(p.opts.LoadReduction.Start) || !ts.Before(p.opts.LoadReduction.End) {
			continue
		}
		var demand lp.Expr
		refDemand := 0.0
		for k, o := range b.Outputs {
			if !isElectricDemand(o) {
				continue
			}
			demand.Add(p.outputs[t][k], 1)
			v, _ := ref.At(ts, o)
			refDemand += v
		}
		rhs := lp.Const(refDemand)
		rhs.Add(*p.loadReduction, -refDemand/100.0)
		p.model.AddConstraint(fmt.Sprintf("load_reduction[%d]", t), demand, lp.Equal, rhs)
	}
	if target := p.opts.LoadReduction.Target; target != nil {
		p.model.AddConstraint("load_reduction_target", lp.Scaled(*p.loadReduction, 1), lp.Equal, lp.Const(*target))
	}
}

func validatePriceSensitivity(p *Problem) error {
	ps := p.opts.PriceSensitivity
	switch {
	case ps == nil:
		return fmt.Errorf("%w: price_sensitivity requires a factor and a timestep", ErrMissingParameter)
	case ps.Timestep.IsZero():
		return fmt.Errorf("%w: price_sensitivity timestep", ErrMissingParameter)
	case math.IsNaN(ps.Factor) || math.IsInf(ps.Factor, 0):
		return fmt.Errorf("%w: price_sensitivity factor %g", ErrInvalidParameter, ps.Factor)
	}
	if _, ok := p.price.Row(ps.Timestep); !ok {
		return fmt.Errorf("%w: price_sensitivity timestep %s is not in the horizon", ErrInvalidParameter,
			ps.Timestep.Format(time.RFC3339))
	}
	return nil
}

// perturbPrice scales the local price copy at the target timestep.
func perturbPrice(p *Problem) error {
	ps := p.opts.PriceSensitivity
	v, _ := p.price.At(ps.Timestep, model.PriceColumn)
	return p.price.Set(ps.Timestep, model.PriceColumn, v*ps.Factor)
}
