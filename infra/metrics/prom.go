package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/buildopt/core/lp"
	coremetrics "github.com/kilianp07/buildopt/core/metrics"
)

// PromSink records solve events in Prometheus metrics.
type PromSink struct {
	solves      *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	variables   *prometheus.GaugeVec
	constraints *prometheus.GaugeVec
	cost        *prometheus.GaugeVec
	storage     *prometheus.GaugeVec
}

// NewPromSink registers solve metrics on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Metrics
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "optimization_solves_total",
			Help: "Total number of optimization runs by termination status",
		}, []string{"problem_type", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "optimization_phase_duration_seconds",
			Help:    "Duration of the setup, solve and extract phases",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"problem_type", "phase"}),
		variables: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "optimization_model_variables",
			Help: "Number of variables of the last formulated model",
		}, []string{"problem_type"}),
		constraints: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "optimization_model_constraints",
			Help: "Number of constraints of the last formulated model",
		}, []string{"problem_type"}),
		cost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "optimization_cost",
			Help: "Operation and investment cost of the last optimal run",
		}, []string{"problem_type", "component"}),
		storage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "optimization_storage_size",
			Help: "Storage size of the last optimal planning run",
		}, []string{"problem_type"}),
	}
	var err error
	if s.solves, err = register(reg, s.solves); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.variables, err = register(reg, s.variables); err != nil {
		return nil, err
	}
	if s.constraints, err = register(reg, s.constraints); err != nil {
		return nil, err
	}
	if s.cost, err = register(reg, s.cost); err != nil {
		return nil, err
	}
	if s.storage, err = register(reg, s.storage); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordSolve updates counters, phase histograms and model size gauges.
func (s *PromSink) RecordSolve(ev coremetrics.SolveEvent) error {
	s.solves.WithLabelValues(ev.Kind, ev.Status).Inc()
	s.duration.WithLabelValues(ev.Kind, "setup").Observe(ev.SetupDuration.Seconds())
	s.duration.WithLabelValues(ev.Kind, "solve").Observe(ev.SolveDuration.Seconds())
	s.variables.WithLabelValues(ev.Kind).Set(float64(ev.Variables))
	s.constraints.WithLabelValues(ev.Kind).Set(float64(ev.Constraints))
	if ev.Status != lp.StatusOptimal.String() {
		return nil
	}
	s.duration.WithLabelValues(ev.Kind, "extract").Observe(ev.ExtractDuration.Seconds())
	s.cost.WithLabelValues(ev.Kind, "operation").Set(ev.OperationCost)
	s.cost.WithLabelValues(ev.Kind, "investment").Set(ev.InvestmentCost)
	if ev.StorageSize != nil {
		s.storage.WithLabelValues(ev.Kind).Set(*ev.StorageSize)
	}
	return nil
}
