package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/buildopt/config"
	"github.com/kilianp07/buildopt/connectors"
	connfactory "github.com/kilianp07/buildopt/connectors/factory"
	"github.com/kilianp07/buildopt/core/history"
	"github.com/kilianp07/buildopt/core/lp"
	coremetrics "github.com/kilianp07/buildopt/core/metrics"
	"github.com/kilianp07/buildopt/core/model"
	"github.com/kilianp07/buildopt/core/monitoring"
	"github.com/kilianp07/buildopt/core/optimization"
	"github.com/kilianp07/buildopt/core/publish"
	"github.com/kilianp07/buildopt/infra/buildingfile"
	infrahistory "github.com/kilianp07/buildopt/infra/history"
	"github.com/kilianp07/buildopt/infra/logger"
	"github.com/kilianp07/buildopt/infra/metrics"
	"github.com/kilianp07/buildopt/infra/mqtt"
	_ "github.com/kilianp07/buildopt/infra/solver"
	"github.com/kilianp07/buildopt/pkg/export"
)

// Service runs one optimization described by the configuration.
type Service struct {
	cfg       *config.Config
	kind      optimization.Kind
	solver    lp.Solver
	recorder  coremetrics.Recorder
	history   history.Store
	prices    connectors.PriceSource
	publisher publish.Publisher
	log       logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logger.SetLevel(cfg.Logging.Level)
	kind, err := cfg.Problem.Kind()
	if err != nil {
		return nil, err
	}
	s, err := lp.NewSolver(cfg.Solver)
	if err != nil {
		return nil, fmt.Errorf("solver: %w", err)
	}
	rec, err := coremetrics.NewRecorder(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	var prices connectors.PriceSource
	if cfg.Prices.Type != "" {
		if prices, err = connfactory.NewPriceSource(cfg.Prices); err != nil {
			return nil, fmt.Errorf("prices: %w", err)
		}
	}
	store, err := infrahistory.Open(cfg.History)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	var pub publish.Publisher
	if cfg.MQTT.Broker != "" {
		if pub, err = mqtt.NewPahoClient(cfg.MQTT); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("mqtt: %w", err)
		}
	}
	return &Service{
		cfg:       cfg,
		kind:      kind,
		solver:    s,
		recorder:  rec,
		history:   store,
		prices:    prices,
		publisher: pub,
		log:       logger.New("service"),
	}, nil
}

// Run loads the building, solves the configured problem and exports the
// result. A non-optimal termination is reported as an error wrapping
// optimization.ErrSolveFailed once the summary has been exported.
func (s *Service) Run(ctx context.Context) (*optimization.Result, error) {
	res, err := s.run(ctx)
	if err != nil {
		tags := map[string]string{"problem_type": s.kind.String()}
		if res != nil {
			tags["status"] = res.Status.String()
			tags["run_id"] = res.RunID.String()
		}
		monitoring.CaptureException(err, tags)
	}
	return res, err
}

func (s *Service) run(ctx context.Context) (*optimization.Result, error) {
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, prometheus.DefaultGatherer); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	b, err := s.loadBuilding(ctx)
	if err != nil {
		return nil, fmt.Errorf("load building: %w", err)
	}
	opts, err := s.options()
	if err != nil {
		return nil, err
	}
	p, err := optimization.NewProblem(b, s.kind, opts)
	if err != nil {
		return nil, err
	}
	res, err := p.Solve(ctx, s.solver, optimization.SolveConfig{
		Verbose:  s.cfg.Problem.Verbose,
		Recorder: s.recorder,
		Logger:   s.log,
	})
	if err != nil {
		return nil, err
	}

	if err := s.history.Append(ctx, history.NewRecord(res, s.cfg.Building.Path, time.Now().UTC())); err != nil {
		s.log.Warnf("history append: %v", err)
	}
	if dir := s.cfg.Export.Dir; dir != "" {
		if err := export.WriteResultDir(dir, res); err != nil {
			return res, fmt.Errorf("export: %w", err)
		}
		s.log.Infof("results written to %s", dir)
	}
	if err := res.Err(); err != nil {
		return res, err
	}
	if s.publisher != nil {
		sched, err := publish.NewSchedule(res)
		if err != nil {
			return res, err
		}
		if err := s.publisher.PublishSchedule(ctx, sched); err != nil {
			return res, fmt.Errorf("publish schedule: %w", err)
		}
		s.log.Infof("schedule %s published", sched.ID)
	}
	s.log.Infof("%s solved: operation cost %.4f, investment cost %.4f", s.kind, res.OperationCost, res.InvestmentCost)
	return res, nil
}

func (s *Service) loadBuilding(ctx context.Context) (*model.Building, error) {
	if s.prices == nil {
		return buildingfile.Load(s.cfg.Building.Path)
	}
	doc, err := buildingfile.ReadDocument(s.cfg.Building.Path)
	if err != nil {
		return nil, err
	}
	ts, err := doc.Horizon.Timesteps()
	if err != nil {
		return nil, err
	}
	prices, err := s.prices.Prices(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("prices: %w", err)
	}
	return doc.BuildingWithPrices(filepath.Dir(s.cfg.Building.Path), prices)
}

func (s *Service) options() (optimization.Options, error) {
	opts := optimization.Options{Planning: s.cfg.Problem.Planning, Logger: s.log}
	switch s.kind {
	case optimization.KindLoadReduction:
		lr := s.cfg.Problem.LoadReduction
		ref, err := buildingfile.ReadTableFile(lr.ReferencePath, 0)
		if err != nil {
			return opts, fmt.Errorf("load reference: %w", err)
		}
		opts.LoadReduction = &optimization.LoadReduction{
			Start:     lr.Start,
			End:       lr.End,
			Reference: ref,
			Target:    lr.Target,
		}
	case optimization.KindPriceSensitivity:
		ps := s.cfg.Problem.PriceSensitivity
		opts.PriceSensitivity = &optimization.PriceSensitivity{Factor: ps.Factor, Timestep: ps.Timestep}
	}
	return opts, nil
}

// Close releases the history store, the broker connection and the metric
// sinks that hold connections.
func (s *Service) Close() error {
	if s.publisher != nil {
		s.publisher.Close()
	}
	for _, r := range recorders(s.recorder) {
		if c, ok := r.(interface{ Close() }); ok {
			c.Close()
		}
	}
	return s.history.Close()
}

func recorders(r coremetrics.Recorder) []coremetrics.Recorder {
	if m, ok := r.(*coremetrics.MultiRecorder); ok {
		return m.Recorders
	}
	return []coremetrics.Recorder{r}
}
