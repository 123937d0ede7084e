package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/buildopt/core/metrics"
	"github.com/kilianp07/buildopt/infra/logger"
)

// InfluxConfig selects the InfluxDB endpoint of an InfluxSink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes solve summaries and output trajectories to an InfluxDB
// instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopRecorder if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.Recorder {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopRecorder{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordSolve writes one optimization_run point.
func (s *InfluxSink) RecordSolve(ev coremetrics.SolveEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, solvePoint(ev))
}

func solvePoint(ev coremetrics.SolveEvent) *write.Point {
	p := write.NewPointWithMeasurement("optimization_run").
		AddTag("run_id", ev.RunID).
		AddTag("problem_type", ev.Kind).
		AddTag("status", ev.Status).
		AddField("variables", ev.Variables).
		AddField("constraints", ev.Constraints).
		AddField("setup_seconds", round3(ev.SetupDuration.Seconds())).
		AddField("solve_seconds", round3(ev.SolveDuration.Seconds())).
		AddField("operation_cost", ev.OperationCost).
		AddField("investment_cost", ev.InvestmentCost)
	if ev.StorageSize != nil {
		p = p.AddField("storage_size", *ev.StorageSize)
	}
	return p.SetTime(ev.Time)
}

// RecordTrajectory writes one output_trajectory point per timestep with one
// field per output.
func (s *InfluxSink) RecordTrajectory(ev coremetrics.TrajectoryEvent) error {
	if ev.Outputs == nil || ev.Outputs.Len() == 0 || len(ev.Outputs.Columns) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, trajectoryPoints(ev)...)
}

func trajectoryPoints(ev coremetrics.TrajectoryEvent) []*write.Point {
	out := make([]*write.Point, 0, ev.Outputs.Len())
	for i, ts := range ev.Outputs.Timesteps {
		p := write.NewPointWithMeasurement("output_trajectory").
			AddTag("run_id", ev.RunID).
			AddTag("problem_type", ev.Kind)
		for j, name := range ev.Outputs.Columns {
			p = p.AddField(name, ev.Outputs.AtIndex(i, j))
		}
		out = append(out, p.SetTime(ts))
	}
	return out
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
