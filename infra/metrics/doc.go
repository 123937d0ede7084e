// Package metrics implements the recorders of core/metrics: PromSink exposes
// solve counters, phase durations and model sizes to Prometheus, InfluxSink
// writes run summaries and output trajectories to InfluxDB. Importing the
// package registers them as "prometheus" and "influx" next to "nop".
package metrics
