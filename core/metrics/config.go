package metrics

import "github.com/kilianp07/buildopt/core/factory"

// Config defines the recorders fed by solve runs.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`

	// PrometheusAddr, when set, exposes /metrics on that address.
	PrometheusAddr string `json:"prometheus_addr"`
}
