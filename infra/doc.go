// Package infra contains technical adapters: the LP solver, building file
// loading, metric sinks, run history stores, MQTT publishing and error
// monitoring. These packages depend only on the interfaces defined in the
// core packages.
package infra
