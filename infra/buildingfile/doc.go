// Package buildingfile loads a pre-built building model from disk: a YAML
// Document carrying the horizon, name sets, sparse state-space matrices,
// initial state, scenario and parameters, plus CSV timeseries for the
// disturbances, output bounds and electricity price.
//
// Every CSV file starts with a timestep column holding RFC3339 timestamps.
// Blank cells of the bound files leave the output unbounded on that side.
package buildingfile
