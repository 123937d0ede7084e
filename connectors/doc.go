// Package connectors defines the external data sources a run can pull from
// instead of the building files. Price sources replace the electricity
// price timeseries; see connectors/factory for the registered sources.
package connectors
