// Package export writes solve results to disk: one CSV per result table,
// an HTML chart of the outputs and a JSON summary of the solved scalars.
package export
