// Package history defines the run history: one Record per solve, kept by a
// Store so past runs can be listed and compared.
package history
