// Package monitoring reports errors and panics to the process-wide Monitor
// installed with Init. The default monitor discards everything.
package monitoring
