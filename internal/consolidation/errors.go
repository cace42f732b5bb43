package consolidation

import (
	"fmt"
)

// Pipeline stages, in execution order.
const (
	StageLoad      = "load"
	StageSnapshots = "snapshots"
	StageAggregate = "aggregate"
	StageVariance  = "variance"
	StageExport    = "export"
)

// RunError wraps a failure with the pipeline stage it happened in.
type RunError struct {
	// Stage is the pipeline stage that failed (e.g., "load", "export").
	Stage string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("consolidation: %s failed: %s: %v", e.Stage, e.Details, e.Err)
	}
	return fmt.Sprintf("consolidation: %s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *RunError) Unwrap() error {
	return e.Err
}
