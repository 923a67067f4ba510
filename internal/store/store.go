package store

import (
	"image"
)

// Store defines the interface for run archive persistence.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if a run doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveRun atomically writes the record of a finished run. An existing
	// record with the same RunID is overwritten.
	SaveRun(record *RunRecord) error

	// LoadRun retrieves the record for the given run.
	// Returns ErrNotFound if no record exists for this runID.
	LoadRun(runID string) (*RunRecord, error)

	// ListRuns returns summaries of all archived runs, newest first.
	ListRuns() ([]RunInfo, error)

	// DeleteRun removes the run and all associated artifacts:
	//   - run.json
	//   - result.png
	//   - trace.jsonl
	DeleteRun(runID string) error

	// SaveImage stores the final canvas of a run.
	SaveImage(runID string, img image.Image) error
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run not found: " + e.RunID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
