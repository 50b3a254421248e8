// Package history keeps a journal of the runs made during this process, in an
// in-memory SQLite database. Nothing outlives the process.
package history

import "time"

// Variant names which front-end made a run.
type Variant string

const (
	VariantDispatch Variant = "dispatch"
	VariantSession  Variant = "session"
)

// Status is how a run ended.
type Status string

const (
	StatusOK             Status = "ok"
	StatusFailed         Status = "failed"
	StatusBackendError   Status = "backend_error"
	StatusTransportError Status = "transport_error"
)

// Run is one journal entry.
type Run struct {
	ID         string
	Variant    Variant
	Notebook   int
	StartedAt  time.Time
	FinishedAt time.Time
	Status     Status
	Summary    string
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
