// Package session holds the front-end state machines: the dispatcher's
// action slots and the guided session. Both are plain values mutated by the
// bubbletea update loop; network completions are matched against a
// generation number so only the latest request is applied.
package session

import "github.com/AdityaGoyal-512/notebook-runner/internal/backend"

// NoOutput is shown when a result carries neither error nor output.
const NoOutput = "No output"

// ActionSlot is one independently triggerable notebook run.
type ActionSlot struct {
	Notebook backend.Notebook
	Loading  bool
	Result   *backend.ActionResult

	generation uint64
}

// NewActionSlot returns an idle slot for n.
func NewActionSlot(n backend.Notebook) ActionSlot {
	return ActionSlot{Notebook: n}
}

// Begin starts a run: the previous result is dropped and the returned
// generation identifies this run's completion.
func (s *ActionSlot) Begin() uint64 {
	s.generation++
	s.Loading = true
	s.Result = nil
	return s.generation
}

// Complete applies a run's outcome if gen is still the latest run. A non-nil
// err replaces the result with the synthetic transport failure. Reports
// whether the outcome was applied.
func (s *ActionSlot) Complete(gen uint64, result backend.ActionResult, err error) bool {
	if gen != s.generation {
		return false
	}
	if err != nil {
		result = backend.TransportFailure()
	}
	s.Result = &result
	s.Loading = false
	return true
}

// Generation returns the generation of the latest run.
func (s ActionSlot) Generation() uint64 {
	return s.generation
}

// RenderText picks the text shown for a result: error first, then output,
// then a placeholder.
func RenderText(r backend.ActionResult) string {
	if r.Error != "" {
		return r.Error
	}
	if r.Output != "" {
		return r.Output
	}
	return NoOutput
}

// StatusLine is the headline shown above a result.
func StatusLine(r backend.ActionResult) string {
	if r.Success {
		return "Execution completed successfully"
	}
	return "Execution failed"
}
