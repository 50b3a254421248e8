// Package backend provides the HTTP client and wire types for talking to the
// notebook backend. Both front-ends share it: the dispatcher posts empty bodies,
// the guided session posts multipart forms.
package backend

import (
	"errors"
	"fmt"
)

// Notebook identifies a backend pipeline.
type Notebook int

const (
	NotebookNone Notebook = 0
	Notebook1    Notebook = 1
	Notebook2    Notebook = 2
)

// Notebooks lists the notebooks the backend exposes, in display order.
var Notebooks = []Notebook{Notebook1, Notebook2}

// ErrInvalidNotebook is returned for notebook ids outside 1 and 2.
var ErrInvalidNotebook = errors.New("invalid notebook")

// Validate reports whether n names a known notebook.
func (n Notebook) Validate() error {
	if n != Notebook1 && n != Notebook2 {
		return fmt.Errorf("%w: %d", ErrInvalidNotebook, int(n))
	}
	return nil
}

// Path returns the run endpoint for the notebook.
func (n Notebook) Path() string {
	return fmt.Sprintf("/api/run-notebook-%d", int(n))
}

// AudioUpload returns the filename and content type the backend expects for
// this notebook's answer audio.
func (n Notebook) AudioUpload() (filename, contentType string) {
	if n == Notebook2 {
		return "audio.mp3", "audio/mp3"
	}
	return "audio.wav", "audio/wav"
}

// InputMode selects which document source accompanies a session submission.
type InputMode string

const (
	InputPDF InputMode = "pdf"
	InputURL InputMode = "url"
)

// FailedToExecute is the error text of the synthetic result produced when the
// dispatcher's request never completes.
const FailedToExecute = "Failed to execute notebook"

// ActionResult is the dispatcher endpoint response.
type ActionResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
	Error   string `json:"error,omitempty"`
}

// TransportFailure returns the synthetic result stored when a run fails
// before a response could be parsed.
func TransportFailure() ActionResult {
	return ActionResult{Success: false, Output: "", Error: FailedToExecute}
}

// SessionResponse is the guided session endpoint response. All fields are
// optional on the wire.
type SessionResponse struct {
	Error           string   `json:"error,omitempty"`
	TranscribedText string   `json:"transcribed_text,omitempty"`
	FinalResponse   string   `json:"final_response,omitempty"`
	Sources         []string `json:"sources,omitempty"`
	AudioReplyPath  string   `json:"audio_reply_path,omitempty"`
}

// BackendError is a failure the backend reported in an otherwise readable
// response.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string { return e.Message }
