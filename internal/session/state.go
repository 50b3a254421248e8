package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/AdityaGoyal-512/notebook-runner/internal/audio"
	"github.com/AdityaGoyal-512/notebook-runner/internal/backend"
)

// Validation failures. Submit refuses to send a request while any holds.
var (
	ErrNoNotebook = errors.New("select a notebook first")
	ErrNoPDF      = errors.New("choose a PDF file")
	ErrNoURL      = errors.New("enter a URL")
	ErrNoAudio    = errors.New("record your question first")
	ErrRecording  = errors.New("stop the recording before submitting")
)

// Alerts shown for failed submissions.
const (
	AlertCommunication = "Error communicating with backend."
	AlertCancelled     = "Submission cancelled."
)

// Phase is the coarse position in the guided flow.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConfiguring
	PhaseRecording
	PhaseSubmitting
	PhaseDisplaying
)

func (p Phase) String() string {
	switch p {
	case PhaseConfiguring:
		return "configuring"
	case PhaseRecording:
		return "recording"
	case PhaseSubmitting:
		return "submitting"
	case PhaseDisplaying:
		return "displaying"
	default:
		return "idle"
	}
}

// State is the guided session. Inputs for both modes are retained; only the
// one matching Mode is sent.
type State struct {
	Notebook  backend.Notebook
	Mode      backend.InputMode
	PDFPath   string
	URL       string
	Audio     *audio.Blob
	Recording bool

	Transcript string
	Response   string
	Sources    []string
	ReplyURL   string
	Loading    bool

	generation uint64
}

// New returns an idle session in PDF mode with no notebook selected.
func New() State {
	return State{Mode: backend.InputPDF}
}

// SelectNotebook sets the active notebook.
func (s *State) SelectNotebook(n backend.Notebook) {
	s.Notebook = n
}

// SetMode switches the active input.
func (s *State) SetMode(m backend.InputMode) {
	s.Mode = m
}

// StartRecording marks a recording as in progress.
func (s *State) StartRecording() {
	s.Recording = true
}

// FinishRecording stores the captured blob, replacing any earlier one.
func (s *State) FinishRecording(b audio.Blob) {
	s.Recording = false
	s.Audio = &b
}

// AbortRecording clears the recording flag without touching captured audio.
func (s *State) AbortRecording() {
	s.Recording = false
}

// Validate reports the first reason a submission would be refused.
func (s State) Validate() error {
	if s.Notebook.Validate() != nil {
		return ErrNoNotebook
	}
	switch s.Mode {
	case backend.InputURL:
		if strings.TrimSpace(s.URL) == "" {
			return ErrNoURL
		}
	default:
		path := strings.TrimSpace(s.PDFPath)
		if path == "" {
			return ErrNoPDF
		}
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			return fmt.Errorf("%w: %s is not a readable file", ErrNoPDF, path)
		}
	}
	if s.Audio == nil || len(s.Audio.Data) == 0 {
		return ErrNoAudio
	}
	if s.Recording {
		return ErrRecording
	}
	return nil
}

// Begin validates and, on success, enters the submitting phase: results are
// cleared and the returned generation identifies this attempt. On validation
// failure the state is unchanged.
func (s *State) Begin() (uint64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	s.generation++
	s.Loading = true
	s.clearResults()
	return s.generation, nil
}

// Submission returns the request for the current inputs. The audio must still
// be encoded for the notebook by the caller.
func (s State) Submission() backend.Submission {
	sub := backend.Submission{Notebook: s.Notebook, Mode: s.Mode}
	if s.Mode == backend.InputURL {
		sub.URL = strings.TrimSpace(s.URL)
	} else {
		sub.Mode = backend.InputPDF
		sub.PDFPath = strings.TrimSpace(s.PDFPath)
	}
	if s.Audio != nil {
		sub.Audio = s.Audio.Data
	}
	return sub
}

// Complete applies the outcome of attempt gen. Stale attempts are ignored and
// report applied=false. Loading always ends for the current attempt. The
// alert is non-empty when the user should be told about a failure; result
// fields are populated only on success.
func (s *State) Complete(gen uint64, resp backend.SessionResponse, replyURL string, err error) (applied bool, alert string) {
	if gen != s.generation {
		return false, ""
	}
	s.Loading = false

	if err != nil {
		var backendErr *backend.BackendError
		switch {
		case errors.As(err, &backendErr):
			return true, backendErr.Message
		case errors.Is(err, context.Canceled):
			return true, AlertCancelled
		default:
			return true, AlertCommunication
		}
	}
	if resp.Error != "" {
		return true, resp.Error
	}

	s.Transcript = resp.TranscribedText
	s.Response = resp.FinalResponse
	s.Sources = append([]string(nil), resp.Sources...)
	s.ReplyURL = ""
	if resp.AudioReplyPath != "" {
		s.ReplyURL = replyURL
	}
	return true, ""
}

// Generation returns the generation of the latest attempt.
func (s State) Generation() uint64 {
	return s.generation
}

// HasResults reports whether any result field is populated.
func (s State) HasResults() bool {
	return s.Transcript != "" || s.Response != "" || len(s.Sources) > 0 || s.ReplyURL != ""
}

// Phase derives the flow position from the state.
func (s State) Phase() Phase {
	switch {
	case s.Recording:
		return PhaseRecording
	case s.Loading:
		return PhaseSubmitting
	case s.HasResults():
		return PhaseDisplaying
	case s.Notebook != backend.NotebookNone || s.PDFPath != "" || s.URL != "" || s.Audio != nil:
		return PhaseConfiguring
	default:
		return PhaseIdle
	}
}

// Reset returns to idle. The generation advances so the completion of an
// abandoned attempt is stale.
func (s *State) Reset() {
	gen := s.generation
	*s = New()
	s.generation = gen + 1
}

func (s *State) clearResults() {
	s.Transcript = ""
	s.Response = ""
	s.Sources = nil
	s.ReplyURL = ""
}
