package app

import (
	"time"

	"github.com/AdityaGoyal-512/notebook-runner/internal/audio"
	"github.com/AdityaGoyal-512/notebook-runner/internal/backend"
	"github.com/AdityaGoyal-512/notebook-runner/internal/history"
)

// SlotDoneMsg carries the outcome of one dispatcher run.
type SlotDoneMsg struct {
	Notebook backend.Notebook
	Gen      uint64
	Result   backend.ActionResult
	Err      error
	Started  time.Time
}

// RecordingStartedMsg is sent once the microphone is open, or failed to open.
type RecordingStartedMsg struct {
	Session *audio.RecordingSession
	Err     error
}

// RecordingStoppedMsg carries the finished capture.
type RecordingStoppedMsg struct {
	Blob audio.Blob
	Err  error
}

// RecordingTickMsg refreshes the recording timer.
type RecordingTickMsg struct{}

// SubmitDoneMsg carries the outcome of one guided session submission.
type SubmitDoneMsg struct {
	Notebook backend.Notebook
	Gen      uint64
	Response backend.SessionResponse
	ReplyURL string
	Err      error
	Started  time.Time
}

// ReplyPlayedMsg is sent when audio reply playback ends.
type ReplyPlayedMsg struct {
	Err error
}

// HistoryLoadedMsg carries the most recent journal entries and the run
// totals per status.
type HistoryLoadedMsg struct {
	Runs   []history.Run
	Counts map[history.Status]int
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}
