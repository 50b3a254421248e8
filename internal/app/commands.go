package app

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AdityaGoyal-512/notebook-runner/internal/audio"
	"github.com/AdityaGoyal-512/notebook-runner/internal/backend"
	"github.com/AdityaGoyal-512/notebook-runner/internal/history"
)

// recentRuns is how many journal entries the models show.
const recentRuns = 5

// stopTimeout bounds how long a stopped microphone may take to drain.
const stopTimeout = 5 * time.Second

// EncodeError reports that the captured answer could not be converted for
// upload. No request was sent.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string { return "encode audio: " + e.Err.Error() }

func (e *EncodeError) Unwrap() error { return e.Err }

// requestContext returns the context for one request. A zero timeout leaves
// the request bounded only by cancellation.
func requestContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(context.Background(), timeout)
	}
	return context.WithCancel(context.Background())
}

// SubmitSession converts the captured answer to the notebook's upload format
// and posts the submission. The returned reply URL is empty when the backend
// sent no audio reply.
func SubmitSession(ctx context.Context, client *backend.Client, tc audio.Transcoder, sub backend.Submission, answer audio.Blob) (backend.SessionResponse, string, error) {
	_, contentType := sub.Notebook.AudioUpload()
	format, err := audio.FormatForMIME(contentType)
	if err != nil {
		return backend.SessionResponse{}, "", &EncodeError{Err: err}
	}
	encoded, err := tc.Transcode(ctx, answer, format)
	if err != nil {
		return backend.SessionResponse{}, "", &EncodeError{Err: err}
	}
	sub.Audio = encoded.Data

	resp, err := client.Submit(ctx, sub)
	return resp, client.ReplyURL(resp.AudioReplyPath), err
}

// runNotebookCmd performs one dispatcher run.
func runNotebookCmd(ctx context.Context, client *backend.Client, n backend.Notebook, gen uint64) tea.Cmd {
	return func() tea.Msg {
		started := time.Now()
		result, err := client.RunNotebook(ctx, n)
		return SlotDoneMsg{Notebook: n, Gen: gen, Result: result, Err: err, Started: started}
	}
}

// submitCmd performs one guided session submission.
func submitCmd(ctx context.Context, client *backend.Client, tc audio.Transcoder, sub backend.Submission, answer audio.Blob, gen uint64) tea.Cmd {
	return func() tea.Msg {
		started := time.Now()
		resp, replyURL, err := SubmitSession(ctx, client, tc, sub, answer)
		return SubmitDoneMsg{Notebook: sub.Notebook, Gen: gen, Response: resp, ReplyURL: replyURL, Err: err, Started: started}
	}
}

// startRecordingCmd opens the microphone.
func startRecordingCmd(rec *audio.Recorder) tea.Cmd {
	return func() tea.Msg {
		s, err := rec.Start(context.Background())
		return RecordingStartedMsg{Session: s, Err: err}
	}
}

// stopRecordingCmd finishes a capture.
func stopRecordingCmd(s *audio.RecordingSession) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		blob, err := s.Stop(ctx)
		return RecordingStoppedMsg{Blob: blob, Err: err}
	}
}

// recordingTickCmd refreshes the recording timer once a second.
func recordingTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return RecordingTickMsg{}
	})
}

// playReplyCmd downloads the audio reply and plays it.
func playReplyCmd(ctx context.Context, client *backend.Client, player audio.Player, replyURL string) tea.Cmd {
	return func() tea.Msg {
		data, err := client.FetchReply(ctx, replyURL)
		if err != nil {
			return ReplyPlayedMsg{Err: err}
		}
		if err := player.Play(ctx, path.Base(replyURL), data); err != nil {
			return ReplyPlayedMsg{Err: err}
		}
		return ReplyPlayedMsg{}
	}
}

// loadHistoryCmd reads the latest journal entries.
func loadHistoryCmd(store *history.Store) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		ctx := context.Background()
		runs, err := store.Recent(ctx, recentRuns)
		if err != nil {
			return nil
		}
		counts, err := store.Counts(ctx)
		if err != nil {
			return nil
		}
		return HistoryLoadedMsg{Runs: runs, Counts: counts}
	}
}

// recordRunCmd appends a run to the journal and reloads the latest entries.
func recordRunCmd(store *history.Store, run history.Run) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		if _, err := store.Record(context.Background(), run); err != nil {
			return nil
		}
		return loadHistoryCmd(store)()
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// dispatchStatus classifies a dispatcher outcome for the journal.
func dispatchStatus(result backend.ActionResult, err error) history.Status {
	switch {
	case err != nil:
		return history.StatusTransportError
	case !result.Success:
		return history.StatusFailed
	default:
		return history.StatusOK
	}
}

// sessionStatus classifies a session outcome for the journal.
func sessionStatus(resp backend.SessionResponse, err error) history.Status {
	var backendErr *backend.BackendError
	switch {
	case errors.As(err, &backendErr), err == nil && resp.Error != "":
		return history.StatusBackendError
	case err != nil:
		return history.StatusTransportError
	default:
		return history.StatusOK
	}
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%d KB", n>>10)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
