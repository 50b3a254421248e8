package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/AdityaGoyal-512/notebook-runner/internal/audio"
	"github.com/AdityaGoyal-512/notebook-runner/internal/backend"
	"github.com/AdityaGoyal-512/notebook-runner/internal/history"
	"github.com/AdityaGoyal-512/notebook-runner/internal/session"
	"github.com/AdityaGoyal-512/notebook-runner/internal/ui"
)

// SessionDeps adds the audio collaborators of the guided session.
type SessionDeps struct {
	Deps
	Recorder   *audio.Recorder
	Transcoder audio.Transcoder
	Player     audio.Player
}

// Session is the bubbletea model for the guided session.
type Session struct {
	// Collaborators
	client     *backend.Client
	journal    *history.Store
	log        *zap.Logger
	timeout    time.Duration
	recorder   *audio.Recorder
	transcoder audio.Transcoder
	player     audio.Player

	// Flow state
	state session.State

	// Recording
	rec      *audio.RecordingSession
	starting bool
	stopping bool

	// In-flight work
	cancel     context.CancelFunc
	playCancel context.CancelFunc
	playing    bool

	// Journal
	recent []history.Run
	counts map[history.Status]int

	// UI state
	editing bool
	width   int
	height  int
	notice  string

	// Errors
	errorMessage   string
	errorTransient bool
}

// NewSession creates an idle guided session.
func NewSession(deps SessionDeps) Session {
	tc := deps.Transcoder
	if tc == nil {
		tc = audio.RelabelTranscoder{}
	}
	return Session{
		client:     deps.Client,
		journal:    deps.Journal,
		log:        deps.logger(),
		timeout:    deps.Timeout,
		recorder:   deps.Recorder,
		transcoder: tc,
		player:     deps.Player,
		state:      session.New(),
	}
}

// State returns the current flow state.
func (m Session) State() session.State {
	return m.state
}

// Init loads the journal.
func (m Session) Init() tea.Cmd {
	return loadHistoryCmd(m.journal)
}

// Update processes messages and returns the updated model and any commands.
func (m Session) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		if m.editing {
			return m.handleEditKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case RecordingStartedMsg:
		if !m.starting {
			// reset or quit while the device was opening
			if msg.Session != nil {
				msg.Session.Abort()
			}
			return m, nil
		}
		m.starting = false
		if msg.Err != nil {
			return m.transientError(msg.Err.Error())
		}
		m.rec = msg.Session
		m.state.StartRecording()
		m.notice = ""
		return m, recordingTickCmd()

	case RecordingTickMsg:
		if m.rec == nil {
			return m, nil
		}
		return m, recordingTickCmd()

	case RecordingStoppedMsg:
		if !m.stopping {
			return m, nil
		}
		m.stopping = false
		m.rec = nil
		if msg.Err != nil {
			m.state.AbortRecording()
			return m.transientError(msg.Err.Error())
		}
		m.state.FinishRecording(msg.Blob)
		m.notice = fmt.Sprintf("Recorded %s", formatBytes(len(msg.Blob.Data)))
		return m, nil

	case SubmitDoneMsg:
		applied, alert := m.state.Complete(msg.Gen, msg.Response, msg.ReplyURL, msg.Err)
		if !applied {
			m.log.Debug("dropped stale submission", zap.Uint64("generation", msg.Gen))
			return m, nil
		}
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}

		var encodeErr *EncodeError
		if errors.As(msg.Err, &encodeErr) && !errors.Is(msg.Err, context.Canceled) {
			alert = encodeErr.Error()
		}
		if msg.Err != nil {
			m.log.Warn("submission failed", zap.Int("notebook", int(msg.Notebook)), zap.Error(msg.Err))
		}

		summary := m.state.Response
		if alert != "" {
			summary = alert
		}
		cmd := recordRunCmd(m.journal, history.Run{
			Variant:    history.VariantSession,
			Notebook:   int(msg.Notebook),
			StartedAt:  msg.Started,
			FinishedAt: time.Now(),
			Status:     sessionStatus(msg.Response, msg.Err),
			Summary:    summary,
		})
		if alert != "" {
			m.errorMessage = alert
			m.errorTransient = false
			return m, cmd
		}
		m.errorMessage = ""
		m.notice = ""
		return m, cmd

	case ReplyPlayedMsg:
		m.playing = false
		if m.playCancel != nil {
			m.playCancel()
			m.playCancel = nil
		}
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			return m.transientError("play reply: " + msg.Err.Error())
		}
		return m, nil

	case HistoryLoadedMsg:
		m.recent = msg.Runs
		m.counts = msg.Counts
		return m, nil

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	return m, nil
}

// handleKey processes key presses outside the input field.
func (m Session) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		m.teardown()
		return m, tea.Quit

	case KeyNotebook1:
		m.state.SelectNotebook(backend.Notebook1)
		return m, nil

	case KeyNotebook2:
		m.state.SelectNotebook(backend.Notebook2)
		return m, nil

	case KeyCycle:
		if m.state.Notebook == backend.Notebook1 {
			m.state.SelectNotebook(backend.Notebook2)
		} else {
			m.state.SelectNotebook(backend.Notebook1)
		}
		return m, nil

	case KeyToggleMode:
		if m.state.Mode == backend.InputURL {
			m.state.SetMode(backend.InputPDF)
		} else {
			m.state.SetMode(backend.InputURL)
		}
		return m, nil

	case KeyEdit, KeyTab:
		m.editing = true
		return m, nil

	case KeySpace:
		return m.toggleRecording()

	case KeyEnter:
		return m.submit()

	case KeyEsc:
		if m.state.Loading && m.cancel != nil {
			m.cancel()
			return m, nil
		}
		if m.rec != nil && !m.stopping {
			m.rec.Abort()
			m.rec = nil
			m.state.AbortRecording()
			m.notice = "Recording discarded"
			return m, nil
		}
		if m.playing && m.playCancel != nil {
			m.playCancel()
		}
		return m, nil

	case KeyPlay:
		return m.playReply()

	case KeyReset:
		m.teardown()
		m.state.Reset()
		m.errorMessage = ""
		m.errorTransient = false
		m.notice = ""
		return m, nil
	}

	return m, nil
}

// handleEditKey edits the active input: the PDF path or the URL.
func (m Session) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	field := &m.state.PDFPath
	if m.state.Mode == backend.InputURL {
		field = &m.state.URL
	}

	switch msg.Type {
	case tea.KeyCtrlC:
		m.teardown()
		return m, tea.Quit
	case tea.KeyEnter, tea.KeyEsc, tea.KeyTab:
		m.editing = false
	case tea.KeyBackspace:
		if r := []rune(*field); len(r) > 0 {
			*field = string(r[:len(r)-1])
		}
	case tea.KeyCtrlU:
		*field = ""
	case tea.KeySpace:
		*field += " "
	case tea.KeyRunes:
		*field += string(msg.Runes)
	}
	return m, nil
}

func (m Session) toggleRecording() (tea.Model, tea.Cmd) {
	if m.starting || m.stopping {
		return m, nil
	}
	if m.rec != nil {
		m.stopping = true
		return m, stopRecordingCmd(m.rec)
	}
	if m.recorder == nil {
		return m.transientError("no microphone configured")
	}
	m.starting = true
	return m, startRecordingCmd(m.recorder)
}

func (m Session) submit() (tea.Model, tea.Cmd) {
	if m.state.Loading {
		return m, nil
	}
	if m.client == nil {
		return m.transientError("no backend configured")
	}
	gen, err := m.state.Begin()
	if err != nil {
		return m.transientError(err.Error())
	}

	ctx, cancel := requestContext(m.timeout)
	m.cancel = cancel
	m.errorMessage = ""
	m.notice = ""

	sub := m.state.Submission()
	m.log.Info("submitting session",
		zap.Int("notebook", int(sub.Notebook)),
		zap.String("input_mode", string(sub.Mode)),
		zap.Uint64("generation", gen))
	return m, submitCmd(ctx, m.client, m.transcoder, sub, *m.state.Audio, gen)
}

func (m Session) playReply() (tea.Model, tea.Cmd) {
	if m.state.ReplyURL == "" || m.playing || m.client == nil {
		return m, nil
	}
	ctx, cancel := requestContext(m.timeout)
	m.playCancel = cancel
	m.playing = true
	return m, playReplyCmd(ctx, m.client, m.player, m.state.ReplyURL)
}

// teardown releases everything the session holds: the microphone, the
// in-flight request and playback.
func (m *Session) teardown() {
	if m.rec != nil {
		m.rec.Abort()
		m.rec = nil
		m.state.AbortRecording()
	}
	m.starting = false
	m.stopping = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.playCancel != nil {
		m.playCancel()
		m.playCancel = nil
	}
	m.playing = false
}

func (m Session) transientError(message string) (tea.Model, tea.Cmd) {
	m.errorMessage = message
	m.errorTransient = true
	return m, clearTransientErrorCmd()
}

// View renders the full TUI.
func (m Session) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, ui.Divider(m.width))
	sections = append(sections, m.renderInputs()...)
	sections = append(sections, ui.Divider(m.width))
	sections = append(sections, m.renderResults()...)
	sections = append(sections, ui.Divider(m.width))
	sections = append(sections, renderHistory(m.recent, m.counts, m.width)...)
	sections = append(sections, ui.Divider(m.width))
	if m.errorMessage != "" {
		sections = append(sections, renderErrorBar(m.errorMessage))
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Session) renderHeader() string {
	title := ui.TitleStyle.Render("NOTEBOOK SESSION")
	if m.client == nil {
		return title
	}
	return title + ui.DimStyle.Render("  "+m.client.BaseURL())
}

func (m Session) renderStatusBar() string {
	var status string
	switch {
	case m.rec != nil:
		status = ui.RecordingDotStyle.Render("● REC") + " " +
			ui.StatusStyle.Render(formatElapsed(m.rec.Elapsed())+"  "+formatBytes(m.rec.Size()))
	case m.state.Loading:
		status = ui.LoadingStyle.Render("⟳ Processing...")
	default:
		status = ui.IdleDotStyle.Render("○ " + strings.ToUpper(m.state.Phase().String()))
	}
	if m.playing {
		status += "  " + ui.LoadingStyle.Render("♪ playing reply")
	}
	if m.notice != "" {
		status += "  " + ui.DimStyle.Render(m.notice)
	}
	return status
}

func (m Session) renderInputs() []string {
	var lines []string

	notebook := ui.DimStyle.Render("none")
	if m.state.Notebook != backend.NotebookNone {
		notebook = ui.SelectedStyle.Render(fmt.Sprintf("Notebook %d", m.state.Notebook))
	}
	lines = append(lines, inputLine("Notebook", notebook))

	pdf, url := "pdf", "url"
	if m.state.Mode == backend.InputURL {
		url = ui.SelectedStyle.Render("[url]")
	} else {
		pdf = ui.SelectedStyle.Render("[pdf]")
	}
	lines = append(lines, inputLine("Input", pdf+" "+url))

	label, value := "PDF file", m.state.PDFPath
	if m.state.Mode == backend.InputURL {
		label, value = "URL", m.state.URL
	}
	if m.editing {
		value = ui.InputStyle.Render(value) + ui.CursorStyle.Render("▌")
	} else if value == "" {
		value = ui.DimStyle.Render("(press e to edit)")
	}
	lines = append(lines, inputLine(label, value))

	answer := ui.DimStyle.Render("not recorded")
	switch {
	case m.rec != nil:
		answer = ui.RecordingDotStyle.Render("recording...")
	case m.state.Audio != nil:
		answer = fmt.Sprintf("recorded (%s)", formatBytes(len(m.state.Audio.Data)))
	}
	lines = append(lines, inputLine("Answer", answer))
	return lines
}

// inputLine aligns a styled label in a fixed column.
func inputLine(label, value string) string {
	return "  " + ui.PadRight(ui.DimStyle.Render(label), 10) + value
}

func (m Session) renderResults() []string {
	if m.state.Loading {
		return []string{"  " + ui.LoadingStyle.Render("⟳ Waiting for the backend...")}
	}
	if !m.state.HasResults() {
		return []string{ui.DimStyle.Render("  Select a notebook, give a PDF or URL, record an answer, then press Enter")}
	}

	width := max(10, m.width-4)
	var lines []string
	section := func(title, body string) {
		lines = append(lines, ui.PanelTitleActiveStyle.Render(title))
		if body == "" {
			lines = append(lines, ui.DimStyle.Render("  (empty)"))
			return
		}
		for _, l := range ui.WrapText(body, width) {
			lines = append(lines, "  "+l)
		}
	}

	section("TRANSCRIPT", m.state.Transcript)
	section("RESPONSE", m.state.Response)

	lines = append(lines, ui.PanelTitleActiveStyle.Render(fmt.Sprintf("SOURCES (%d)", len(m.state.Sources))))
	for _, src := range m.state.Sources {
		lines = append(lines, "  "+ui.SourceBulletStyle.Render("•")+" "+ui.TruncateToWidth(src, width-2))
	}

	if m.state.ReplyURL != "" {
		lines = append(lines, ui.PanelTitleActiveStyle.Render("AUDIO REPLY"))
		lines = append(lines, "  "+ui.TruncateToWidth(m.state.ReplyURL, width))
	}
	return lines
}

func (m Session) renderFooter() string {
	if m.editing {
		return renderFooter(
			[2]string{"Enter", "Done"},
			[2]string{"Ctrl+U", "Clear"},
			[2]string{"Ctrl+C", "Quit"},
		)
	}

	record := "Record"
	if m.rec != nil {
		record = "Stop"
	}
	hints := [][2]string{
		{"1/2/n", "Notebook"},
		{"m", "Mode"},
		{"e", "Edit"},
		{"Space", record},
		{"Enter", "Submit"},
	}
	if m.state.Loading {
		hints = append(hints, [2]string{"Esc", "Cancel"})
	}
	if m.state.ReplyURL != "" {
		hints = append(hints, [2]string{"p", "Play"})
	}
	hints = append(hints, [2]string{"r", "Reset"}, [2]string{"q", "Quit"})
	return renderFooter(hints...)
}
