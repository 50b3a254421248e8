package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/AdityaGoyal-512/notebook-runner/internal/backend"
	"github.com/AdityaGoyal-512/notebook-runner/internal/history"
	"github.com/AdityaGoyal-512/notebook-runner/internal/session"
	"github.com/AdityaGoyal-512/notebook-runner/internal/ui"
)

// Deps are the collaborators shared by both models.
type Deps struct {
	Client  *backend.Client
	Journal *history.Store // optional
	Logger  *zap.Logger
	Timeout time.Duration // per request; 0 disables
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// Dispatcher is the bubbletea model for the two-button notebook runner.
type Dispatcher struct {
	// Collaborators
	client  *backend.Client
	journal *history.Store
	log     *zap.Logger
	timeout time.Duration

	// Slots, one per notebook, with the cancel func of each in-flight run
	slots    []session.ActionSlot
	cancels  []context.CancelFunc
	selected int

	// Journal
	recent []history.Run
	counts map[history.Status]int

	// UI state
	width  int
	height int

	// Errors
	errorMessage   string
	errorTransient bool
}

// NewDispatcher creates a dispatcher with one idle slot per notebook.
func NewDispatcher(deps Deps) Dispatcher {
	m := Dispatcher{
		client:  deps.Client,
		journal: deps.Journal,
		log:     deps.logger(),
		timeout: deps.Timeout,
	}
	for _, n := range backend.Notebooks {
		m.slots = append(m.slots, session.NewActionSlot(n))
	}
	m.cancels = make([]context.CancelFunc, len(m.slots))
	return m
}

// Init loads the journal.
func (m Dispatcher) Init() tea.Cmd {
	return loadHistoryCmd(m.journal)
}

// Update processes messages and returns the updated model and any commands.
func (m Dispatcher) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case SlotDoneMsg:
		i := m.slotIndex(msg.Notebook)
		if i < 0 {
			return m, nil
		}
		if !m.slots[i].Complete(msg.Gen, msg.Result, msg.Err) {
			m.log.Debug("dropped stale run", zap.Int("notebook", int(msg.Notebook)), zap.Uint64("generation", msg.Gen))
			return m, nil
		}
		if m.cancels[i] != nil {
			m.cancels[i]()
			m.cancels[i] = nil
		}
		if msg.Err != nil {
			m.log.Warn("notebook run failed", zap.Int("notebook", int(msg.Notebook)), zap.Error(msg.Err))
		}

		result := *m.slots[i].Result
		return m, recordRunCmd(m.journal, history.Run{
			Variant:    history.VariantDispatch,
			Notebook:   int(msg.Notebook),
			StartedAt:  msg.Started,
			FinishedAt: time.Now(),
			Status:     dispatchStatus(msg.Result, msg.Err),
			Summary:    session.RenderText(result),
		})

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

// handleKey processes key presses.
func (m Dispatcher) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		m.cancelAll()
		return m, tea.Quit

	case KeyNotebook1, KeyNotebook2:
		n := backend.Notebook(msg.Runes[0] - '0')
		i := m.slotIndex(n)
		m.selected = i
		return m.run(i)

	case KeyEnter, KeySpace:
		return m.run(m.selected)

	case KeyUp, KeyK:
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case KeyDown, KeyJ:
		if m.selected < len(m.slots)-1 {
			m.selected++
		}
		return m, nil

	case KeyEsc:
		if m.cancels[m.selected] != nil {
			m.cancels[m.selected]()
		}
		return m, nil
	}

	return m, nil
}

// run starts slot i. A run already in flight for the slot is cancelled and
// its completion will be stale.
func (m Dispatcher) run(i int) (tea.Model, tea.Cmd) {
	if i < 0 || i >= len(m.slots) {
		return m, nil
	}
	if m.client == nil {
		m.errorMessage = "no backend configured"
		m.errorTransient = true
		return m, clearTransientErrorCmd()
	}
	if m.cancels[i] != nil {
		m.cancels[i]()
	}

	gen := m.slots[i].Begin()
	ctx, cancel := requestContext(m.timeout)
	m.cancels[i] = cancel

	n := m.slots[i].Notebook
	m.log.Info("running notebook", zap.Int("notebook", int(n)), zap.Uint64("generation", gen))
	return m, runNotebookCmd(ctx, m.client, n, gen)
}

func (m Dispatcher) cancelAll() {
	for _, cancel := range m.cancels {
		if cancel != nil {
			cancel()
		}
	}
}

func (m Dispatcher) slotIndex(n backend.Notebook) int {
	for i, s := range m.slots {
		if s.Notebook == n {
			return i
		}
	}
	return -1
}

// Slot returns the slot for notebook n.
func (m Dispatcher) Slot(n backend.Notebook) (session.ActionSlot, error) {
	i := m.slotIndex(n)
	if i < 0 {
		return session.ActionSlot{}, fmt.Errorf("%w: %d", backend.ErrInvalidNotebook, n)
	}
	return m.slots[i], nil
}

// View renders the full TUI.
func (m Dispatcher) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, ui.Divider(m.width))
	for i := range m.slots {
		sections = append(sections, m.renderSlot(i)...)
	}
	sections = append(sections, ui.Divider(m.width))
	sections = append(sections, renderHistory(m.recent, m.counts, m.width)...)
	sections = append(sections, ui.Divider(m.width))
	if m.errorMessage != "" {
		sections = append(sections, renderErrorBar(m.errorMessage))
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Dispatcher) renderHeader() string {
	title := ui.TitleStyle.Render("NOTEBOOK RUNNER")
	if m.client == nil {
		return title
	}
	return title + ui.DimStyle.Render("  "+m.client.BaseURL())
}

func (m Dispatcher) renderSlot(i int) []string {
	slot := m.slots[i]
	label := fmt.Sprintf("Run Notebook %d", slot.Notebook)

	var head string
	if i == m.selected {
		head = ui.SelectedStyle.Render("> " + label)
	} else {
		head = "  " + label
	}
	lines := []string{head}

	switch {
	case slot.Loading:
		lines = append(lines, "    "+ui.LoadingStyle.Render("⟳ Running..."))
	case slot.Result != nil:
		r := *slot.Result
		if r.Success {
			lines = append(lines, "    "+ui.SuccessStyle.Render("✓ "+session.StatusLine(r)))
		} else {
			lines = append(lines, "    "+ui.ErrorStyle.Render("✗ "+session.StatusLine(r)))
		}
		for _, l := range ui.WrapText(session.RenderText(r), max(10, m.width-6)) {
			lines = append(lines, "      "+l)
		}
	default:
		lines = append(lines, ui.DimStyle.Render(fmt.Sprintf("    Press %d to run", slot.Notebook)))
	}
	return append(lines, "")
}

func (m Dispatcher) renderFooter() string {
	return renderFooter(
		[2]string{"1/2", "Run"},
		[2]string{"Enter", "Run selected"},
		[2]string{"j/k", "Nav"},
		[2]string{"Esc", "Cancel"},
		[2]string{"q", "Quit"},
	)
}
