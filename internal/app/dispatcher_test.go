package app

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/AdityaGoyal-512/notebook-runner/internal/backend"
	"github.com/AdityaGoyal-512/notebook-runner/internal/history"
	"github.com/AdityaGoyal-512/notebook-runner/internal/session"
)

func applyDispatcher(m Dispatcher, msg tea.Msg) (Dispatcher, tea.Cmd) {
	updated, cmd := m.Update(msg)
	return updated.(Dispatcher), cmd
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// dispatchServer answers each run endpoint with the given JSON body.
func dispatchServer(t *testing.T, bodies map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"success":false,"output":"","error":"not found"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) *backend.Client {
	t.Helper()
	c, err := backend.NewClient(baseURL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func newTestDispatcher(t *testing.T, bodies map[string]string) Dispatcher {
	t.Helper()
	srv := dispatchServer(t, bodies)
	m := NewDispatcher(Deps{Client: newTestClient(t, srv.URL)})
	m, _ = applyDispatcher(m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return m
}

func slotOf(t *testing.T, m Dispatcher, n backend.Notebook) session.ActionSlot {
	t.Helper()
	s, err := m.Slot(n)
	if err != nil {
		t.Fatalf("Slot(%d): %v", n, err)
	}
	return s
}

func TestNewDispatcher(t *testing.T) {
	m := NewDispatcher(Deps{})
	for _, n := range backend.Notebooks {
		s := slotOf(t, m, n)
		if s.Loading {
			t.Errorf("slot %d should not be loading", n)
		}
		if s.Result != nil {
			t.Errorf("slot %d should have no result", n)
		}
	}
	if _, err := m.Slot(3); err == nil {
		t.Error("Slot(3) should fail")
	}
}

func TestDispatcherInitializingView(t *testing.T) {
	m := NewDispatcher(Deps{})
	if got := m.View(); got != "Initializing..." {
		t.Errorf("View = %q, want Initializing...", got)
	}
}

func TestDispatcherRunRendersOutput(t *testing.T) {
	m := newTestDispatcher(t, map[string]string{
		"/api/run-notebook-1": `{"success":true,"output":"42"}`,
	})

	m, cmd := applyDispatcher(m, keyRune('1'))
	if cmd == nil {
		t.Fatal("pressing 1 should start a run")
	}
	if s := slotOf(t, m, backend.Notebook1); !s.Loading || s.Result != nil {
		t.Errorf("slot during run = %+v, want loading without result", s)
	}
	if !strings.Contains(m.View(), "Running...") {
		t.Error("view should show the loading indicator")
	}

	m, _ = applyDispatcher(m, cmd())

	s := slotOf(t, m, backend.Notebook1)
	if s.Loading {
		t.Error("slot should not be loading after completion")
	}
	if s.Result == nil || s.Result.Output != "42" {
		t.Fatalf("result = %+v, want output 42", s.Result)
	}
	view := m.View()
	if !strings.Contains(view, "42") {
		t.Error("view should contain the output")
	}
	if !strings.Contains(view, "Execution completed successfully") {
		t.Error("view should contain the success status line")
	}
}

func TestDispatcherRunRendering(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"error wins over output", `{"success":false,"output":"partial","error":"boom"}`, "boom"},
		{"empty output", `{"success":true,"output":""}`, session.NoOutput},
		{"failure status", `{"success":false,"output":"nope"}`, "Execution failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestDispatcher(t, map[string]string{"/api/run-notebook-2": tt.body})

			m, cmd := applyDispatcher(m, keyRune('2'))
			m, _ = applyDispatcher(m, cmd())

			if !strings.Contains(m.View(), tt.want) {
				t.Errorf("view does not contain %q:\n%s", tt.want, m.View())
			}
		})
	}
}

func TestDispatcherTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	m := NewDispatcher(Deps{Client: newTestClient(t, srv.URL)})
	m, cmd := applyDispatcher(m, keyRune('1'))
	m, _ = applyDispatcher(m, cmd())

	s := slotOf(t, m, backend.Notebook1)
	if s.Loading {
		t.Error("slot should not be loading after a transport failure")
	}
	if s.Result == nil || s.Result.Error != backend.FailedToExecute || s.Result.Success {
		t.Errorf("result = %+v, want synthetic failure", s.Result)
	}
}

func TestDispatcherSlotsAreIndependent(t *testing.T) {
	m := newTestDispatcher(t, map[string]string{
		"/api/run-notebook-1": `{"success":true,"output":"one"}`,
		"/api/run-notebook-2": `{"success":true,"output":"two"}`,
	})

	m, cmd1 := applyDispatcher(m, keyRune('1'))
	m, cmd2 := applyDispatcher(m, keyRune('2'))
	m, _ = applyDispatcher(m, cmd2())

	if s := slotOf(t, m, backend.Notebook1); !s.Loading {
		t.Error("slot 1 should still be loading")
	}
	if s := slotOf(t, m, backend.Notebook2); s.Result == nil || s.Result.Output != "two" {
		t.Errorf("slot 2 result = %+v", s.Result)
	}

	m, _ = applyDispatcher(m, cmd1())
	if s := slotOf(t, m, backend.Notebook1); s.Result == nil || s.Result.Output != "one" {
		t.Errorf("slot 1 result = %+v", s.Result)
	}
}

func TestDispatcherStaleRunDropped(t *testing.T) {
	m := newTestDispatcher(t, map[string]string{})

	m, _ = applyDispatcher(m, keyRune('1'))
	first := slotOf(t, m, backend.Notebook1).Generation()
	m, _ = applyDispatcher(m, keyRune('1'))

	m, _ = applyDispatcher(m, SlotDoneMsg{
		Notebook: backend.Notebook1,
		Gen:      first,
		Result:   backend.ActionResult{Success: true, Output: "old"},
	})

	s := slotOf(t, m, backend.Notebook1)
	if !s.Loading {
		t.Error("stale completion should not end the latest run")
	}
	if s.Result != nil {
		t.Errorf("stale completion applied: %+v", s.Result)
	}
}

func TestDispatcherEscCancelsRun(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-block:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(block) })

	m := NewDispatcher(Deps{Client: newTestClient(t, srv.URL)})
	m, cmd := applyDispatcher(m, keyRune('1'))
	m, _ = applyDispatcher(m, tea.KeyMsg{Type: tea.KeyEsc})

	msg := cmd().(SlotDoneMsg)
	if msg.Err == nil {
		t.Fatal("cancelled run should report an error")
	}
	m, _ = applyDispatcher(m, msg)

	s := slotOf(t, m, backend.Notebook1)
	if s.Loading || s.Result == nil || s.Result.Error != backend.FailedToExecute {
		t.Errorf("slot after cancel = %+v", s)
	}
}

func TestDispatcherNavigation(t *testing.T) {
	m := NewDispatcher(Deps{})

	m, _ = applyDispatcher(m, keyRune('j'))
	if m.selected != 1 {
		t.Errorf("selected = %d, want 1", m.selected)
	}
	m, _ = applyDispatcher(m, keyRune('j'))
	if m.selected != 1 {
		t.Errorf("selected should stop at the last slot, got %d", m.selected)
	}
	m, _ = applyDispatcher(m, keyRune('k'))
	if m.selected != 0 {
		t.Errorf("selected = %d, want 0", m.selected)
	}
}

func TestDispatcherWithoutClient(t *testing.T) {
	m := NewDispatcher(Deps{})
	m, _ = applyDispatcher(m, keyRune('1'))

	if m.errorMessage == "" {
		t.Error("running without a client should show an error")
	}
	if slotOf(t, m, backend.Notebook1).Loading {
		t.Error("slot should not start loading without a client")
	}
}

func TestDispatcherRecordsRuns(t *testing.T) {
	store, err := history.OpenMemory()
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := dispatchServer(t, map[string]string{
		"/api/run-notebook-2": `{"success":false,"output":"","error":"kernel died"}`,
	})
	m := NewDispatcher(Deps{Client: newTestClient(t, srv.URL), Journal: store})

	m, cmd := applyDispatcher(m, keyRune('2'))
	m, recordCmd := applyDispatcher(m, cmd())
	if recordCmd == nil {
		t.Fatal("completion should record the run")
	}
	m, _ = applyDispatcher(m, recordCmd())

	if len(m.recent) != 1 {
		t.Fatalf("recent = %d runs, want 1", len(m.recent))
	}
	r := m.recent[0]
	if r.Variant != history.VariantDispatch || r.Notebook != 2 {
		t.Errorf("run = %+v", r)
	}
	if r.Status != history.StatusFailed {
		t.Errorf("status = %q, want %q", r.Status, history.StatusFailed)
	}
	if r.Summary != "kernel died" {
		t.Errorf("summary = %q, want %q", r.Summary, "kernel died")
	}

	if m.counts[history.StatusFailed] != 1 {
		t.Errorf("failed count = %d, want 1", m.counts[history.StatusFailed])
	}
	m, _ = applyDispatcher(m, tea.WindowSizeMsg{Width: 100, Height: 30})
	if view := m.View(); !strings.Contains(view, "1 total · 0 ok · 1 failed") {
		t.Errorf("view missing run totals:\n%s", view)
	}
}

func TestRenderHistoryTotals(t *testing.T) {
	lines := renderHistory(nil, nil, 80)
	if strings.Contains(lines[0], "total") {
		t.Errorf("empty journal should show no totals: %q", lines[0])
	}

	counts := map[history.Status]int{
		history.StatusOK:             3,
		history.StatusFailed:         1,
		history.StatusTransportError: 1,
	}
	lines = renderHistory(nil, counts, 80)
	if !strings.Contains(lines[0], "5 total · 3 ok · 2 failed") {
		t.Errorf("title = %q, want totals", lines[0])
	}
}

func TestDispatcherQuit(t *testing.T) {
	m := NewDispatcher(Deps{})
	_, cmd := applyDispatcher(m, keyRune('q'))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestDispatcherClearTransientError(t *testing.T) {
	m := NewDispatcher(Deps{})
	m.errorMessage = "boom"
	m.errorTransient = true

	m, _ = applyDispatcher(m, ClearTransientErrorMsg{})
	if m.errorMessage != "" {
		t.Errorf("errorMessage = %q, want empty", m.errorMessage)
	}
}
