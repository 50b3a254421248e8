package session

import (
	"errors"
	"testing"

	"github.com/AdityaGoyal-512/notebook-runner/internal/backend"
)

func TestActionSlotBeginClearsResult(t *testing.T) {
	s := NewActionSlot(backend.Notebook1)
	s.Result = &backend.ActionResult{Success: true, Output: "old"}

	s.Begin()

	if !s.Loading {
		t.Error("slot should be loading after Begin")
	}
	if s.Result != nil {
		t.Errorf("result = %+v, want nil", s.Result)
	}
}

func TestActionSlotCompleteAlwaysStopsLoading(t *testing.T) {
	cases := []struct {
		name   string
		result backend.ActionResult
		err    error
	}{
		{"success", backend.ActionResult{Success: true, Output: "42"}, nil},
		{"backend failure", backend.ActionResult{Success: false, Error: "boom"}, nil},
		{"transport failure", backend.ActionResult{}, errors.New("connection refused")},
	}

	for _, n := range backend.Notebooks {
		for _, tc := range cases {
			s := NewActionSlot(n)
			gen := s.Begin()
			if !s.Complete(gen, tc.result, tc.err) {
				t.Fatalf("%s/%d: complete not applied", tc.name, n)
			}
			if s.Loading {
				t.Errorf("%s/%d: still loading after completion", tc.name, n)
			}
			if s.Result == nil {
				t.Errorf("%s/%d: result not stored", tc.name, n)
			}
		}
	}
}

func TestActionSlotSyntheticFailureOnlyOnTransportError(t *testing.T) {
	s := NewActionSlot(backend.Notebook1)
	gen := s.Begin()
	s.Complete(gen, backend.ActionResult{Output: "ignored"}, errors.New("dial tcp: refused"))

	if s.Result.Error != "Failed to execute notebook" {
		t.Errorf("error = %q, want synthetic failure", s.Result.Error)
	}
	if s.Result.Success || s.Result.Output != "" {
		t.Errorf("result = %+v, want synthetic failure", s.Result)
	}

	gen = s.Begin()
	s.Complete(gen, backend.ActionResult{Success: false, Error: "boom"}, nil)
	if s.Result.Error != "boom" {
		t.Errorf("error = %q, want backend error", s.Result.Error)
	}
}

func TestActionSlotDropsStaleCompletion(t *testing.T) {
	s := NewActionSlot(backend.Notebook2)
	first := s.Begin()
	second := s.Begin()

	if s.Complete(first, backend.ActionResult{Success: true, Output: "first"}, nil) {
		t.Error("stale completion should not apply")
	}
	if !s.Loading {
		t.Error("slot should still be loading for the second run")
	}

	if !s.Complete(second, backend.ActionResult{Success: true, Output: "second"}, nil) {
		t.Fatal("latest completion should apply")
	}
	if s.Result.Output != "second" {
		t.Errorf("output = %q, want %q", s.Result.Output, "second")
	}

	if s.Complete(first, backend.ActionResult{Output: "late"}, nil) {
		t.Error("late stale completion should not apply")
	}
	if s.Result.Output != "second" {
		t.Errorf("output = %q after stale completion", s.Result.Output)
	}
}

func TestRenderText(t *testing.T) {
	cases := []struct {
		result backend.ActionResult
		want   string
	}{
		{backend.ActionResult{Success: true, Output: "42"}, "42"},
		{backend.ActionResult{Success: false, Error: "boom"}, "boom"},
		{backend.ActionResult{Success: false, Output: "partial", Error: "boom"}, "boom"},
		{backend.ActionResult{Success: true, Output: ""}, "No output"},
	}
	for _, tc := range cases {
		if got := RenderText(tc.result); got != tc.want {
			t.Errorf("RenderText(%+v) = %q, want %q", tc.result, got, tc.want)
		}
	}
}

func TestStatusLine(t *testing.T) {
	if got := StatusLine(backend.ActionResult{Success: true}); got != "Execution completed successfully" {
		t.Errorf("success status = %q", got)
	}
	if got := StatusLine(backend.ActionResult{}); got != "Execution failed" {
		t.Errorf("failure status = %q", got)
	}
}
