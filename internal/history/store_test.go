package history

import (
	"context"
	"strings"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	runs := []Run{
		{Variant: VariantDispatch, Notebook: 1, StartedAt: now.Add(-3 * time.Second), FinishedAt: now.Add(-2 * time.Second), Status: StatusOK, Summary: "42"},
		{Variant: VariantDispatch, Notebook: 2, StartedAt: now.Add(-2 * time.Second), FinishedAt: now.Add(-time.Second), Status: StatusFailed, Summary: "boom"},
		{Variant: VariantSession, Notebook: 1, StartedAt: now.Add(-time.Second), FinishedAt: now, Status: StatusOK, Summary: "answer"},
	}
	for _, r := range runs {
		id, err := store.Record(ctx, r)
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		if id == "" {
			t.Error("Record should assign an id")
		}
	}

	got, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d runs, want 2", len(got))
	}
	if got[0].Summary != "answer" {
		t.Errorf("got[0].Summary = %q, want %q", got[0].Summary, "answer")
	}
	if got[0].Variant != VariantSession {
		t.Errorf("got[0].Variant = %q", got[0].Variant)
	}
	if got[1].Status != StatusFailed || got[1].Notebook != 2 {
		t.Errorf("got[1] = %+v", got[1])
	}
	if d := got[1].Duration(); d < 900*time.Millisecond || d > 1100*time.Millisecond {
		t.Errorf("duration = %v, want ~1s", d)
	}
}

func TestRecentEmpty(t *testing.T) {
	store := openTestStore(t)

	got, err := store.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d runs, want 0", len(got))
	}
}

func TestRecordKeepsGivenID(t *testing.T) {
	store := openTestStore(t)

	id, err := store.Record(context.Background(), Run{ID: "run-1", Variant: VariantDispatch, Notebook: 1, Status: StatusOK})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id != "run-1" {
		t.Errorf("id = %q, want run-1", id)
	}
}

func TestRecordClipsSummary(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	long := strings.Repeat("word ", 100)
	if _, err := store.Record(ctx, Run{Variant: VariantDispatch, Notebook: 1, Status: StatusOK, Summary: long}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, _ := store.Recent(ctx, 1)
	if n := len([]rune(got[0].Summary)); n != maxSummary {
		t.Errorf("summary length = %d, want %d", n, maxSummary)
	}
	if !strings.HasSuffix(got[0].Summary, "…") {
		t.Errorf("clipped summary should end with ellipsis: %q", got[0].Summary)
	}
}

func TestCounts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, s := range []Status{StatusOK, StatusOK, StatusTransportError} {
		store.Record(ctx, Run{Variant: VariantDispatch, Notebook: 1, Status: s})
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[StatusOK] != 2 {
		t.Errorf("ok = %d, want 2", counts[StatusOK])
	}
	if counts[StatusTransportError] != 1 {
		t.Errorf("transport_error = %d, want 1", counts[StatusTransportError])
	}
	if counts[StatusBackendError] != 0 {
		t.Errorf("backend_error = %d, want 0", counts[StatusBackendError])
	}
}

func TestStoresAreIsolated(t *testing.T) {
	a := openTestStore(t)
	b := openTestStore(t)

	a.Record(context.Background(), Run{Variant: VariantDispatch, Notebook: 1, Status: StatusOK})

	got, err := b.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("second store sees %d runs, want 0", len(got))
	}
}
