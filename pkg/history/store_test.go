package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

// TestRecordAndRecent tests insertion, ID assignment, and newest-first
// ordering.
func TestRecordAndRecent(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i, op := range []string{"pull", "status", "apply"} {
		run := &Run{
			Host:      "proxima",
			Op:        op,
			Backend:   "pacman",
			Outcome:   OutcomeClean,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Record(ctx, run); err != nil {
			t.Fatalf("record %s failed: %v", op, err)
		}
		if run.ID == "" {
			t.Fatal("record did not assign an ID")
		}
	}

	runs, err := store.Recent(ctx, "proxima", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].Op != "apply" || runs[2].Op != "pull" {
		t.Errorf("runs not newest-first: %s, %s, %s", runs[0].Op, runs[1].Op, runs[2].Op)
	}
}

// TestRecentFiltersAndLimits tests the host filter and the limit.
func TestRecentFiltersAndLimits(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i, host := range []string{"proxima", "proxima", "hpc-login"} {
		run := &Run{Host: host, Op: "status", Outcome: OutcomeDrift, Missing: 2, StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.Record(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.Recent(ctx, "proxima", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Host != "proxima" || runs[0].Missing != 2 {
		t.Errorf("unexpected result: %+v", runs)
	}

	all, err := store.Recent(ctx, "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected all hosts, got %d runs", len(all))
	}
}

// TestReopenPersists tests that runs survive close and reopen.
func TestReopenPersists(t *testing.T) {
	store, path := openTestStore(t)
	ctx := context.Background()

	run := &Run{Host: "proxima", Op: "apply", Outcome: OutcomeFailed, Failed: 1, StartedAt: time.Now().UTC()}
	if err := store.Record(ctx, run); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	runs, err := reopened.Recent(ctx, "proxima", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != run.ID || runs[0].Outcome != OutcomeFailed {
		t.Errorf("persisted run mismatch: %+v", runs)
	}
}
