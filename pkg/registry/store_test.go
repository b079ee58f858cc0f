package registry

import (
	"testing"
	"time"

	"github.com/syscfg/syscfg/pkg/syserr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(t.TempDir(), "proxima")
	store.now = func() time.Time {
		return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	}
	return store
}

// TestAddConflictAndOverwrite tests the add/conflict/overwrite lifecycle:
// add succeeds, a second add with the same identity conflicts, and the
// overwrite flag replaces the first entry.
func TestAddConflictAndOverwrite(t *testing.T) {
	store := newTestStore(t)

	key := SSHKey{Scope: ScopeShared, ID: "github", Fingerprint: "SHA256:aaa"}
	if err := store.Add(key, false); err != nil {
		t.Fatalf("first add failed: %v", err)
	}

	key.Fingerprint = "SHA256:bbb"
	if err := store.Add(key, false); !syserr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}

	if err := store.Add(key, true); err != nil {
		t.Fatalf("overwrite add failed: %v", err)
	}

	entries, err := store.List(Filter{Kind: KindSSH})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if got := entries[0].(SSHKey).Fingerprint; got != "SHA256:bbb" {
		t.Errorf("overwrite did not replace entry: %s", got)
	}
}

// TestRemoveLifecycle tests remove/not-found and re-add after removal.
func TestRemoveLifecycle(t *testing.T) {
	store := newTestStore(t)

	key := SSHKey{Scope: ScopeShared, ID: "github"}
	if err := store.Add(key, false); err != nil {
		t.Fatal(err)
	}
	if err := store.Remove(KindSSH, ScopeShared, "github"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := store.Remove(KindSSH, ScopeShared, "github"); !syserr.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if err := store.Add(key, false); err != nil {
		t.Fatalf("re-add after remove failed: %v", err)
	}
}

// TestScopePartitionsAreIndependent tests that the same ID can live in
// both scopes and that partitions land in separate documents.
func TestScopePartitionsAreIndependent(t *testing.T) {
	store := newTestStore(t)

	if err := store.Add(GPGKey{Scope: ScopeShared, KeyID: "0xDEAD", Purpose: PurposeSigning}, false); err != nil {
		t.Fatal(err)
	}
	if err := store.Add(GPGKey{Scope: ScopeLocal, KeyID: "0xDEAD", Purpose: PurposeEncryption}, false); err != nil {
		t.Fatalf("same id in other scope must not conflict: %v", err)
	}

	shared, err := store.List(Filter{Scope: ScopeShared})
	if err != nil {
		t.Fatal(err)
	}
	if len(shared) != 1 {
		t.Errorf("expected one shared entry, got %d", len(shared))
	}
}

// TestEntriesDeterministicAndRestartable tests the entry sequence contract:
// sorted by (kind, scope, id) and yielding the same entries on each
// restart.
func TestEntriesDeterministicAndRestartable(t *testing.T) {
	store := newTestStore(t)

	for _, e := range []Entry{
		SSHKey{Scope: ScopeLocal, ID: "hpc"},
		SSHKey{Scope: ScopeShared, ID: "github"},
		GPGKey{Scope: ScopeShared, KeyID: "0xBEEF", Purpose: PurposeSigning},
		DevEnv{Path: "/home/u/projects/app", Type: EnvFlake},
	} {
		if err := store.Add(e, false); err != nil {
			t.Fatal(err)
		}
	}

	seq, err := store.Entries(Filter{})
	if err != nil {
		t.Fatal(err)
	}

	collect := func() []string {
		var ids []string
		for e := range seq {
			ids = append(ids, e.Identity().String())
		}
		return ids
	}

	want := []string{
		"devenv/local//home/u/projects/app",
		"gpg/shared/0xBEEF",
		"ssh/local/hpc",
		"ssh/shared/github",
	}
	first := collect()
	if len(first) != len(want) {
		t.Fatalf("got %v, want %v", first, want)
	}
	for i := range want {
		if first[i] != want[i] {
			t.Fatalf("got %v, want %v", first, want)
		}
	}

	// Restartable: a second range yields the same sequence.
	second := collect()
	for i := range first {
		if second[i] != first[i] {
			t.Fatalf("second iteration diverged: %v vs %v", second, first)
		}
	}
}

// TestUpsertEnvsIdempotent tests that a repeated batch refreshes entries
// instead of duplicating them.
func TestUpsertEnvsIdempotent(t *testing.T) {
	store := newTestStore(t)

	batch := []DevEnv{
		{Path: "/home/u/projects/app", Type: EnvFlake},
		{Path: "/home/u/work/svc", Type: EnvCompose},
	}

	stats, err := store.UpsertEnvs(batch)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Added != 2 || stats.Refreshed != 0 {
		t.Errorf("first batch: %+v", stats)
	}

	later := time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return later }

	stats, err = store.UpsertEnvs(batch)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Added != 0 || stats.Refreshed != 2 {
		t.Errorf("second batch: %+v", stats)
	}

	entries, err := store.List(Filter{Kind: KindDevEnv})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 environments, got %d", len(entries))
	}
	for _, e := range entries {
		if got := e.(DevEnv).LastUsed; !got.Equal(later) {
			t.Errorf("last_used not refreshed: %v", got)
		}
	}
}

// TestTouchUpdatesLastUsed tests the explicit last-used refresh.
func TestTouchUpdatesLastUsed(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.UpsertEnvs([]DevEnv{{Path: "/home/u/projects/app", Type: EnvVenv}}); err != nil {
		t.Fatal(err)
	}

	later := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return later }

	if err := store.Touch("/home/u/projects/app"); err != nil {
		t.Fatalf("touch failed: %v", err)
	}
	if err := store.Touch("/home/u/projects/ghost"); !syserr.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}

	entries, _ := store.List(Filter{Kind: KindDevEnv})
	if got := entries[0].(DevEnv).LastUsed; !got.Equal(later) {
		t.Errorf("touch did not refresh last_used: %v", got)
	}
}

// TestSummarize tests the status summary counts.
func TestSummarize(t *testing.T) {
	store := newTestStore(t)

	mustAdd := func(e Entry) {
		t.Helper()
		if err := store.Add(e, false); err != nil {
			t.Fatal(err)
		}
	}
	mustAdd(SSHKey{Scope: ScopeShared, ID: "github"})
	mustAdd(SSHKey{Scope: ScopeLocal, ID: "hpc"})
	mustAdd(GPGKey{Scope: ScopeShared, KeyID: "0xBEEF", Purpose: PurposeSigning})
	mustAdd(DevEnv{Path: "/home/u/projects/app", Type: EnvFlake})
	mustAdd(DevEnv{Path: "/home/u/projects/api", Type: EnvFlake})

	sum, err := store.Summarize()
	if err != nil {
		t.Fatal(err)
	}
	if sum.SSHKeys[ScopeShared] != 1 || sum.SSHKeys[ScopeLocal] != 1 {
		t.Errorf("ssh counts: %+v", sum.SSHKeys)
	}
	if sum.GPGKeys[ScopeShared] != 1 {
		t.Errorf("gpg counts: %+v", sum.GPGKeys)
	}
	if sum.Environments[EnvFlake] != 2 {
		t.Errorf("env counts: %+v", sum.Environments)
	}
	if sum.Total != 5 {
		t.Errorf("total: %d", sum.Total)
	}
}
