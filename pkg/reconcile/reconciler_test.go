package reconcile

import (
	"context"
	"os"
	"sort"
	"testing"

	"github.com/rs/zerolog"

	"github.com/syscfg/syscfg/pkg/backend"
	"github.com/syscfg/syscfg/pkg/manifest"
	"github.com/syscfg/syscfg/pkg/syserr"
)

// fakeBackend is an in-memory package manager.
type fakeBackend struct {
	kind      backend.Kind
	available bool
	installed []string
	failing   map[string]bool

	installCalls []string
}

func (f *fakeBackend) Kind() backend.Kind { return f.kind }

func (f *fakeBackend) IsAvailable() bool { return f.available }

func (f *fakeBackend) ListInstalled(ctx context.Context) ([]string, error) {
	if !f.available {
		return nil, syserr.BackendUnavailable("pacman not found on PATH", nil)
	}
	out := append([]string(nil), f.installed...)
	sort.Strings(out)
	return out, nil
}

func (f *fakeBackend) Install(ctx context.Context, names []string) []backend.InstallResult {
	results := make([]backend.InstallResult, 0, len(names))
	for _, name := range names {
		f.installCalls = append(f.installCalls, name)
		if f.failing[name] {
			results = append(results, backend.InstallResult{
				Name:   name,
				Status: backend.StatusFailed,
				Reason: "exit status 1",
			})
			continue
		}
		f.installed = append(f.installed, name)
		results = append(results, backend.InstallResult{Name: name, Status: backend.StatusInstalled})
	}
	return results
}

func newTestReconciler(t *testing.T, b backend.Backend) (*Reconciler, *manifest.Store) {
	t.Helper()
	store := manifest.NewStore(t.TempDir())
	return New(store, b, "proxima", zerolog.Nop()), store
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestStatusReportsDrift tests the drift partition against a declared
// manifest.
func TestStatusReportsDrift(t *testing.T) {
	fake := &fakeBackend{kind: backend.KindPacman, available: true, installed: []string{"git", "htop", "curl"}}
	r, store := newTestReconciler(t, fake)

	_, err := store.Mutate("proxima", func(m *manifest.Manifest) error {
		m.Replace([]string{"git", "ripgrep", "htop"})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	report, err := r.Status(context.Background())
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if report.Degraded {
		t.Fatal("unexpected degraded report")
	}
	if !equalStrings(report.Drift.Missing, []string{"ripgrep"}) {
		t.Errorf("missing: %v", report.Drift.Missing)
	}
	if !equalStrings(report.Drift.Extra, []string{"curl"}) {
		t.Errorf("extra: %v", report.Drift.Extra)
	}
	if !equalStrings(report.Drift.Satisfied, []string{"git", "htop"}) {
		t.Errorf("satisfied: %v", report.Drift.Satisfied)
	}
}

// TestStatusFirstRun tests that a missing manifest reads as empty: every
// installed package is extra, nothing is missing.
func TestStatusFirstRun(t *testing.T) {
	fake := &fakeBackend{kind: backend.KindApt, available: true, installed: []string{"git"}}
	r, _ := newTestReconciler(t, fake)

	report, err := r.Status(context.Background())
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if len(report.Drift.Missing) != 0 || !equalStrings(report.Drift.Extra, []string{"git"}) {
		t.Errorf("unexpected drift: %+v", report.Drift)
	}
}

// TestStatusDegradesWithoutBackend tests that a host with no backend gets a
// warned no-op, not an error.
func TestStatusDegradesWithoutBackend(t *testing.T) {
	r, _ := newTestReconciler(t, nil)

	report, err := r.Status(context.Background())
	if err != nil {
		t.Fatalf("expected degraded no-op, got %v", err)
	}
	if !report.Degraded || report.Reason == "" {
		t.Errorf("expected degraded report with reason, got %+v", report)
	}
	if report.Backend != backend.KindNone {
		t.Errorf("backend kind: %s", report.Backend)
	}
}

// TestPullReplaceIsDefault tests that pull with no policy rewrites the
// manifest from the installed set, discarding manual entries.
func TestPullReplaceIsDefault(t *testing.T) {
	fake := &fakeBackend{kind: backend.KindDnf, available: true, installed: []string{"git", "htop"}}
	r, store := newTestReconciler(t, fake)

	_, err := store.Mutate("proxima", func(m *manifest.Manifest) error {
		m.Packages = []manifest.Entry{{Name: "ripgrep", Source: manifest.SourceManual}}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	report, err := r.Pull(context.Background(), "")
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if report.Policy != PolicyReplace || report.Count != 2 {
		t.Errorf("unexpected report: %+v", report)
	}

	m, err := store.Load("proxima")
	if err != nil {
		t.Fatal(err)
	}
	if !equalStrings(m.Names(), []string{"git", "htop"}) {
		t.Errorf("replace did not rewrite entries: %v", m.Names())
	}
	if _, ok := m.Entry("ripgrep"); ok {
		t.Error("replace must discard manual entries")
	}
	if m.Meta.Backend != backend.KindDnf || m.Meta.PulledAt.IsZero() {
		t.Errorf("pull metadata not stamped: %+v", m.Meta)
	}
}

// TestPullMergePreservesManualEntries tests the merge policy.
func TestPullMergePreservesManualEntries(t *testing.T) {
	fake := &fakeBackend{kind: backend.KindDnf, available: true, installed: []string{"git"}}
	r, store := newTestReconciler(t, fake)

	_, err := store.Mutate("proxima", func(m *manifest.Manifest) error {
		m.Packages = []manifest.Entry{{Name: "ripgrep", Source: manifest.SourceManual}}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := r.Pull(context.Background(), PolicyMerge); err != nil {
		t.Fatalf("pull failed: %v", err)
	}

	m, err := store.Load("proxima")
	if err != nil {
		t.Fatal(err)
	}
	entry, ok := m.Entry("ripgrep")
	if !ok || entry.Source != manifest.SourceManual {
		t.Errorf("merge lost manual entry: %+v", m.Packages)
	}
	if _, ok := m.Entry("git"); !ok {
		t.Error("merge did not record installed package")
	}
}

// TestPullThenStatusInSync tests that a pull immediately followed by a
// status reports no drift.
func TestPullThenStatusInSync(t *testing.T) {
	fake := &fakeBackend{kind: backend.KindBrew, available: true, installed: []string{"git", "jq"}}
	r, _ := newTestReconciler(t, fake)

	if _, err := r.Pull(context.Background(), PolicyReplace); err != nil {
		t.Fatal(err)
	}
	report, err := r.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !report.Drift.InSync() {
		t.Errorf("expected in-sync after pull, got %+v", report.Drift)
	}
}

// TestApplyInstallsOnlyMissing tests that apply targets the missing set,
// leaves extras alone, and never rewrites the manifest.
func TestApplyInstallsOnlyMissing(t *testing.T) {
	fake := &fakeBackend{kind: backend.KindPacman, available: true, installed: []string{"git", "curl"}}
	r, store := newTestReconciler(t, fake)

	_, err := store.Mutate("proxima", func(m *manifest.Manifest) error {
		m.Replace([]string{"git", "ripgrep"})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	before, err := os.ReadFile(store.Path("proxima"))
	if err != nil {
		t.Fatal(err)
	}

	report, err := r.Apply(context.Background(), false)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !equalStrings(fake.installCalls, []string{"ripgrep"}) {
		t.Errorf("install calls: %v", fake.installCalls)
	}
	if report.Installed() != 1 || report.Failed() != 0 {
		t.Errorf("unexpected report: %+v", report)
	}

	after, err := os.ReadFile(store.Path("proxima"))
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("apply must not rewrite the manifest")
	}

	// Idempotent: a second apply finds nothing missing.
	report, err = r.Apply(context.Background(), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Missing) != 0 || len(report.Results) != 0 {
		t.Errorf("second apply not a no-op: %+v", report)
	}
}

// TestApplyDryRun tests that a dry run reports the missing set without
// invoking the backend.
func TestApplyDryRun(t *testing.T) {
	fake := &fakeBackend{kind: backend.KindPacman, available: true, installed: []string{"git"}}
	r, store := newTestReconciler(t, fake)

	_, err := store.Mutate("proxima", func(m *manifest.Manifest) error {
		m.Replace([]string{"git", "ripgrep", "htop"})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	report, err := r.Apply(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if !equalStrings(report.Missing, []string{"htop", "ripgrep"}) {
		t.Errorf("missing: %v", report.Missing)
	}
	if len(report.Results) != 0 || len(fake.installCalls) != 0 {
		t.Error("dry run must not install")
	}
}

// TestApplyAggregatesPartialFailures tests that one failed package does not
// abort the batch.
func TestApplyAggregatesPartialFailures(t *testing.T) {
	fake := &fakeBackend{
		kind:      backend.KindApt,
		available: true,
		failing:   map[string]bool{"ripgrep": true},
	}
	r, store := newTestReconciler(t, fake)

	_, err := store.Mutate("proxima", func(m *manifest.Manifest) error {
		m.Replace([]string{"git", "ripgrep"})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	report, err := r.Apply(context.Background(), false)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if report.Installed() != 1 || report.Failed() != 1 {
		t.Errorf("unexpected counts: %+v", report.Results)
	}
	for _, res := range report.Results {
		if res.Name == "ripgrep" && res.Reason == "" {
			t.Error("failed result missing reason")
		}
	}
}

// TestApplyDegradesWithoutBackend tests the warned no-op path.
func TestApplyDegradesWithoutBackend(t *testing.T) {
	r, _ := newTestReconciler(t, nil)

	report, err := r.Apply(context.Background(), false)
	if err != nil {
		t.Fatalf("expected degraded no-op, got %v", err)
	}
	if !report.Degraded || len(report.Results) != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
}
