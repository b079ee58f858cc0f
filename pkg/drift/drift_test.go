package drift

import (
	"sort"
	"testing"

	"pgregory.net/rapid"
)

// TestDiffScenario tests the documented proxima scenario: declared
// {git, ripgrep, htop} against installed {git, htop, curl}.
func TestDiffScenario(t *testing.T) {
	declared := []string{"git", "ripgrep", "htop"}
	installed := []string{"git", "htop", "curl"}

	report := Diff(declared, installed)

	assertEqual(t, "missing", report.Missing, []string{"ripgrep"})
	assertEqual(t, "extra", report.Extra, []string{"curl"})
	assertEqual(t, "satisfied", report.Satisfied, []string{"git", "htop"})

	if report.InSync() {
		t.Error("expected drift with a missing package")
	}
	if report.Clean() {
		t.Error("expected unclean report with extra package")
	}
}

// TestDiffEmptySets tests diff behavior at the empty-set boundaries.
func TestDiffEmptySets(t *testing.T) {
	report := Diff(nil, nil)
	if !report.InSync() || !report.Clean() {
		t.Error("empty sets must be in sync and clean")
	}

	report = Diff([]string{"git"}, nil)
	assertEqual(t, "missing", report.Missing, []string{"git"})
	if report.InSync() {
		t.Error("declared-only set must report drift")
	}

	report = Diff(nil, []string{"curl"})
	assertEqual(t, "extra", report.Extra, []string{"curl"})
	if !report.InSync() {
		t.Error("extra packages alone are not drift")
	}
}

// TestDiffDeduplicates tests that duplicate and empty input names collapse.
func TestDiffDeduplicates(t *testing.T) {
	report := Diff([]string{"git", "git", ""}, []string{"git", "", "git"})
	assertEqual(t, "satisfied", report.Satisfied, []string{"git"})
	if !report.Clean() {
		t.Error("expected clean report")
	}
}

// TestDiffSortedOutput tests that every result slice is sorted regardless
// of input order.
func TestDiffSortedOutput(t *testing.T) {
	report := Diff(
		[]string{"zsh", "bat", "git", "fzf"},
		[]string{"tmux", "git", "curl", "bat"},
	)

	for name, set := range map[string][]string{
		"missing":   report.Missing,
		"extra":     report.Extra,
		"satisfied": report.Satisfied,
	} {
		if !sort.StringsAreSorted(set) {
			t.Errorf("%s not sorted: %v", name, set)
		}
	}
}

// TestDiffPartitionProperties verifies the set-algebra invariants for
// arbitrary finite inputs: missing ∪ satisfied = declared and
// extra ∪ satisfied = installed, with all three results disjoint.
func TestDiffPartitionProperties(t *testing.T) {
	gen := rapid.SliceOfN(rapid.StringMatching(`[a-z][a-z0-9-]{0,8}`), 0, 40)

	rapid.Check(t, func(t *rapid.T) {
		declared := gen.Draw(t, "declared")
		installed := gen.Draw(t, "installed")

		report := Diff(declared, installed)

		union := func(a, b []string) map[string]struct{} {
			set := make(map[string]struct{})
			for _, s := range a {
				set[s] = struct{}{}
			}
			for _, s := range b {
				set[s] = struct{}{}
			}
			return set
		}

		declaredSet := union(declared, nil)
		installedSet := union(installed, nil)

		if got := union(report.Missing, report.Satisfied); !sameSet(got, declaredSet) {
			t.Fatalf("missing ∪ satisfied != declared: %v vs %v", got, declaredSet)
		}
		if got := union(report.Extra, report.Satisfied); !sameSet(got, installedSet) {
			t.Fatalf("extra ∪ satisfied != installed: %v vs %v", got, installedSet)
		}
		for _, name := range report.Missing {
			if _, ok := installedSet[name]; ok {
				t.Fatalf("missing package %q is installed", name)
			}
		}
		for _, name := range report.Extra {
			if _, ok := declaredSet[name]; ok {
				t.Fatalf("extra package %q is declared", name)
			}
		}
	})
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func assertEqual(t *testing.T, name string, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %v, want %v", name, got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("%s: got %v, want %v", name, got, want)
		}
	}
}
