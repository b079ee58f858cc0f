// Package backend provides a uniform query/install interface over a host's
// native package manager. Exactly one backend is selected per host at
// startup; hosts without a supported package manager get no backend and
// reconciliation degrades to warned no-ops.
package backend

import (
	"context"
	"os/exec"
	"sort"
	"strings"

	"github.com/syscfg/syscfg/pkg/syserr"
)

// Kind identifies a package backend family.
type Kind string

const (
	KindApt    Kind = "apt"
	KindDnf    Kind = "dnf"
	KindPacman Kind = "pacman"
	KindBrew   Kind = "brew"

	// KindNone marks a host with no supported package manager.
	KindNone Kind = "none"
)

// Status is the per-package outcome of an install batch.
type Status string

const (
	// StatusInstalled means the package was installed by this batch.
	StatusInstalled Status = "installed"

	// StatusAlreadyPresent means the package database already reported
	// the package before the batch ran.
	StatusAlreadyPresent Status = "already_present"

	// StatusFailed means the install command failed. Failures never
	// abort the batch.
	StatusFailed Status = "failed"
)

// InstallResult is the outcome for a single package in an install batch.
type InstallResult struct {
	Name   string `json:"name"`
	Status Status `json:"status"`

	// Reason carries the failure cause when Status is StatusFailed.
	Reason string `json:"reason,omitempty"`
}

// Backend is the uniform contract over a host's package manager.
type Backend interface {
	// Kind returns the backend family.
	Kind() Kind

	// IsAvailable reports whether the backend tooling is usable.
	IsAvailable() bool

	// ListInstalled returns the sorted set of explicitly installed
	// package names. Fails with a backend-unavailable error when the
	// tooling is missing.
	ListInstalled(ctx context.Context) ([]string, error)

	// Install installs the named packages one command invocation per
	// package so every package gets its own result. Partial failures do
	// not abort the batch.
	Install(ctx context.Context, names []string) []InstallResult
}

// Runner executes package manager commands. The production runner shells
// out via os/exec; tests substitute a fake.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	Run(ctx context.Context, name string, args ...string) error
	LookPath(name string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Output runs a command and returns its stdout.
func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Run runs a command, discarding output.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

// LookPath resolves a binary on PATH.
func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Detect probes for a supported package manager and returns its backend.
// Probe order prefers native distribution managers over brew. A nil kind
// override selects by detection; passing an explicit kind skips probing.
func Detect(runner Runner, override Kind) (Backend, error) {
	if runner == nil {
		runner = ExecRunner{}
	}
	if override != "" && override != KindNone {
		b, ok := newFamily(override, runner)
		if !ok {
			return nil, syserr.NoBackend("unsupported backend kind: " + string(override))
		}
		return b, nil
	}
	for _, kind := range []Kind{KindDnf, KindApt, KindPacman, KindBrew} {
		b, _ := newFamily(kind, runner)
		if b.IsAvailable() {
			return b, nil
		}
	}
	return nil, syserr.NoBackend("no supported package manager found")
}

// family is a table-driven backend implementation. Each supported package
// manager differs only in its probe binary, list command, and install
// argument shape.
type family struct {
	kind       Kind
	probe      string
	listCmd    []string
	installCmd func(pkg string) []string
	runner     Runner
}

func newFamily(kind Kind, runner Runner) (*family, bool) {
	switch kind {
	case KindDnf:
		return &family{
			kind:    KindDnf,
			probe:   "dnf",
			listCmd: []string{"dnf", "repoquery", "--userinstalled", "--qf", "%{name}"},
			installCmd: func(pkg string) []string {
				return []string{"dnf", "install", "-y", pkg}
			},
			runner: runner,
		}, true
	case KindApt:
		return &family{
			kind:    KindApt,
			probe:   "apt-get",
			listCmd: []string{"apt-mark", "showmanual"},
			installCmd: func(pkg string) []string {
				return []string{"apt-get", "install", "-y", pkg}
			},
			runner: runner,
		}, true
	case KindPacman:
		return &family{
			kind:    KindPacman,
			probe:   "pacman",
			listCmd: []string{"pacman", "-Qqe"},
			installCmd: func(pkg string) []string {
				return []string{"pacman", "-S", "--noconfirm", "--needed", pkg}
			},
			runner: runner,
		}, true
	case KindBrew:
		return &family{
			kind:    KindBrew,
			probe:   "brew",
			listCmd: []string{"brew", "leaves"},
			installCmd: func(pkg string) []string {
				return []string{"brew", "install", pkg}
			},
			runner: runner,
		}, true
	default:
		return nil, false
	}
}

// Kind returns the backend family.
func (f *family) Kind() Kind { return f.kind }

// IsAvailable reports whether the probe binary resolves on PATH.
func (f *family) IsAvailable() bool {
	_, err := f.runner.LookPath(f.probe)
	return err == nil
}

// ListInstalled queries the native package database for explicitly
// installed packages.
func (f *family) ListInstalled(ctx context.Context) ([]string, error) {
	if !f.IsAvailable() {
		return nil, syserr.BackendUnavailable(f.probe+" not found on PATH", nil)
	}

	out, err := f.runner.Output(ctx, f.listCmd[0], f.listCmd[1:]...)
	if err != nil {
		return nil, syserr.BackendUnavailable("query "+string(f.kind)+" package database", err)
	}

	seen := make(map[string]struct{})
	var names []string
	for line := range strings.Lines(string(out)) {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Install installs each named package with its own command invocation and
// aggregates per-package results. Packages already present in the package
// database are reported as AlreadyPresent without running an install.
func (f *family) Install(ctx context.Context, names []string) []InstallResult {
	present := make(map[string]struct{})
	if installed, err := f.ListInstalled(ctx); err == nil {
		for _, name := range installed {
			present[name] = struct{}{}
		}
	}

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	results := make([]InstallResult, 0, len(sorted))
	for _, name := range sorted {
		if _, ok := present[name]; ok {
			results = append(results, InstallResult{Name: name, Status: StatusAlreadyPresent})
			continue
		}
		argv := f.installCmd(name)
		if err := f.runner.Run(ctx, argv[0], argv[1:]...); err != nil {
			results = append(results, InstallResult{
				Name:   name,
				Status: StatusFailed,
				Reason: syserr.InstallFailed(name, err).Error(),
			})
			continue
		}
		results = append(results, InstallResult{Name: name, Status: StatusInstalled})
	}
	return results
}
