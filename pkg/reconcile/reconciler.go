// Package reconcile drives the pull/status/apply cycle between a host's
// declared manifest and the live state of its package backend.
package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/syscfg/syscfg/pkg/backend"
	"github.com/syscfg/syscfg/pkg/drift"
	"github.com/syscfg/syscfg/pkg/manifest"
	"github.com/syscfg/syscfg/pkg/syserr"
)

// Policy selects how pull folds the installed set into the manifest.
type Policy string

const (
	// PolicyReplace rewrites the entry set from the installed set. This is
	// the default: the manifest mirrors the system after every pull.
	PolicyReplace Policy = "replace"

	// PolicyMerge unions the installed set into the manifest, preserving
	// existing entries including manually curated ones.
	PolicyMerge Policy = "merge"
)

// Reconciler binds one host's manifest store to its package backend. A nil
// backend marks a host with no supported package manager; every operation
// then degrades to a warned no-op instead of failing.
type Reconciler struct {
	store   *manifest.Store
	backend backend.Backend
	host    string
	logger  zerolog.Logger
	now     func() time.Time
}

// New creates a reconciler for host. backend may be nil.
func New(store *manifest.Store, b backend.Backend, host string, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		backend: b,
		host:    host,
		logger:  logger,
		now:     time.Now,
	}
}

// StatusReport is the outcome of a drift check.
type StatusReport struct {
	Host     string       `json:"host"`
	Backend  backend.Kind `json:"backend"`
	Degraded bool         `json:"degraded,omitempty"`
	Reason   string       `json:"reason,omitempty"`
	Drift    drift.Report `json:"drift"`
}

// PullReport is the outcome of recording system state into the manifest.
type PullReport struct {
	Host     string       `json:"host"`
	Backend  backend.Kind `json:"backend"`
	Policy   Policy       `json:"policy"`
	Count    int          `json:"count"`
	Path     string       `json:"path,omitempty"`
	Degraded bool         `json:"degraded,omitempty"`
	Reason   string       `json:"reason,omitempty"`
}

// ApplyReport is the outcome of installing missing packages.
type ApplyReport struct {
	Host     string                  `json:"host"`
	Backend  backend.Kind            `json:"backend"`
	DryRun   bool                    `json:"dry_run,omitempty"`
	Degraded bool                    `json:"degraded,omitempty"`
	Reason   string                  `json:"reason,omitempty"`
	Missing  []string                `json:"missing"`
	Results  []backend.InstallResult `json:"results,omitempty"`
}

// Failed counts per-package install failures in the report.
func (r ApplyReport) Failed() int { return r.count(backend.StatusFailed) }

// Installed counts packages this run actually installed.
func (r ApplyReport) Installed() int { return r.count(backend.StatusInstalled) }

func (r ApplyReport) count(status backend.Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Status compares the declared manifest against the installed set and
// reports the drift partition. A missing manifest reads as empty, so first
// runs report every installed package as extra rather than failing.
func (r *Reconciler) Status(ctx context.Context) (StatusReport, error) {
	report := StatusReport{Host: r.host, Backend: r.kind()}

	m, err := r.loadOrEmpty()
	if err != nil {
		return report, err
	}
	installed, err := r.listInstalled(ctx)
	if err != nil {
		if syserr.IsDegraded(err) {
			return report, r.degrade(&report.Degraded, &report.Reason, "status", err)
		}
		return report, err
	}

	report.Drift = drift.Diff(m.Names(), installed)
	r.logger.Debug().
		Str("host", r.host).
		Int("missing", len(report.Drift.Missing)).
		Int("extra", len(report.Drift.Extra)).
		Int("satisfied", len(report.Drift.Satisfied)).
		Msg("drift computed")
	return report, nil
}

// Pull records the installed set into the manifest under the given policy
// and stamps the pull metadata. An empty policy means replace.
func (r *Reconciler) Pull(ctx context.Context, policy Policy) (PullReport, error) {
	if policy == "" {
		policy = PolicyReplace
	}
	report := PullReport{Host: r.host, Backend: r.kind(), Policy: policy}

	installed, err := r.listInstalled(ctx)
	if err != nil {
		if syserr.IsDegraded(err) {
			return report, r.degrade(&report.Degraded, &report.Reason, "pull", err)
		}
		return report, err
	}

	m, err := r.store.Mutate(r.host, func(m *manifest.Manifest) error {
		m.Meta.Backend = r.kind()
		m.Meta.PulledAt = r.now().UTC()
		if policy == PolicyMerge {
			m.Merge(installed)
		} else {
			m.Replace(installed)
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	report.Count = len(m.Packages)
	report.Path = r.store.Path(r.host)
	r.logger.Info().
		Str("host", r.host).
		Str("policy", string(policy)).
		Int("packages", report.Count).
		Msg("manifest pulled")
	return report, nil
}

// Apply installs the packages the manifest declares but the system lacks.
// Extra packages are never removed, failures never abort the batch, and the
// manifest is never rewritten: an interrupted apply leaves the same missing
// set for the next run to pick up.
func (r *Reconciler) Apply(ctx context.Context, dryRun bool) (ApplyReport, error) {
	report := ApplyReport{Host: r.host, Backend: r.kind(), DryRun: dryRun, Missing: []string{}}

	m, err := r.loadOrEmpty()
	if err != nil {
		return report, err
	}
	installed, err := r.listInstalled(ctx)
	if err != nil {
		if syserr.IsDegraded(err) {
			return report, r.degrade(&report.Degraded, &report.Reason, "apply", err)
		}
		return report, err
	}

	report.Missing = drift.Diff(m.Names(), installed).Missing
	if dryRun || len(report.Missing) == 0 {
		return report, nil
	}

	report.Results = r.backend.Install(ctx, report.Missing)
	r.logger.Info().
		Str("host", r.host).
		Int("installed", report.Installed()).
		Int("failed", report.Failed()).
		Msg("apply finished")
	return report, nil
}

func (r *Reconciler) kind() backend.Kind {
	if r.backend == nil {
		return backend.KindNone
	}
	return r.backend.Kind()
}

func (r *Reconciler) loadOrEmpty() (*manifest.Manifest, error) {
	m, err := r.store.Load(r.host)
	if err != nil {
		if syserr.IsNotFound(err) {
			return manifest.New(r.host, r.kind()), nil
		}
		return nil, err
	}
	return m, nil
}

func (r *Reconciler) listInstalled(ctx context.Context) ([]string, error) {
	if r.backend == nil {
		return nil, syserr.NoBackend("no supported package manager on this host")
	}
	return r.backend.ListInstalled(ctx)
}

// degrade records a backend failure on the report and logs the warning. The
// operation itself succeeds as a no-op.
func (r *Reconciler) degrade(flag *bool, reason *string, op string, err error) error {
	*flag = true
	*reason = err.Error()
	r.logger.Warn().Str("host", r.host).Str("op", op).Err(err).
		Msg("backend unavailable, nothing to do")
	return nil
}
