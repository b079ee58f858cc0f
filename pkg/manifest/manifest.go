// Package manifest models the per-host declaration of packages that should
// be installed, persisted as one human-diffable YAML document per host.
package manifest

import (
	"sort"
	"time"

	"github.com/syscfg/syscfg/pkg/backend"
)

// Source tags where a manifest entry came from.
type Source string

const (
	// SourceSystem marks entries recorded from the live system by pull.
	SourceSystem Source = "system"

	// SourceManual marks entries curated by the operator. The merge pull
	// policy preserves these even when absent from the system.
	SourceManual Source = "manual"
)

// Entry declares a single package.
type Entry struct {
	// Name is the package name, unique within a manifest.
	Name string `yaml:"name" json:"name" validate:"required"`

	// Source is an optional origin tag (system or manual).
	Source Source `yaml:"source,omitempty" json:"source,omitempty" validate:"omitempty,oneof=system manual"`

	// Version is an optional version pin.
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
}

// Meta carries the manifest's host identity and bookkeeping.
type Meta struct {
	// Hostname is the host this manifest belongs to.
	Hostname string `yaml:"hostname" json:"hostname" validate:"required"`

	// Backend is the package backend family the entries were recorded
	// against.
	Backend backend.Kind `yaml:"backend,omitempty" json:"backend,omitempty"`

	// PulledAt is when pull last rewrote the entry set.
	PulledAt time.Time `yaml:"pulled_at,omitempty" json:"pulled_at,omitempty"`
}

// Manifest is the declared package set for exactly one host. Entries are a
// set keyed by name; serialization always sorts by name so documents diff
// reproducibly across hosts and runs.
type Manifest struct {
	Meta     Meta    `yaml:"meta" json:"meta"`
	Packages []Entry `yaml:"packages" json:"packages" validate:"dive"`
}

// New returns an empty manifest for a host. Used on first run when no
// document exists yet.
func New(host string, kind backend.Kind) *Manifest {
	return &Manifest{
		Meta:     Meta{Hostname: host, Backend: kind},
		Packages: []Entry{},
	}
}

// Names returns the sorted package names of the manifest.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Packages))
	for _, e := range m.Packages {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// Entry returns the entry for a package name, if declared.
func (m *Manifest) Entry(name string) (Entry, bool) {
	for _, e := range m.Packages {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Replace swaps the entry set for the given installed names, tagging every
// entry as system-sourced. Existing entries, including manual ones, are
// discarded. This is the replace pull policy.
func (m *Manifest) Replace(installed []string) {
	entries := make([]Entry, 0, len(installed))
	for _, name := range dedupe(installed) {
		entries = append(entries, Entry{Name: name, Source: SourceSystem})
	}
	m.Packages = entries
	m.sort()
}

// Merge unions the installed names into the entry set, preserving existing
// entries and their source tags. New names are tagged system-sourced.
// This is the merge pull policy.
func (m *Manifest) Merge(installed []string) {
	declared := make(map[string]struct{}, len(m.Packages))
	for _, e := range m.Packages {
		declared[e.Name] = struct{}{}
	}
	for _, name := range dedupe(installed) {
		if _, ok := declared[name]; ok {
			continue
		}
		m.Packages = append(m.Packages, Entry{Name: name, Source: SourceSystem})
	}
	m.sort()
}

func (m *Manifest) sort() {
	sort.Slice(m.Packages, func(i, j int) bool {
		return m.Packages[i].Name < m.Packages[j].Name
	})
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
