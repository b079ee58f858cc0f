// Package drift computes the difference between a host's declared package
// set and the live state reported by its package backend.
package drift

import "sort"

// Report partitions the union of the declared and installed sets.
//
// Missing and Satisfied together cover the declared set; Extra and
// Satisfied together cover the installed set. All three slices are
// lexicographically sorted so reports diff cleanly between runs.
type Report struct {
	// Missing are declared packages absent from the system. These are
	// the candidates for installation.
	Missing []string `json:"missing"`

	// Extra are installed packages not present in the manifest.
	// Informational only: packages are never removed automatically.
	Extra []string `json:"extra"`

	// Satisfied are packages both declared and installed.
	Satisfied []string `json:"satisfied"`
}

// InSync reports whether the declared set is fully installed. Extra
// packages do not count as drift.
func (r *Report) InSync() bool {
	return len(r.Missing) == 0
}

// Clean reports whether declared and installed sets are identical.
func (r *Report) Clean() bool {
	return len(r.Missing) == 0 && len(r.Extra) == 0
}

// Diff computes the drift report for a declared and an installed package
// set. Pure function: no I/O, duplicate input names collapse to one.
func Diff(declared, installed []string) Report {
	declaredSet := toSet(declared)
	installedSet := toSet(installed)

	report := Report{
		Missing:   []string{},
		Extra:     []string{},
		Satisfied: []string{},
	}

	for name := range declaredSet {
		if _, ok := installedSet[name]; ok {
			report.Satisfied = append(report.Satisfied, name)
		} else {
			report.Missing = append(report.Missing, name)
		}
	}
	for name := range installedSet {
		if _, ok := declaredSet[name]; !ok {
			report.Extra = append(report.Extra, name)
		}
	}

	sort.Strings(report.Missing)
	sort.Strings(report.Extra)
	sort.Strings(report.Satisfied)
	return report
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		set[name] = struct{}{}
	}
	return set
}
