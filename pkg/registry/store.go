package registry

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/syscfg/syscfg/pkg/fsutil"
	"github.com/syscfg/syscfg/pkg/syserr"
)

// Store persists registry entries as one YAML document per scope
// partition: <dir>/shared.yaml and <dir>/local.yaml. The shared partition
// is meant to be synchronized between hosts (externally, via git); the
// local partition stays on this machine.
//
// Every mutation is a load-mutate-save cycle under an advisory file lock,
// with the save done atomically via temp-file-then-rename.
type Store struct {
	dir      string
	hostname string
	validate *validator.Validate
	now      func() time.Time
}

// NewStore creates a registry store rooted at dir. The hostname is
// recorded in document metadata.
func NewStore(dir, hostname string) *Store {
	return &Store{
		dir:      dir,
		hostname: hostname,
		validate: validator.New(),
		now:      time.Now,
	}
}

// meta is the bookkeeping header of a partition document.
type meta struct {
	Hostname string    `yaml:"hostname,omitempty"`
	Created  time.Time `yaml:"created,omitempty"`
	Updated  time.Time `yaml:"updated,omitempty"`
}

// document is one scope partition on disk.
type document struct {
	Meta         meta     `yaml:"meta"`
	SSHKeys      []SSHKey `yaml:"ssh_keys,omitempty"`
	GPGKeys      []GPGKey `yaml:"gpg_keys,omitempty"`
	Environments []DevEnv `yaml:"environments,omitempty"`
}

// Path returns the document path for a scope partition.
func (s *Store) Path(scope Scope) string {
	return filepath.Join(s.dir, string(scope)+".yaml")
}

// Add inserts an entry. Adding an identity that already exists fails with
// a conflict unless overwrite is set, in which case the entry is replaced.
func (s *Store) Add(e Entry, overwrite bool) error {
	id := e.Identity()
	if err := s.checkEntry(e); err != nil {
		return err
	}
	return s.mutate(id.Scope, func(doc *document) error {
		if doc.contains(id) {
			if !overwrite {
				return syserr.Conflict("registry entry already exists", id.String())
			}
			doc.remove(id)
		}
		doc.insert(e)
		return nil
	})
}

// Remove deletes the entry with the given identity. Removal is immediate,
// not soft-deleted; an absent identity is a not-found error.
func (s *Store) Remove(kind Kind, scope Scope, id string) error {
	ident := Identity{Kind: kind, Scope: scope, ID: id}
	return s.mutate(scope, func(doc *document) error {
		if !doc.contains(ident) {
			return syserr.NotFound("registry entry does not exist", ident.String())
		}
		doc.remove(ident)
		return nil
	})
}

// List returns the entries matching the filter, sorted by
// (kind, scope, id).
func (s *Store) List(f Filter) ([]Entry, error) {
	var entries []Entry
	for _, scope := range []Scope{ScopeShared, ScopeLocal} {
		if f.Scope != "" && f.Scope != scope {
			continue
		}
		doc, err := s.load(scope)
		if err != nil {
			return nil, err
		}
		for _, e := range doc.entries() {
			if f.Matches(e.Identity()) {
				entries = append(entries, e)
			}
		}
	}
	sortEntries(entries)
	return entries, nil
}

// Entries returns a restartable, deterministically ordered sequence over
// the entries matching the filter. The sequence iterates a snapshot taken
// at call time.
func (s *Store) Entries(f Filter) (iter.Seq[Entry], error) {
	entries, err := s.List(f)
	if err != nil {
		return nil, err
	}
	return func(yield func(Entry) bool) {
		for _, e := range entries {
			if !yield(e) {
				return
			}
		}
	}, nil
}

// UpsertStats summarizes an environment upsert batch.
type UpsertStats struct {
	Added     int `json:"added"`
	Refreshed int `json:"refreshed"`
}

// UpsertEnvs merges a batch of discovered environments into the local
// partition in a single store update. Entries are keyed by path: a known
// path refreshes its type and last-used timestamp instead of duplicating.
func (s *Store) UpsertEnvs(envs []DevEnv) (UpsertStats, error) {
	var stats UpsertStats
	err := s.mutate(ScopeLocal, func(doc *document) error {
		byPath := make(map[string]int, len(doc.Environments))
		for i, env := range doc.Environments {
			byPath[env.Path] = i
		}
		for _, env := range envs {
			if env.LastUsed.IsZero() {
				env.LastUsed = s.now().UTC()
			}
			if i, ok := byPath[env.Path]; ok {
				doc.Environments[i].Type = env.Type
				doc.Environments[i].LastUsed = env.LastUsed
				stats.Refreshed++
				continue
			}
			byPath[env.Path] = len(doc.Environments)
			doc.Environments = append(doc.Environments, env)
			stats.Added++
		}
		return nil
	})
	return stats, err
}

// Touch refreshes the last-used timestamp of the environment registered
// at path.
func (s *Store) Touch(path string) error {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return s.mutate(ScopeLocal, func(doc *document) error {
		for i := range doc.Environments {
			if doc.Environments[i].Path == path {
				doc.Environments[i].LastUsed = s.now().UTC()
				return nil
			}
		}
		return syserr.NotFound("environment is not registered", path)
	})
}

// Summary counts entries per kind and scope for the status report.
type Summary struct {
	Hostname     string          `json:"hostname"`
	Updated      time.Time       `json:"updated,omitempty"`
	SSHKeys      map[Scope]int   `json:"ssh_keys"`
	GPGKeys      map[Scope]int   `json:"gpg_keys"`
	Environments map[EnvType]int `json:"environments"`
	Total        int             `json:"total"`
}

// Summarize builds the registry status summary across both partitions.
func (s *Store) Summarize() (*Summary, error) {
	sum := &Summary{
		Hostname:     s.hostname,
		SSHKeys:      make(map[Scope]int),
		GPGKeys:      make(map[Scope]int),
		Environments: make(map[EnvType]int),
	}
	for _, scope := range []Scope{ScopeShared, ScopeLocal} {
		doc, err := s.load(scope)
		if err != nil {
			return nil, err
		}
		sum.SSHKeys[scope] = len(doc.SSHKeys)
		sum.GPGKeys[scope] = len(doc.GPGKeys)
		for _, env := range doc.Environments {
			sum.Environments[env.Type]++
		}
		sum.Total += len(doc.SSHKeys) + len(doc.GPGKeys) + len(doc.Environments)
		if doc.Meta.Updated.After(sum.Updated) {
			sum.Updated = doc.Meta.Updated
		}
	}
	return sum, nil
}

// load reads a partition document. A missing file yields an empty
// document: the registry is created empty on first use. Malformed
// documents are fatal parse errors with no partial state.
func (s *Store) load(scope Scope) (*document, error) {
	data, err := os.ReadFile(s.Path(scope))
	if err != nil {
		if os.IsNotExist(err) {
			return &document{Meta: meta{Hostname: s.hostname}}, nil
		}
		return nil, fmt.Errorf("read %s registry: %w", scope, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, syserr.Parse("malformed registry document", err).WithOp("load")
	}

	// Scope is implied by the partition file, not serialized per entry.
	for i := range doc.SSHKeys {
		doc.SSHKeys[i].Scope = scope
	}
	for i := range doc.GPGKeys {
		doc.GPGKeys[i].Scope = scope
	}
	return &doc, nil
}

// mutate runs fn on a partition under its advisory file lock and persists
// the result atomically.
func (s *Store) mutate(scope Scope, fn func(*document) error) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}

	lock := flock.New(s.Path(scope) + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s registry: %w", scope, err)
	}
	defer func() { _ = lock.Unlock() }()

	doc, err := s.load(scope)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.save(scope, doc)
}

func (s *Store) save(scope Scope, doc *document) error {
	now := s.now().UTC()
	if doc.Meta.Created.IsZero() {
		doc.Meta.Created = now
	}
	doc.Meta.Updated = now
	if doc.Meta.Hostname == "" {
		doc.Meta.Hostname = s.hostname
	}
	doc.sort()

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s registry: %w", scope, err)
	}
	return fsutil.WriteFileAtomic(s.Path(scope), data)
}

func (s *Store) checkEntry(e Entry) error {
	if err := s.validate.Struct(e); err != nil {
		return syserr.Parse("invalid registry entry", err)
	}
	return nil
}

// entries flattens a document into the tagged union.
func (d *document) entries() []Entry {
	out := make([]Entry, 0, len(d.SSHKeys)+len(d.GPGKeys)+len(d.Environments))
	for _, k := range d.SSHKeys {
		out = append(out, k)
	}
	for _, k := range d.GPGKeys {
		out = append(out, k)
	}
	for _, e := range d.Environments {
		out = append(out, e)
	}
	return out
}

func (d *document) contains(id Identity) bool {
	for _, e := range d.entries() {
		if e.Identity() == id {
			return true
		}
	}
	return false
}

func (d *document) insert(e Entry) {
	switch v := e.(type) {
	case SSHKey:
		d.SSHKeys = append(d.SSHKeys, v)
	case GPGKey:
		d.GPGKeys = append(d.GPGKeys, v)
	case DevEnv:
		d.Environments = append(d.Environments, v)
	}
}

func (d *document) remove(id Identity) {
	switch id.Kind {
	case KindSSH:
		d.SSHKeys = slices.DeleteFunc(d.SSHKeys, func(k SSHKey) bool { return k.Identity() == id })
	case KindGPG:
		d.GPGKeys = slices.DeleteFunc(d.GPGKeys, func(k GPGKey) bool { return k.Identity() == id })
	case KindDevEnv:
		d.Environments = slices.DeleteFunc(d.Environments, func(e DevEnv) bool { return e.Identity() == id })
	}
}

func (d *document) sort() {
	sort.Slice(d.SSHKeys, func(i, j int) bool { return d.SSHKeys[i].ID < d.SSHKeys[j].ID })
	sort.Slice(d.GPGKeys, func(i, j int) bool { return d.GPGKeys[i].KeyID < d.GPGKeys[j].KeyID })
	sort.Slice(d.Environments, func(i, j int) bool { return d.Environments[i].Path < d.Environments[j].Path })
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Identity(), entries[j].Identity()
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Scope != b.Scope {
			return a.Scope < b.Scope
		}
		return a.ID < b.ID
	})
}
