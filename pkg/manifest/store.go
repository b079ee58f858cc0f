package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/syscfg/syscfg/pkg/fsutil"
	"github.com/syscfg/syscfg/pkg/syserr"
)

// Store loads and saves per-host manifest documents under a single
// directory. One YAML file per host: <dir>/<host>.yaml.
//
// The store supports a single in-process writer. Cross-invocation safety
// comes from an advisory file lock held across each load-mutate-save
// cycle; cross-host concurrent edits are resolved externally (git).
type Store struct {
	dir      string
	validate *validator.Validate
}

// NewStore creates a manifest store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{
		dir:      dir,
		validate: validator.New(),
	}
}

// Path returns the document path for a host.
func (s *Store) Path(host string) string {
	return filepath.Join(s.dir, host+".yaml")
}

// Load reads and validates the manifest for a host.
//
// A missing document is a not-found error; callers expecting first runs
// treat it as an empty manifest. A malformed document is a parse error and
// no partial state is returned.
func (s *Store) Load(host string) (*Manifest, error) {
	data, err := os.ReadFile(s.Path(host))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, syserr.NotFound("manifest does not exist", host)
		}
		return nil, fmt.Errorf("read manifest for %s: %w", host, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, syserr.Parse("malformed manifest document", err).WithOp("load")
	}
	if err := s.check(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save atomically rewrites the manifest document: the content is written
// to a temp file in the same directory and renamed over the target, so a
// crash mid-write never corrupts the previous valid document.
func (s *Store) Save(m *Manifest) error {
	if err := s.check(m); err != nil {
		return err
	}
	m.sort()

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest for %s: %w", m.Meta.Hostname, err)
	}
	return fsutil.WriteFileAtomic(s.Path(m.Meta.Hostname), data)
}

// Mutate runs fn on the manifest for host under the store's advisory file
// lock, persisting the result. A missing document starts fn from an empty
// manifest, so first-run pulls work without special casing.
func (s *Store) Mutate(host string, fn func(*Manifest) error) (*Manifest, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create manifest dir: %w", err)
	}

	lock := flock.New(s.Path(host) + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock manifest for %s: %w", host, err)
	}
	defer func() { _ = lock.Unlock() }()

	m, err := s.Load(host)
	if err != nil {
		if !syserr.IsNotFound(err) {
			return nil, err
		}
		m = New(host, "")
	}

	if err := fn(m); err != nil {
		return nil, err
	}
	if err := s.Save(m); err != nil {
		return nil, err
	}
	return m, nil
}

// check validates document structure and the unique-name invariant.
// Violations are parse errors: the document is not usable as a manifest.
func (s *Store) check(m *Manifest) error {
	if err := s.validate.Struct(m); err != nil {
		return syserr.Parse("invalid manifest document", err)
	}
	seen := make(map[string]struct{}, len(m.Packages))
	for _, e := range m.Packages {
		if _, dup := seen[e.Name]; dup {
			return syserr.Parse("invalid manifest document",
				fmt.Errorf("duplicate package entry %q", e.Name))
		}
		seen[e.Name] = struct{}{}
	}
	return nil
}
