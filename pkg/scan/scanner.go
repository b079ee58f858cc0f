// Package scan discovers development-environment projects by walking
// configured root directories for marker files and classifying each hit.
package scan

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/syscfg/syscfg/pkg/registry"
)

// DefaultMaxDepth bounds the walk below each root so scanning a home
// directory cannot run away into deep trees.
const DefaultMaxDepth = 5

// markers maps marker files to environment types in precedence order:
// the first marker present in a directory decides its classification.
var markers = []struct {
	file string
	typ  registry.EnvType
}{
	{"devenv.nix", registry.EnvDevenv},
	{"flake.nix", registry.EnvFlake},
	{"shell.nix", registry.EnvNixShell},
	{".envrc", registry.EnvDirenv},
	{"docker-compose.yml", registry.EnvCompose},
	{"docker-compose.yaml", registry.EnvCompose},
	{"compose.yml", registry.EnvCompose},
	{"compose.yaml", registry.EnvCompose},
	{"Dockerfile", registry.EnvContainer},
	{"pyproject.toml", registry.EnvVenv},
}

// skipDirs are vendor and cache directories never worth descending into.
var skipDirs = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	"target":       {},
	"build":        {},
	"__pycache__":  {},
	"venv":         {},
	".venv":        {},
	".direnv":      {},
}

// Scanner walks root directories and classifies candidate projects.
type Scanner struct {
	maxDepth int
	logger   zerolog.Logger
}

// New creates a scanner with the given depth bound. Non-positive depths
// fall back to DefaultMaxDepth.
func New(maxDepth int, logger zerolog.Logger) *Scanner {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Scanner{maxDepth: maxDepth, logger: logger}
}

// Scan walks every root concurrently and returns the discovered
// environments, deduplicated by canonical absolute path and sorted by
// path. Walks are read-only; merging into the registry is the caller's
// single upsert batch. Missing roots are skipped with a debug log.
func (s *Scanner) Scan(ctx context.Context, roots []string) ([]registry.DevEnv, error) {
	results := make(chan registry.DevEnv)
	errs := make(chan error, len(roots))

	var wg sync.WaitGroup
	for _, root := range roots {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.walkRoot(ctx, root, results); err != nil {
				errs <- err
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
		close(errs)
	}()

	byPath := make(map[string]registry.DevEnv)
	for env := range results {
		if existing, ok := byPath[env.Path]; ok {
			// Same directory reachable from two roots: keep the higher
			// precedence classification.
			if rank(env.Type) < rank(existing.Type) {
				byPath[env.Path] = env
			}
			continue
		}
		byPath[env.Path] = env
	}
	if err := <-errs; err != nil {
		return nil, err
	}

	envs := make([]registry.DevEnv, 0, len(byPath))
	for _, env := range byPath {
		envs = append(envs, env)
	}
	sort.Slice(envs, func(i, j int) bool { return envs[i].Path < envs[j].Path })
	return envs, nil
}

// walkRoot performs one depth-bounded walk, emitting classified
// directories onto the results channel.
func (s *Scanner) walkRoot(ctx context.Context, root string, results chan<- registry.DevEnv) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		s.logger.Debug().Str("root", root).Msg("skipping missing scan root")
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			s.logger.Debug().Err(err).Str("path", path).Msg("skipping unreadable path")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.IsDir() {
			return nil
		}

		name := d.Name()
		if path != root {
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
		}
		if depth(root, path) > s.maxDepth {
			return fs.SkipDir
		}

		if typ, ok := classify(path); ok {
			env := registry.DevEnv{Path: canonicalize(path), Type: typ}
			select {
			case results <- env:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
}

// Classify reports the environment type of a single directory by its
// marker files, if any.
func Classify(dir string) (registry.EnvType, bool) {
	return classify(dir)
}

// classify checks a directory's marker files in precedence order.
func classify(dir string) (registry.EnvType, bool) {
	for _, m := range markers {
		if _, err := os.Stat(filepath.Join(dir, m.file)); err == nil {
			return m.typ, true
		}
	}
	return "", false
}

func rank(typ registry.EnvType) int {
	for i, m := range markers {
		if m.typ == typ {
			return i
		}
	}
	return len(markers)
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// canonicalize resolves a path to its absolute, symlink-free form so the
// same project reached through different roots deduplicates to one key.
func canonicalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	return path
}
