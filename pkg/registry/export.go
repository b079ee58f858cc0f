package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/syscfg/syscfg/pkg/fsutil"
)

// ExportReport describes what an export produced and what it deliberately
// left behind.
type ExportReport struct {
	// MetadataPath is the keys.yaml metadata document written into the
	// target directory.
	MetadataPath string `json:"metadata_path"`

	// PublicFiles are the public key files copied alongside the
	// metadata.
	PublicFiles []string `json:"public_files,omitempty"`

	// SecretPaths are the private key files the caller must transfer
	// out-of-band when secrets were requested. The export itself never
	// reads or copies them.
	SecretPaths []string `json:"secret_paths,omitempty"`
}

// Export writes the key metadata of a scope partition into targetDir for
// transfer to another host: a keys.yaml document plus copies of any public
// key files the entries point at.
//
// The registry never embeds secret material, so includeSecret only
// resolves which private key paths the caller has to move through a
// channel outside the registry; their bytes are never read here.
func (s *Store) Export(targetDir string, scope Scope, includeSecret bool) (*ExportReport, error) {
	doc, err := s.load(scope)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	out := &document{
		Meta:    meta{Hostname: s.hostname, Created: s.now().UTC(), Updated: s.now().UTC()},
		SSHKeys: doc.SSHKeys,
		GPGKeys: doc.GPGKeys,
	}
	out.sort()

	data, err := yaml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode export metadata: %w", err)
	}

	report := &ExportReport{
		MetadataPath: filepath.Join(targetDir, "keys.yaml"),
	}
	if err := fsutil.WriteFileAtomic(report.MetadataPath, data); err != nil {
		return nil, err
	}

	for _, key := range doc.SSHKeys {
		if key.Path == "" {
			continue
		}
		if copied, err := copyPublicFile(key.Path, targetDir); err == nil && copied != "" {
			report.PublicFiles = append(report.PublicFiles, copied)
		}
		if includeSecret {
			if secret := privateCounterpart(key.Path); secret != "" {
				report.SecretPaths = append(report.SecretPaths, secret)
			}
		}
	}
	return report, nil
}

// copyPublicFile copies a public key file into the export directory.
// Only files that look like public key material (.pub suffix) are copied;
// anything else is skipped rather than risk moving secret bytes.
func copyPublicFile(path, targetDir string) (string, error) {
	if !strings.HasSuffix(path, ".pub") {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(targetDir, filepath.Base(path))
	if err := fsutil.WriteFileAtomic(dst, data); err != nil {
		return "", err
	}
	return dst, nil
}

// privateCounterpart resolves the conventional private key path for a
// public key file, if it exists on disk.
func privateCounterpart(pubPath string) string {
	secret := strings.TrimSuffix(pubPath, ".pub")
	if secret == pubPath {
		return ""
	}
	if _, err := os.Stat(secret); err != nil {
		return ""
	}
	return secret
}
