// Package registry tracks security-sensitive and per-project metadata
// across hosts: SSH key references, GPG key references, and discovered
// development environments.
//
// The registry stores metadata only. Fingerprints, key IDs, and filesystem
// paths are recorded; private key material never enters a registry entry
// or document, which keeps the registry safe to synchronize between
// machines while secret material stays with external key tooling.
package registry

import (
	"fmt"
	"time"
)

// Kind tags the variant of a registry entry.
type Kind string

const (
	KindSSH    Kind = "ssh"
	KindGPG    Kind = "gpg"
	KindDevEnv Kind = "devenv"
)

// Scope partitions entries between all hosts and one machine.
type Scope string

const (
	// ScopeShared entries are synchronized across every host.
	ScopeShared Scope = "shared"

	// ScopeLocal entries stay machine-specific.
	ScopeLocal Scope = "local"
)

// Purpose describes what a GPG key is used for.
type Purpose string

const (
	PurposeSigning    Purpose = "signing"
	PurposeEncryption Purpose = "encryption"
)

// EnvType classifies a discovered development environment by its marker.
type EnvType string

const (
	EnvDevenv    EnvType = "devenv"
	EnvFlake     EnvType = "flake"
	EnvNixShell  EnvType = "nix-shell"
	EnvDirenv    EnvType = "direnv"
	EnvContainer EnvType = "container"
	EnvCompose   EnvType = "compose"
	EnvVenv      EnvType = "venv"
)

// Identity uniquely keys an entry within the registry.
type Identity struct {
	Kind  Kind   `json:"kind"`
	Scope Scope  `json:"scope"`
	ID    string `json:"id"`
}

// String renders the identity as kind/scope/id.
func (i Identity) String() string {
	return fmt.Sprintf("%s/%s/%s", i.Kind, i.Scope, i.ID)
}

// Entry is the tagged union over the three registry variants.
type Entry interface {
	// Identity returns the entry's unique key.
	Identity() Identity
}

// SSHKey references an SSH key pair by its public metadata.
type SSHKey struct {
	// Scope is shared or local.
	Scope Scope `yaml:"-" json:"scope" validate:"required,oneof=shared local"`

	// ID names the key, e.g. "github" or "hpc".
	ID string `yaml:"id" json:"id" validate:"required"`

	// Fingerprint is the SHA256 public key fingerprint.
	Fingerprint string `yaml:"fingerprint" json:"fingerprint"`

	// Path is the public key file on disk. The private counterpart is
	// never recorded.
	Path string `yaml:"path" json:"path"`

	// Comment is the key comment, usually user@host.
	Comment string `yaml:"comment,omitempty" json:"comment,omitempty"`
}

// Identity implements Entry.
func (k SSHKey) Identity() Identity {
	return Identity{Kind: KindSSH, Scope: k.Scope, ID: k.ID}
}

// GPGKey references a GPG key by ID.
type GPGKey struct {
	// Scope is shared or local.
	Scope Scope `yaml:"-" json:"scope" validate:"required,oneof=shared local"`

	// KeyID is the long-form GPG key ID.
	KeyID string `yaml:"key_id" json:"key_id" validate:"required"`

	// Purpose is signing or encryption.
	Purpose Purpose `yaml:"purpose" json:"purpose" validate:"required,oneof=signing encryption"`

	// Email is the identity associated with the key.
	Email string `yaml:"email,omitempty" json:"email,omitempty"`
}

// Identity implements Entry.
func (k GPGKey) Identity() Identity {
	return Identity{Kind: KindGPG, Scope: k.Scope, ID: k.KeyID}
}

// DevEnv references a discovered development environment project.
// Environments are always machine-local; their identity is the
// canonicalized project path.
type DevEnv struct {
	// Path is the canonical absolute project path.
	Path string `yaml:"path" json:"path" validate:"required"`

	// Type is the classified environment type.
	Type EnvType `yaml:"type" json:"type" validate:"required,oneof=devenv flake nix-shell direnv container compose venv"`

	// LastUsed is refreshed on rescans and explicit touches.
	LastUsed time.Time `yaml:"last_used,omitempty" json:"last_used,omitempty"`
}

// Identity implements Entry.
func (e DevEnv) Identity() Identity {
	return Identity{Kind: KindDevEnv, Scope: ScopeLocal, ID: e.Path}
}

// Filter selects entries by kind and scope. Zero values match everything.
type Filter struct {
	Kind  Kind
	Scope Scope
}

// Matches reports whether an identity passes the filter.
func (f Filter) Matches(id Identity) bool {
	if f.Kind != "" && id.Kind != f.Kind {
		return false
	}
	if f.Scope != "" && id.Scope != f.Scope {
		return false
	}
	return true
}
