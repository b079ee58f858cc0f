package registry

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/syscfg/syscfg/pkg/syserr"
)

// NewSSHKeyFromFile builds an SSH key entry from a public key file,
// computing the SHA256 fingerprint from the key material. Only the public
// half is ever read; pointing this at a private key file is rejected.
func NewSSHKeyFromFile(scope Scope, id, pubPath string) (SSHKey, error) {
	data, err := os.ReadFile(pubPath)
	if err != nil {
		if os.IsNotExist(err) {
			return SSHKey{}, syserr.NotFound("public key file does not exist", pubPath)
		}
		return SSHKey{}, fmt.Errorf("read public key %s: %w", pubPath, err)
	}
	if strings.Contains(string(data), "PRIVATE KEY") {
		return SSHKey{}, syserr.Parse("refusing to register private key material",
			fmt.Errorf("%s looks like a private key", pubPath))
	}

	pub, comment, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return SSHKey{}, syserr.Parse("unparseable public key", err)
	}

	return SSHKey{
		Scope:       scope,
		ID:          id,
		Fingerprint: ssh.FingerprintSHA256(pub),
		Path:        pubPath,
		Comment:     comment,
	}, nil
}
