package vault

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/duskvault/vault/internal/cryptoutil"
)

const (
	// VaultIDSize is the length in bytes of a vault's random identifier.
	VaultIDSize = 16
	// FileIDSize is the length in bytes of a file's random identifier.
	FileIDSize = 16
	// ContentHashSize is the length in bytes of a SHA-256 content hash.
	ContentHashSize = 32

	productDirName = "ObsidianSecure"
)

// Config holds process-wide, vault-independent settings. Zero value is
// valid; Resolve fills in defaults.
type Config struct {
	// WorkspaceBaseDir is the parent directory under which per-session
	// workspace_<hex> directories are created. Empty selects the
	// platform's per-user local application data directory under
	// productDirName.
	WorkspaceBaseDir string

	// Cipher selects the AEAD used for newly written blobs. Vaults always
	// record their cipher in the blob header, so mixing ciphers across a
	// vault's lifetime is safe; the default is AES-256-GCM per the fixed
	// v1 wire format.
	Cipher cryptoutil.Alg

	// EditorPath is the executable LaunchEditor starts against a session's
	// workspace. Empty disables LaunchEditor.
	EditorPath string
}

// Resolve returns a copy of c with defaults applied.
func (c Config) Resolve() (Config, error) {
	out := c
	if out.Cipher == "" {
		out.Cipher = cryptoutil.AlgAESGCM
	}
	if out.WorkspaceBaseDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return Config{}, fmt.Errorf("vault: resolve default workspace directory: %w", err)
		}
		out.WorkspaceBaseDir = filepath.Join(base, productDirName)
	}
	return out, nil
}

// Progress reports the state of a long-running operation (create, unlock,
// lock) as a (Done, Total) count that increases monotonically within each
// Phase. Secure deletion reports no progress of its own.
type Progress struct {
	Done  int
	Total int
	Phase string
}

// ProgressFunc receives Progress snapshots. A nil ProgressFunc is valid and
// simply receives no callbacks.
type ProgressFunc func(Progress)

func report(cb ProgressFunc, phase string, done, total int) {
	if cb == nil {
		return
	}
	cb(Progress{Phase: phase, Done: done, Total: total})
}
