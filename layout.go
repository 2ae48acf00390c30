package vault

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/duskvault/vault/internal/atomicio"
)

const (
	identityFileName = ".vault_id"
	indexFileName    = "index.enc"
	blobFileExt      = ".enc"
)

// VaultIdentifier is the random, non-secret 16-byte value that names a
// vault. It seeds the vault key derivation (as the HKDF salt) and is stored
// in plaintext in the .vault_id sidecar; apart from it, a vault exposes in
// plaintext only its blob headers (algorithm, nonce, and for the index the
// Argon2id salt and identity tag).
type VaultIdentifier [VaultIDSize]byte

func (id VaultIdentifier) String() string { return hex.EncodeToString(id[:]) }

// layout resolves the on-disk paths for one vault directory, centralizing
// path construction in one place rather than inlining filepath.Join calls
// throughout the package.
type layout struct {
	dir string
}

func newLayout(dir string) layout { return layout{dir: dir} }

func (l layout) identityPath() string { return filepath.Join(l.dir, identityFileName) }
func (l layout) indexPath() string    { return filepath.Join(l.dir, indexFileName) }

func (l layout) blobPath(fileID [FileIDSize]byte) string {
	return filepath.Join(l.dir, hex.EncodeToString(fileID[:])+blobFileExt)
}

// IsVault reports whether dir contains a readable, well-formed identity
// sidecar. It does not attempt decryption, so it cannot distinguish a
// genuine vault from one with a corrupted index.
func IsVault(dir string) bool {
	_, err := readIdentity(newLayout(dir))
	return err == nil
}

func readIdentity(l layout) (VaultIdentifier, error) {
	data, err := os.ReadFile(l.identityPath())
	if err != nil {
		if os.IsNotExist(err) {
			return VaultIdentifier{}, notAVault(l.dir)
		}
		return VaultIdentifier{}, ioFailure(l.identityPath(), err)
	}
	trimmed := strings.TrimSpace(string(data))
	raw, err := hex.DecodeString(trimmed)
	if err != nil || len(raw) != VaultIDSize {
		return VaultIdentifier{}, notAVault(l.dir)
	}
	var id VaultIdentifier
	copy(id[:], raw)
	return id, nil
}

func writeIdentity(l layout, id VaultIdentifier) error {
	contents := []byte(id.String() + "\n")
	if err := atomicio.WriteFile(l.identityPath(), contents, 0o600); err != nil {
		return ioFailure(l.identityPath(), err)
	}
	return nil
}

// dirIsEmpty reports whether dir exists and has no entries, or does not
// exist at all (Create is willing to create it).
func dirIsEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("vault: read directory %s: %w", dir, err)
	}
	return len(entries) == 0, nil
}
