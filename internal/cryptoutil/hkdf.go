package cryptoutil

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Fixed domain-separation labels. No other key material may reuse these.
const (
	VaultKeyInfo    = "vault-key-v1"
	FileKeyInfo     = "file-key-v1"
	IdentityTagInfo = "vault-id-tag-v1"
)

// DeriveSubkey stretches parentKey into a 32-byte subkey via HKDF-SHA256,
// using saltCtx as the HKDF salt and info as the domain-separation label.
// Deterministic: the same (parentKey, saltCtx, info) always yields the same
// output.
func DeriveSubkey(parentKey, saltCtx []byte, info string) ([]byte, error) {
	return DeriveSubkeyN(parentKey, saltCtx, info, MasterKeySize)
}

// DeriveSubkeyN is DeriveSubkey with a caller-chosen output length, for
// subkeys (such as the SIV identity-tag key) that need more than 32 bytes.
func DeriveSubkeyN(parentKey, saltCtx []byte, info string, n int) ([]byte, error) {
	if len(parentKey) == 0 {
		return nil, fmt.Errorf("cryptoutil: parent key must not be empty")
	}
	r := hkdf.New(sha256.New, parentKey, saltCtx, []byte(info))
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("cryptoutil: hkdf expand: %w", err)
	}
	return out, nil
}

// DeriveVaultKey binds the master key to a vault identifier.
func DeriveVaultKey(masterKey, vaultID []byte) ([]byte, error) {
	return DeriveSubkey(masterKey, vaultID, VaultKeyInfo)
}

// DeriveFileKey binds the vault key to a file identifier.
func DeriveFileKey(vaultKey, fileID []byte) ([]byte, error) {
	return DeriveSubkey(vaultKey, fileID, FileKeyInfo)
}
