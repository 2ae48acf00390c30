package vault

import (
	"encoding/json"
	"os"

	"github.com/duskvault/vault/internal/atomicio"
	"github.com/duskvault/vault/internal/cryptoutil"
	"github.com/duskvault/vault/internal/vaultindex"
)

// index is the plaintext content of index.enc: the folder/file tree that
// names every file and folder in the vault. The vault's Argon2id salt
// (spec.md §3) is not part of this plaintext; it lives in the surrounding
// blob's header instead (see blobHeader.Salt, peekIndexSalt), since it
// must be readable before the index ciphertext it accompanies can be
// decrypted at all.
type index struct {
	tree *vaultindex.Tree
}

func (idx *index) marshal() ([]byte, error) {
	return json.Marshal(idx.tree)
}

func unmarshalIndex(data []byte) (*index, error) {
	var tree vaultindex.Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return &index{tree: &tree}, nil
}

// saveIndex encrypts idx under vaultKey and writes it to dir/index.enc
// atomically. The blob's header carries the vault's Argon2id salt in
// plaintext (spec.md §3, §4.6) and binds an identity tag over vaultID, so a
// later load against a swapped .vault_id sidecar fails closed, and any
// tampering of the embedded salt is caught the same way: it is part of the
// header bytes the AEAD authenticates, so a flipped bit there breaks
// decryption exactly like a flipped bit anywhere else (Invariant 5). salt
// must be the same SaltSize bytes generated once at Create and is never
// allowed to change across the vault's lifetime.
func saveIndex(l layout, alg cryptoutil.Alg, vaultKey []byte, vaultID VaultIdentifier, salt []byte, idx *index) error {
	plaintext, err := idx.marshal()
	if err != nil {
		return ioFailure(l.indexPath(), err)
	}
	tag, err := identityTag(vaultKey, vaultID)
	if err != nil {
		return ioFailure(l.indexPath(), err)
	}
	blob, err := sealBlob(alg, vaultKey, plaintext, salt, tag)
	if err != nil {
		return ioFailure(l.indexPath(), err)
	}
	if err := atomicio.WriteFile(l.indexPath(), blob, 0o600); err != nil {
		return ioFailure(l.indexPath(), err)
	}
	return nil
}

// peekSalt reads dir/index.enc and extracts its plaintext Argon2id salt,
// without deriving or checking any key. Unlock calls this first: the salt
// has to be known before the master key that decrypts the very blob it
// lives in can be derived. A malformed header or salt is reported as
// KindInvalidPassword, like any other failure to decrypt the index.
func peekSalt(l layout) ([]byte, error) {
	blob, err := os.ReadFile(l.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notAVault(l.dir)
		}
		return nil, ioFailure(l.indexPath(), err)
	}
	salt, err := peekIndexSalt(blob)
	if err != nil {
		return nil, invalidPassword(err)
	}
	return salt, nil
}

// loadIndex reads and decrypts dir/index.enc under vaultKey, verifying it
// was last saved against the same vaultID recorded in the sidecar.
func loadIndex(l layout, vaultKey []byte, vaultID VaultIdentifier) (*index, error) {
	blob, err := os.ReadFile(l.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notAVault(l.dir)
		}
		return nil, ioFailure(l.indexPath(), err)
	}
	tag, err := identityTag(vaultKey, vaultID)
	if err != nil {
		return nil, ioFailure(l.indexPath(), err)
	}
	plaintext, err := openBlob(vaultKey, blob, tag)
	if err != nil {
		return nil, invalidPassword(err)
	}
	idx, err := unmarshalIndex(plaintext)
	if err != nil {
		return nil, invalidPassword(err)
	}
	return idx, nil
}
