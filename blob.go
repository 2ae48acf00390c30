package vault

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/duskvault/vault/internal/cryptoutil"
)

// blobHeader is the plaintext JSON header prefixed to every encrypted blob.
// Its exact serialized bytes are used as the AEAD's associated data, so any
// bit flip in the header (including field reordering by an attacker who
// tries to rebuild it) is caught by authentication rather than silently
// accepted.
type blobHeader struct {
	Version int            `json:"version"`
	Alg     cryptoutil.Alg `json:"alg"`
	Nonce   string         `json:"nonce"` // base64 of the 12-byte nonce

	// Salt is set only on the index blob: the vault's independently
	// generated Argon2id salt (spec.md §3), base64-encoded. It has to live
	// in plaintext somewhere readable before the index can be decrypted at
	// all, since deriving the master key to decrypt the index requires it
	// first. Putting it in the header rather than a second sidecar costs
	// nothing extra: the header is already read unencrypted ahead of the
	// AEAD call (see peekIndexSalt), and it is still bound into the
	// associated data like every other header field, so a tampered salt
	// fails authentication exactly like a tampered nonce or alg would
	// (spec.md Invariant 5). Empty for per-file blobs.
	Salt string `json:"salt,omitempty"`

	// IdentityTag is set only on the index blob: a SIV-MAC (see
	// identityTag) over the vault identifier, computed under a subkey of
	// the vault key. Because it is part of the header and the header is
	// the AEAD's associated data, a .vault_id sidecar swapped between two
	// vault directories is caught here, before the GCM tag check even
	// runs. Empty for per-file blobs.
	IdentityTag string `json:"identity_tag,omitempty"`
}

const blobVersion1 = 1

// sealBlob encrypts plaintext under key using alg, and returns the framed
// blob: a 4-byte little-endian header length, the header JSON, then the
// ciphertext with its trailing GCM/Poly1305 tag. salt and identityTag are
// nil for per-file blobs and set only when sealing the index.
func sealBlob(alg cryptoutil.Alg, key, plaintext, salt, identityTag []byte) ([]byte, error) {
	nonce, err := cryptoutil.NewNonce()
	if err != nil {
		return nil, fmt.Errorf("vault: generate blob nonce: %w", err)
	}
	engine, err := cryptoutil.NewEngine(alg, key)
	if err != nil {
		return nil, fmt.Errorf("vault: build cipher engine: %w", err)
	}

	hdr := blobHeader{
		Version: blobVersion1,
		Alg:     alg,
		Nonce:   base64.StdEncoding.EncodeToString(nonce),
	}
	if salt != nil {
		hdr.Salt = base64.StdEncoding.EncodeToString(salt)
	}
	if identityTag != nil {
		hdr.IdentityTag = base64.StdEncoding.EncodeToString(identityTag)
	}
	hdrJSON, err := json.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("vault: marshal blob header: %w", err)
	}

	ciphertext := engine.Seal(nonce, plaintext, hdrJSON)

	var lenPrefix [4]byte
	binary.LittleEndian.PutUint32(lenPrefix[:], uint32(len(hdrJSON)))

	out := make([]byte, 0, 4+len(hdrJSON)+len(ciphertext))
	out = append(out, lenPrefix[:]...)
	out = append(out, hdrJSON...)
	out = append(out, ciphertext...)
	return out, nil
}

// parseBlobHeader splits a framed blob into its decoded header, the raw
// header JSON bytes (the AEAD associated data), and the ciphertext. It does
// not touch any key material, so it is safe to call before any key has
// been derived — this is what lets peekIndexSalt recover the Argon2id salt
// needed to derive that very key.
func parseBlobHeader(blob []byte) (hdr blobHeader, hdrJSON, ciphertext []byte, err error) {
	if len(blob) < 4 {
		return blobHeader{}, nil, nil, fmt.Errorf("blob shorter than length prefix")
	}
	hdrLen := binary.LittleEndian.Uint32(blob[:4])
	rest := blob[4:]
	if uint64(hdrLen) > uint64(len(rest)) {
		return blobHeader{}, nil, nil, fmt.Errorf("blob header length exceeds blob size")
	}

	hdrJSON = rest[:hdrLen]
	ciphertext = rest[hdrLen:]
	if err := json.Unmarshal(hdrJSON, &hdr); err != nil {
		return blobHeader{}, nil, nil, fmt.Errorf("malformed blob header: %w", err)
	}
	return hdr, hdrJSON, ciphertext, nil
}

// peekIndexSalt extracts the plaintext Argon2id salt from an index blob's
// header without decrypting anything. Unlock calls this before it has any
// key material at all: the salt has to come from somewhere readable first,
// and the header is that somewhere (see blobHeader.Salt). A missing or
// malformed salt field collapses to the same KindDecryptFailure as any
// other corrupt header.
func peekIndexSalt(blob []byte) ([]byte, error) {
	hdr, _, _, err := parseBlobHeader(blob)
	if err != nil {
		return nil, decryptFailure("", err)
	}
	salt, err := base64.StdEncoding.DecodeString(hdr.Salt)
	if err != nil || len(salt) != cryptoutil.SaltSize {
		return nil, decryptFailure("", fmt.Errorf("missing or malformed index salt"))
	}
	return salt, nil
}

// openBlob reverses sealBlob. Any parse error, unsupported version, unknown
// algorithm, or authentication failure collapses to a single
// KindDecryptFailure error: a vault holder must not be able to distinguish
// "wrong password" from "corrupted ciphertext" from the error alone, since
// both require the same recovery action. When wantIdentityTag is non-nil
// (index blobs only), the header's embedded tag must match it exactly or
// decryption is refused before the AEAD is even invoked. A salt recorded in
// the header (index blobs only) needs no separate check here: it was
// already consumed by the caller to derive key, and because it is part of
// the associated data, a tampered salt simply fails the AEAD tag check
// below like any other tampered header field (spec.md Invariant 5).
func openBlob(key, blob, wantIdentityTag []byte) ([]byte, error) {
	hdr, hdrJSON, ciphertext, err := parseBlobHeader(blob)
	if err != nil {
		return nil, decryptFailure("", err)
	}
	if hdr.Version != blobVersion1 {
		return nil, decryptFailure("", fmt.Errorf("unsupported blob version %d", hdr.Version))
	}
	nonce, err := base64.StdEncoding.DecodeString(hdr.Nonce)
	if err != nil || len(nonce) != cryptoutil.NonceSize {
		return nil, decryptFailure("", fmt.Errorf("malformed blob nonce: %w", err))
	}

	if wantIdentityTag != nil {
		got, err := base64.StdEncoding.DecodeString(hdr.IdentityTag)
		if err != nil || subtle.ConstantTimeCompare(got, wantIdentityTag) != 1 {
			return nil, decryptFailure("", fmt.Errorf("vault identity mismatch"))
		}
	}

	engine, err := cryptoutil.NewEngine(hdr.Alg, key)
	if err != nil {
		return nil, decryptFailure("", fmt.Errorf("unsupported blob cipher: %w", err))
	}

	// Re-marshal is avoided: the associated data must be the exact bytes
	// that were signed, not a canonicalized re-encoding of the struct.
	plaintext, err := engine.Open(nonce, ciphertext, hdrJSON)
	if err != nil {
		return nil, decryptFailure("", fmt.Errorf("authentication failed: %w", err))
	}
	return plaintext, nil
}

// identityTag computes the deterministic SIV-MAC bound into the index
// blob's header: a subkey of vaultKey, domain-separated from the vault and
// file keys, applied over the raw vault identifier. See §4.11: this lets
// load() reject a `.vault_id` sidecar that has been swapped with another
// vault's before ever reaching AEAD verification.
func identityTag(vaultKey []byte, vaultID [VaultIDSize]byte) ([]byte, error) {
	sivKey, err := cryptoutil.DeriveSubkeyN(vaultKey, vaultID[:], cryptoutil.IdentityTagInfo, 64)
	if err != nil {
		return nil, fmt.Errorf("vault: derive identity tag key: %w", err)
	}
	defer cryptoutil.Zero(sivKey)
	tagger, err := cryptoutil.NewSIVTag(sivKey)
	if err != nil {
		return nil, fmt.Errorf("vault: build identity tag engine: %w", err)
	}
	return tagger.Tag(vaultID[:]), nil
}

// blobAlgOf returns the algorithm recorded in a blob's header without
// decrypting it.
func blobAlgOf(blob []byte) (cryptoutil.Alg, error) {
	hdr, _, _, err := parseBlobHeader(blob)
	if err != nil {
		return "", fmt.Errorf("vault: %w", err)
	}
	return hdr.Alg, nil
}
