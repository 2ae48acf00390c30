package cryptoutil

import (
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Fixed v1 KDF parameters, per the format's single supported configuration.
// A future format version may make these per-vault rather than global.
const (
	SaltSize        = 16
	MasterKeySize   = 32
	ArgonMemoryKiB  = 64 * 1024
	ArgonIterations = 3
	ArgonParallel   = 4
)

// DeriveMasterKey runs Argon2id over password and salt with the fixed v1
// parameters, returning a 32-byte master key. salt must be exactly
// SaltSize bytes and password must be non-empty.
func DeriveMasterKey(password, salt []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, fmt.Errorf("cryptoutil: password must not be empty")
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("cryptoutil: salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	return argon2.IDKey(password, salt, ArgonIterations, ArgonMemoryKiB, ArgonParallel, MasterKeySize), nil
}
