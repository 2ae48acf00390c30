package vault

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/duskvault/vault/internal/atomicio"
	"github.com/duskvault/vault/internal/cryptoutil"
	"github.com/duskvault/vault/internal/vaultindex"
)

// Handle is a reference to a vault directory that has not been unlocked.
// It carries no key material; obtaining one never touches the password.
type Handle struct {
	dir    string
	config Config
}

// Dir returns the vault's root directory.
func (h *Handle) Dir() string { return h.dir }

// Open validates that dir holds a well-formed vault and returns a Handle
// to it. It does not decrypt anything.
func Open(dir string, cfg Config) (*Handle, error) {
	resolved, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	if _, err := readIdentity(newLayout(dir)); err != nil {
		return nil, err
	}
	return &Handle{dir: dir, config: resolved}, nil
}

// deriveKeys runs the full Argon2id-then-HKDF chain: salt (the vault's own,
// independently generated Argon2id salt, spec.md §3) derives the master
// key, and vaultID (the HKDF salt, a distinct role for the same kind of
// public, non-secret value) binds the master key to this vault to produce
// the vault key.
func deriveKeys(password, salt []byte, vaultID VaultIdentifier) (master, vaultKey []byte, err error) {
	master, err = cryptoutil.DeriveMasterKey(password, salt)
	if err != nil {
		return nil, nil, fmt.Errorf("vault: derive master key: %w", err)
	}
	vaultKey, err = cryptoutil.DeriveVaultKey(master, vaultID[:])
	if err != nil {
		cryptoutil.Zero(master)
		return nil, nil, fmt.Errorf("vault: derive vault key: %w", err)
	}
	return master, vaultKey, nil
}

// Create initializes a new, empty vault at dir. dir must not exist or must
// be empty. Create derives the master and vault keys from password, builds
// an empty index whose root folder is named name, encrypts and writes it,
// then writes the plaintext identity sidecar last so a reader can treat
// its presence as "vault fully created." A failure while writing the index
// or the sidecar securely deletes dir and everything in it.
func Create(ctx context.Context, dir, name string, password []byte, cfg Config, progress ProgressFunc) (*Handle, error) {
	resolved, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	if len(password) == 0 {
		return nil, invalidInput("password must not be empty")
	}
	if name == "" {
		return nil, invalidInput("vault name must not be empty")
	}

	empty, err := dirIsEmpty(dir)
	if err != nil {
		return nil, err
	}
	if !empty {
		return nil, exists(dir)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, ioFailure(dir, err)
	}

	logPhase(dir, "create:start")
	const totalSteps = 3
	report(progress, "create", 0, totalSteps)

	l := newLayout(dir)

	var vaultID VaultIdentifier
	rawID := uuid.New()
	copy(vaultID[:], rawID[:])

	salt, err := cryptoutil.NewSalt(cryptoutil.SaltSize)
	if err != nil {
		err = fmt.Errorf("vault: generate salt: %w", err)
		logError(dir, "create", err)
		return nil, err
	}

	master, vaultKey, err := deriveKeys(password, salt, vaultID)
	if err != nil {
		logError(dir, "create", err)
		return nil, err
	}
	defer cryptoutil.Zero(master)
	defer cryptoutil.Zero(vaultKey)
	report(progress, "create", 1, totalSteps)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	idx := &index{tree: vaultindex.NewTree(name)}
	if err := saveIndex(l, resolved.Cipher, vaultKey, vaultID, salt, idx); err != nil {
		cleanupPartialCreate(dir)
		logError(dir, "create", err)
		return nil, err
	}
	report(progress, "create", 2, totalSteps)

	if err := writeIdentity(l, vaultID); err != nil {
		cleanupPartialCreate(dir)
		logError(dir, "create", err)
		return nil, err
	}
	report(progress, "create", totalSteps, totalSteps)
	logPhase(dir, "create:done")

	return &Handle{dir: dir, config: resolved}, nil
}

// cleanupPartialCreate removes everything Create may have written before
// failing, so a retried Create sees an empty directory rather than a
// half-built vault.
func cleanupPartialCreate(dir string) {
	_ = atomicio.SecureDeleteDir(dir)
}

// Unlock derives the master and vault keys from password, decrypts the
// index, and materializes every file it references into a fresh plaintext
// workspace directory. Any decryption failure in this sequence, whether
// wrong password or a corrupted index or blob, is reported uniformly as
// ErrInvalidPassword; a caller cannot distinguish the two from the error
// alone.
func (h *Handle) Unlock(ctx context.Context, password []byte, progress ProgressFunc) (*Session, error) {
	if len(password) == 0 {
		return nil, invalidInput("password must not be empty")
	}
	l := newLayout(h.dir)
	logPhase(h.dir, "unlock:start")

	vaultID, err := readIdentity(l)
	if err != nil {
		logError(h.dir, "unlock", err)
		return nil, err
	}

	const totalSteps = 2
	report(progress, "unlock", 0, totalSteps)

	salt, err := peekSalt(l)
	if err != nil {
		logError(h.dir, "unlock", err)
		return nil, err
	}

	master, vaultKey, err := deriveKeys(password, salt, vaultID)
	if err != nil {
		logError(h.dir, "unlock", err)
		return nil, err
	}
	defer cryptoutil.Zero(master)

	idx, err := loadIndex(l, vaultKey, vaultID)
	if err != nil {
		cryptoutil.Zero(vaultKey)
		logError(h.dir, "unlock", err)
		return nil, err
	}
	report(progress, "unlock", 1, totalSteps)

	sess, err := newSession(ctx, h, l, vaultID, salt, vaultKey, idx, progress)
	if err != nil {
		cryptoutil.Zero(vaultKey)
		logError(h.dir, "unlock", err)
		return nil, err
	}
	report(progress, "unlock", totalSteps, totalSteps)
	logPhase(h.dir, "unlock:done")
	return sess, nil
}
