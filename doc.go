// Package vault implements an encrypted note vault: password-based key
// derivation, a three-level key hierarchy, an authenticated per-file
// encryption format, an encrypted index that hides real filenames and
// folder structure, and the unlock/edit/lock session protocol that
// reconciles a plaintext workspace back into the encrypted vault.
//
// # Overview
//
// A vault is a directory holding a plaintext identity sidecar (.vault_id),
// one encrypted index blob (index.enc) describing folder structure and
// file names, and one encrypted ciphertext blob per file
// (<hex file id>.enc). Unlocking a vault decrypts the index and every
// referenced blob into a temporary plaintext workspace directory; locking
// diffs the workspace against the index, encrypts anything new or changed,
// updates the index, and securely deletes the workspace.
//
// # Key hierarchy
//
//	password --Argon2id(salt)--> master key
//	master key --HKDF(vault id)--> vault key
//	vault key --HKDF(file id)--> file key
//
// Every file is encrypted under its own key, derived deterministically from
// the vault key and the file's opaque identifier. Renaming a file changes
// only its entry in the index; the ciphertext on disk is untouched.
//
// # Basic usage
//
//	h, err := vault.Create(context.Background(), "./notes", "Notes", []byte("correct horse battery staple"), vault.Config{}, nil)
//	sess, err := h.Unlock(context.Background(), []byte("correct horse battery staple"), nil)
//	// external editor mutates sess.WorkspacePath() ...
//	err = sess.Lock(context.Background(), nil)
//
// # Security considerations
//
// Protected against: unauthorized reading of vault contents at rest,
// tampering with any ciphertext or the index (authenticated encryption),
// offline brute-force of the password (Argon2id).
//
// Not protected against: multi-user access, concurrent editors on the same
// vault, password recovery, an attacker who can read process memory while
// the vault is unlocked, or storage media that retains overwritten sectors
// (wear-leveled flash, copy-on-write filesystems); secure deletion is
// best-effort only.
package vault
