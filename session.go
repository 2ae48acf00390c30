package vault

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/duskvault/vault/internal/atomicio"
	"github.com/duskvault/vault/internal/cryptoutil"
	"github.com/duskvault/vault/internal/vaultindex"
)

// sessionState tracks the small state machine a Session moves through:
// Unlocked while the caller (typically an external editor) may read and
// write the workspace, Locking while reconciliation is in progress, and
// Idle once the workspace has been torn down.
type sessionState uint8

const (
	stateUnlocked sessionState = iota
	stateLocking
	stateIdle
)

// Session is a vault that has been unlocked into a plaintext workspace
// directory. Callers read and write files under WorkspacePath freely; Lock
// reconciles whatever is there back into the encrypted vault.
type Session struct {
	mu sync.Mutex

	handle  *Handle
	layout  layout
	vaultID VaultIdentifier

	// salt is the vault's Argon2id salt (spec.md §3), recorded once at
	// Create and re-read from the index blob's header at Unlock. It is not
	// secret, but it is immutable for the vault's lifetime, so every
	// Lock-triggered re-save of the index must re-embed this exact value.
	salt []byte

	vaultKey []byte
	idx      *index

	workspaceDir string
	baseline     map[string][32]byte // relative path -> content hash at unlock
	state        sessionState
}

func newSession(ctx context.Context, h *Handle, l layout, vaultID VaultIdentifier, salt, vaultKey []byte, idx *index, progress ProgressFunc) (*Session, error) {
	logPhase(h.dir, "session:materialize-start")
	workspaceDir, err := newWorkspaceDir(h.config.WorkspaceBaseDir)
	if err != nil {
		logError(h.dir, "session:materialize", err)
		return nil, err
	}

	sess := &Session{
		handle:       h,
		layout:       l,
		vaultID:      vaultID,
		salt:         salt,
		vaultKey:     vaultKey,
		idx:          idx,
		workspaceDir: workspaceDir,
		baseline:     make(map[string][32]byte),
		state:        stateUnlocked,
	}

	total := 0
	idx.tree.Walk(func(path string, n *vaultindex.Node) {
		if path != "" {
			total++
		}
	})
	done := 0
	var matErr error
	idx.tree.Walk(func(path string, n *vaultindex.Node) {
		if matErr != nil || path == "" {
			return
		}
		if ctx.Err() != nil {
			matErr = ctx.Err()
			return
		}
		full := filepath.Join(workspaceDir, path)
		if n.Kind == vaultindex.KindFolder {
			if err := os.MkdirAll(full, 0o700); err != nil {
				matErr = ioFailure(full, err)
			}
			done++
			report(progress, "unlock:materialize", done, total)
			return
		}

		if err := sess.materializeFile(full, n.ID); err != nil {
			matErr = err
			return
		}
		hash, err := hashFile(full)
		if err != nil {
			matErr = ioFailure(full, err)
			return
		}
		sess.baseline[path] = hash
		done++
		report(progress, "unlock:materialize", done, total)
	})
	if matErr != nil {
		logError(h.dir, "session:materialize", matErr)
		_ = atomicio.SecureDeleteDir(workspaceDir)
		return nil, matErr
	}

	logPhase(h.dir, "session:materialize-done")
	return sess, nil
}

func (s *Session) materializeFile(dest string, id vaultindex.FileID) error {
	fileKey, err := cryptoutil.DeriveFileKey(s.vaultKey, id[:])
	if err != nil {
		return fmt.Errorf("vault: derive file key: %w", err)
	}
	defer cryptoutil.Zero(fileKey)

	var raw [FileIDSize]byte
	copy(raw[:], id[:])
	blob, err := os.ReadFile(s.layout.blobPath(raw))
	if err != nil {
		return ioFailure(s.layout.blobPath(raw), err)
	}
	plaintext, err := openBlob(fileKey, blob, nil)
	if err != nil {
		return invalidPassword(err)
	}
	if err := atomicio.WriteFile(dest, plaintext, 0o600); err != nil {
		return ioFailure(dest, err)
	}
	return nil
}

// newWorkspaceDir creates a fresh workspace_<hex> directory under base.
func newWorkspaceDir(base string) (string, error) {
	if err := os.MkdirAll(base, 0o700); err != nil {
		return "", ioFailure(base, err)
	}
	suffix, err := cryptoutil.NewSalt(4)
	if err != nil {
		return "", fmt.Errorf("vault: generate workspace suffix: %w", err)
	}
	dir := filepath.Join(base, "workspace_"+hex.EncodeToString(suffix))
	if err := os.Mkdir(dir, 0o700); err != nil {
		return "", ioFailure(dir, err)
	}
	return dir, nil
}

// WorkspacePath returns the plaintext directory an external editor should
// point at. Valid only while IsUnlocked reports true.
func (s *Session) WorkspacePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workspaceDir
}

// IsUnlocked reports whether the workspace is currently live.
func (s *Session) IsUnlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateUnlocked
}

func hashFile(path string) ([32]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

// workspaceChange classifies one relative path during Lock's diff phase.
type workspaceChange struct {
	path string
	kind changeKind
	hash [32]byte // content hash on disk now (zero for changeDeleted)
}

type changeKind uint8

const (
	changeUnchanged changeKind = iota
	changeCreated
	changeModified
	changeDeleted
)

// countChanges counts how many entries in changes carry kind, for the
// created/modified/deleted/unchanged summary logged at the start of Lock's
// apply phase.
func countChanges(changes []workspaceChange, kind changeKind) int {
	n := 0
	for _, c := range changes {
		if c.kind == kind {
			n++
		}
	}
	return n
}

// scanWorkspace walks dir and returns the relative path and content hash of
// every regular file found (Lock's Phase A).
func scanWorkspace(dir string) (map[string][32]byte, error) {
	found := make(map[string][32]byte)
	err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		hash, err := hashFile(p)
		if err != nil {
			return err
		}
		found[rel] = hash
		return nil
	})
	if err != nil {
		return nil, ioFailure(dir, err)
	}
	return found, nil
}

// diffWorkspace compares the current workspace scan against the baseline
// taken at unlock and classifies every path.
func diffWorkspace(baseline, current map[string][32]byte) []workspaceChange {
	var changes []workspaceChange
	for path, hash := range current {
		old, existed := baseline[path]
		switch {
		case !existed:
			changes = append(changes, workspaceChange{path: path, kind: changeCreated, hash: hash})
		case old != hash:
			changes = append(changes, workspaceChange{path: path, kind: changeModified, hash: hash})
		default:
			changes = append(changes, workspaceChange{path: path, kind: changeUnchanged, hash: hash})
		}
	}
	for path := range baseline {
		if _, stillThere := current[path]; !stillThere {
			changes = append(changes, workspaceChange{path: path, kind: changeDeleted})
		}
	}
	return changes
}

// applyRenames pairs up created and deleted paths that carry the same
// content hash and treats each pair as a rename: the index entry moves to
// the new path under its existing FileID, and the ciphertext blob is never
// touched. This is what keeps a plain filesystem rename in the workspace
// from being reported, encrypted, and stored as an entirely new file.
// Remaining, unpaired created/deleted/modified entries are returned for
// the caller to process normally.
func applyRenames(tree *vaultindex.Tree, changes []workspaceChange) []workspaceChange {
	deletedByHash := make(map[[32]byte][]string)
	for _, c := range changes {
		if c.kind == changeDeleted {
			node, ok := tree.FindByPath(c.path)
			if ok && node.Kind == vaultindex.KindFile {
				deletedByHash[node.ContentHash] = append(deletedByHash[node.ContentHash], c.path)
			}
		}
	}

	renamedPaths := make(map[string]bool)
	var out []workspaceChange
	for _, c := range changes {
		if c.kind != changeCreated {
			out = append(out, c)
			continue
		}
		candidates := deletedByHash[c.hash]
		if len(candidates) == 0 {
			out = append(out, c)
			continue
		}
		oldPath := candidates[0]
		deletedByHash[c.hash] = candidates[1:]

		node, ok := tree.FindByPath(oldPath)
		if !ok {
			out = append(out, c)
			continue
		}
		id, contentHash := node.ID, node.ContentHash
		if _, err := tree.Remove(oldPath); err != nil {
			out = append(out, c)
			continue
		}
		parentPath, name := splitWorkspacePath(c.path)
		if _, err := tree.EnsureFolders(parentPath); err != nil {
			out = append(out, c)
			continue
		}
		if _, err := tree.AddFile(parentPath, name, id, contentHash); err != nil {
			out = append(out, c)
			continue
		}
		renamedPaths[oldPath] = true
	}

	var final []workspaceChange
	for _, c := range out {
		if c.kind == changeDeleted && renamedPaths[c.path] {
			continue
		}
		final = append(final, c)
	}
	return final
}

// Lock reconciles the workspace against the index: it hashes every file on
// disk, diffs that against the baseline recorded at unlock, then applies
// the changes in a fixed order (modified, then created, then deleted),
// saves the index, and finally securely deletes the workspace. That order
// means a crash between any two steps leaves the vault in a recoverable
// state: blobs for files no longer referenced by the index are orphaned
// but harmless, whereas an index referencing a missing blob would be
// corruption, so deletions never happen before the index that might still
// reference them is safely rewritten.
func (s *Session) Lock(ctx context.Context, progress ProgressFunc) error {
	s.mu.Lock()
	if s.state != stateUnlocked {
		s.mu.Unlock()
		return invalidState("session is not unlocked")
	}
	s.state = stateLocking
	workspaceDir := s.workspaceDir
	s.mu.Unlock()

	logPhase(s.layout.dir, "lock:start")

	current, err := scanWorkspace(workspaceDir)
	if err != nil {
		s.mu.Lock()
		s.state = stateUnlocked
		s.mu.Unlock()
		logError(s.layout.dir, "lock:scan", err)
		return err
	}
	changes := diffWorkspace(s.baseline, current)
	changes = applyRenames(s.idx.tree, changes)
	logChangeCounts(s.layout.dir, countChanges(changes, changeCreated), countChanges(changes, changeModified),
		countChanges(changes, changeDeleted), countChanges(changes, changeUnchanged))

	total := len(changes) + 1 // +1 for the index save
	done := 0
	report(progress, "lock", done, total)

	var orphaned []vaultindex.FileID

	// Cancellation is honored only up to here, before the first blob is
	// written; from this point the apply phase runs to completion or to its
	// first error.
	if ctx.Err() != nil {
		return s.abortLock(ctx.Err())
	}

	// Modified first: re-encrypt under the existing FileID, nothing in the
	// index's structure changes.
	for _, c := range changes {
		if c.kind != changeModified {
			continue
		}
		node, ok := s.idx.tree.FindByPath(c.path)
		if !ok || node.Kind != vaultindex.KindFile {
			return s.abortLock(invalidState(fmt.Sprintf("modified path %q has no matching index entry", c.path)))
		}
		hash := current[c.path]
		if err := s.rewriteFile(filepath.Join(workspaceDir, c.path), node.ID, hash); err != nil {
			return s.abortLock(err)
		}
		node.ContentHash = hash
		node.HasHash = true
		done++
		report(progress, "lock", done, total)
	}

	// Created next: allocate a fresh FileID and add it to the index tree.
	for _, c := range changes {
		if c.kind != changeCreated {
			continue
		}
		var id vaultindex.FileID
		raw := uuid.New()
		copy(id[:], raw[:])

		hash := current[c.path]
		if err := s.rewriteFile(filepath.Join(workspaceDir, c.path), id, hash); err != nil {
			return s.abortLock(err)
		}

		parentPath, name := splitWorkspacePath(c.path)
		if _, err := s.idx.tree.EnsureFolders(parentPath); err != nil {
			return s.abortLock(fmt.Errorf("vault: ensure parent folders for %q: %w", c.path, err))
		}
		if _, err := s.idx.tree.AddFile(parentPath, name, id, hash); err != nil {
			return s.abortLock(fmt.Errorf("vault: add new file %q to index: %w", c.path, err))
		}
		done++
		report(progress, "lock", done, total)
	}

	// Deleted last, before the index write: remove the index entry (and
	// collect the FileIDs that become unreferenced) but don't unlink the
	// ciphertext blob until after the index naming that removal has been
	// durably written.
	for _, c := range changes {
		if c.kind != changeDeleted {
			continue
		}
		removed, err := s.idx.tree.Remove(c.path)
		if err != nil {
			return s.abortLock(fmt.Errorf("vault: remove %q from index: %w", c.path, err))
		}
		orphaned = append(orphaned, removed...)
		done++
		report(progress, "lock", done, total)
	}

	if err := saveIndex(s.layout, s.handle.config.Cipher, s.vaultKey, s.vaultID, s.salt, s.idx); err != nil {
		return s.abortLock(err)
	}
	done++
	report(progress, "lock", done, total)

	for _, id := range orphaned {
		var raw [FileIDSize]byte
		copy(raw[:], id[:])
		if err := atomicio.SecureDeleteFile(s.layout.blobPath(raw)); err != nil {
			// Index is already durable and no longer references this
			// blob; a leftover ciphertext file is inert. Locking must
			// still succeed so the caller isn't stuck with a workspace
			// they can't get rid of.
			continue
		}
	}

	if err := atomicio.SecureDeleteDir(workspaceDir); err != nil {
		return s.abortLock(resourceBusy(workspaceDir, err))
	}

	s.mu.Lock()
	cryptoutil.Zero(s.vaultKey)
	s.state = stateIdle
	s.mu.Unlock()

	logPhase(s.layout.dir, "lock:done")
	return nil
}

func (s *Session) rewriteFile(path string, id vaultindex.FileID, hash [32]byte) error {
	fileKey, err := cryptoutil.DeriveFileKey(s.vaultKey, id[:])
	if err != nil {
		return fmt.Errorf("vault: derive file key: %w", err)
	}
	defer cryptoutil.Zero(fileKey)

	plaintext, err := os.ReadFile(path)
	if err != nil {
		return ioFailure(path, err)
	}
	blob, err := sealBlob(s.handle.config.Cipher, fileKey, plaintext, nil, nil)
	if err != nil {
		return ioFailure(path, err)
	}
	var raw [FileIDSize]byte
	copy(raw[:], id[:])
	if err := atomicio.WriteFile(s.layout.blobPath(raw), blob, 0o600); err != nil {
		return ioFailure(s.layout.blobPath(raw), err)
	}
	return nil
}

func (s *Session) abortLock(err error) error {
	s.mu.Lock()
	s.state = stateUnlocked
	s.mu.Unlock()
	logError(s.layout.dir, "lock", err)
	return err
}

func splitWorkspacePath(path string) (parent, name string) {
	parent, name = filepath.Split(path)
	parent = filepath.ToSlash(filepath.Clean(parent))
	if parent == "." {
		parent = ""
	}
	return parent, name
}

// LaunchEditor starts Config.EditorPath against the workspace directory
// and returns immediately without waiting for it to exit; the caller is
// expected to call Lock once the user is done, not to block on the
// editor's lifetime.
func (s *Session) LaunchEditor() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateUnlocked {
		return invalidState("session is not unlocked")
	}
	if s.handle.config.EditorPath == "" {
		return invalidInput("no editor configured")
	}
	cmd := exec.Command(s.handle.config.EditorPath, s.workspaceDir)
	if err := cmd.Start(); err != nil {
		return ioFailure(s.handle.config.EditorPath, err)
	}
	go cmd.Wait() // reap the child without blocking the caller
	return nil
}

// HintChanged is an advisory sink for an external file watcher to report
// that path may have changed. It does nothing: Lock always re-scans and
// re-hashes the whole workspace itself and never trusts or reads this hint.
// It exists only so a future watcher integration has somewhere to call
// into without that integration being load-bearing for correctness.
func (s *Session) HintChanged(path string) {}

// ForceUnlockDeleteWorkspace abandons reconciliation and securely deletes
// the workspace without writing any of its changes back to the vault. It
// exists for a caller that has decided the workspace is unrecoverable
// (e.g. the editor process died mid-edit and the user does not trust what
// is left on disk).
func (s *Session) ForceUnlockDeleteWorkspace() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateIdle {
		return nil
	}
	if err := atomicio.SecureDeleteDir(s.workspaceDir); err != nil {
		return resourceBusy(s.workspaceDir, err)
	}
	cryptoutil.Zero(s.vaultKey)
	s.state = stateIdle
	return nil
}
