// Package atomicio provides crash-safe file writes and best-effort secure
// deletion, the two I/O primitives the vault and session layers build on.
package atomicio

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFile writes data to target atomically: it writes to a temp file in
// the same directory, fsyncs the temp file, renames it over target, then
// fsyncs the directory. On any failure before the rename, the temp file is
// removed and target is left untouched.
func WriteFile(target string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("atomicio: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return fmt.Errorf("atomicio: chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("atomicio: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("atomicio: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("atomicio: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("atomicio: rename into place: %w", err)
	}

	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("atomicio: open directory for fsync: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("atomicio: fsync directory: %w", err)
	}
	return nil
}

const deletePassSize = 1 << 20 // 1 MiB scratch buffer for overwrite passes

// SecureDeleteFile overwrites path's full length three times (random,
// random, zero), fsyncing between passes, then unlinks it. Best-effort
// only: ineffective against copy-on-write filesystems and wear-leveled
// flash, which may retain the original sectors regardless.
func SecureDeleteFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &BusyError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("atomicio: stat %s: %w", path, err)
	}
	size := info.Size()

	buf := make([]byte, deletePassSize)
	for pass := 0; pass < 3; pass++ {
		if pass < 2 {
			if _, err := rand.Read(buf); err != nil {
				return fmt.Errorf("atomicio: fill random pass: %w", err)
			}
		} else {
			for i := range buf {
				buf[i] = 0
			}
		}
		if err := overwrite(f, buf, size); err != nil {
			return fmt.Errorf("atomicio: overwrite pass %d on %s: %w", pass+1, path, err)
		}
		if err := f.Sync(); err != nil {
			return fmt.Errorf("atomicio: fsync pass %d on %s: %w", pass+1, path, err)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("atomicio: close %s before unlink: %w", path, err)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("atomicio: unlink %s: %w", path, err)
	}
	return nil
}

func overwrite(f *os.File, pattern []byte, size int64) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var written int64
	for written < size {
		n := int64(len(pattern))
		if remaining := size - written; remaining < n {
			n = remaining
		}
		if _, err := f.Write(pattern[:n]); err != nil {
			return err
		}
		written += n
	}
	return nil
}

// BusyError reports that path could not be opened or removed because
// another process holds it open.
type BusyError struct {
	Path string
	Err  error
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("atomicio: %s is busy: %v", e.Path, e.Err)
}

func (e *BusyError) Unwrap() error { return e.Err }

// SecureDeleteDir recursively secure-deletes every regular file under root,
// then removes now-empty directories depth-first. If any file cannot be
// opened for overwrite, the walk stops and returns a *BusyError naming the
// offending path; root is left in place rather than partially removed.
func SecureDeleteDir(root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}

	// Check that every file can be opened for overwrite before touching any
	// of them, so a busy file fails the call with nothing deleted yet.
	if err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			return &BusyError{Path: path, Err: err}
		}
		return f.Close()
	}); err != nil {
		return err
	}

	var dirs []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		return SecureDeleteFile(path)
	})
	if err != nil {
		return err
	}

	// Remove directories deepest-first so parents are empty by the time we
	// reach them.
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Remove(dirs[i]); err != nil {
			return fmt.Errorf("atomicio: remove directory %s: %w", dirs[i], err)
		}
	}
	return nil
}
