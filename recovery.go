package vault

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/duskvault/vault/internal/atomicio"
)

// ListLeftoverWorkspaces scans baseDir for workspace_* directories left
// behind by a process that unlocked a vault and never locked it again
// (crash, kill -9, power loss). It never deletes anything itself; callers
// decide what to do with what it finds.
func ListLeftoverWorkspaces(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, ioFailure(baseDir, err)
	}

	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if !strings.HasPrefix(e.Name(), "workspace_") {
			continue
		}
		out = append(out, filepath.Join(baseDir, e.Name()))
	}
	return out, nil
}

// CleanLeftoverWorkspaces securely deletes each path in paths. This is
// destructive and irreversible, so callers must only pass paths the user
// has explicitly agreed to discard; nothing in this package calls it
// automatically.
func CleanLeftoverWorkspaces(paths []string) error {
	for _, p := range paths {
		if err := atomicio.SecureDeleteDir(p); err != nil {
			return resourceBusy(p, err)
		}
	}
	return nil
}
