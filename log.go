package vault

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// logger is this package's structured logger. Every call site that logs
// must never pass a password, key, or file plaintext as a field; only
// paths, phase names, counts, and error values are safe.
var logger = zerolog.New(os.Stderr).With().Timestamp().Str("component", "vault").Logger()

// SetLogOutput redirects the package logger, for callers embedding this
// module in a larger service with its own structured log sink.
func SetLogOutput(w io.Writer) {
	logger = zerolog.New(w).With().Timestamp().Str("component", "vault").Logger()
}

func logPhase(dir, phase string) {
	logger.Info().Str("dir", dir).Str("phase", phase).Msg("vault phase transition")
}

func logChangeCounts(dir string, created, modified, deleted, unchanged int) {
	logger.Info().
		Str("dir", dir).
		Int("created", created).
		Int("modified", modified).
		Int("deleted", deleted).
		Int("unchanged", unchanged).
		Msg("workspace reconciliation classified")
}

func logError(dir, phase string, err error) {
	logger.Error().Str("dir", dir).Str("phase", phase).Err(err).Msg("vault operation failed")
}
