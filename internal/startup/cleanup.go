// Package startup provides boot-time recovery tasks.
package startup

import (
	"log/slog"
	"strings"
	"time"

	"github.com/shtefko55/toolsy/internal/storage"
)

// CleanStorage removes files left behind by a previous run. The job
// registry is in-memory, so any upload, output or temp file present at
// boot belongs to no job and can never be delivered.
//
// Returns the number of files removed.
func CleanStorage(logger *slog.Logger, dirs *storage.Dirs) (int, error) {
	var removed int
	for _, sandbox := range []*storage.Sandbox{dirs.Uploads, dirs.Outputs, dirs.Temp} {
		n, err := cleanSandbox(logger, sandbox)
		removed += n
		if err != nil {
			return removed, err
		}
	}

	if removed > 0 {
		logger.Info("removed stale files from previous run",
			"removed", removed,
		)
	}
	return removed, nil
}

func cleanSandbox(logger *slog.Logger, sandbox *storage.Sandbox) (int, error) {
	entries, err := sandbox.List("")
	if err != nil {
		return 0, err
	}

	var removed int
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if err := sandbox.Remove(entry.Name()); err != nil {
			logger.Warn("failed to remove stale file",
				"dir", sandbox.BaseDir(),
				"name", entry.Name(),
				"error", err,
			)
			continue
		}

		logger.Debug("removed stale file",
			"dir", sandbox.BaseDir(),
			"name", entry.Name(),
			"age", time.Since(info.ModTime()).Round(time.Second),
		)
		removed++
	}

	return removed, nil
}
