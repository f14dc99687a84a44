package cleanup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/italolelis/channel_downloader/internal/logctx"
	"github.com/italolelis/channel_downloader/internal/media"
)

// SweepOrphans removes artifacts of partitionKey that have no recorded
// identifier. Such files are left behind when the process dies between
// download and persistence. Failures are logged and the sweep continues.
// It returns the number of removed files.
func SweepOrphans(ctx context.Context, dirs []string, partitionKey int64, known map[string]struct{}) int {
	logger := logctx.LoggerFromContext(ctx)
	prefix := strconv.FormatInt(partitionKey, 10) + "."
	visited := make(map[string]struct{}, len(dirs))

	var removed int

	for _, dir := range dirs {
		if _, ok := visited[dir]; ok {
			continue
		}

		visited[dir] = struct{}{}

		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}

			logger.Error("failed to list directory", "dir", dir, "err", err)

			continue
		}

		for _, entry := range entries {
			if !entry.Type().IsRegular() || !strings.HasPrefix(entry.Name(), prefix) {
				continue
			}

			if media.IsKnown(known, media.IdentifierFromPath(entry.Name())) {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Error("failed to delete orphaned file", "err", &media.CleanupError{Path: path, Err: err})

				continue
			}

			logger.Info("deleted orphaned file", "path", path)

			removed++
		}
	}

	return removed
}
