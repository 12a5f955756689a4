// Package evict removes the least recently used cache entries.
package evict

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/meigma/compcache/internal/platform"
	"github.com/meigma/compcache/internal/walk"
)

// Result summarizes one eviction pass.
type Result struct {
	// Freed is the total size of removed entries.
	Freed uint64
	// Removed lists the deleted paths, oldest first.
	Removed []string
	// Failed counts entries that could not be removed.
	Failed int
}

// Evict deletes entries under root in ascending access-time order until more
// than target bytes have been freed or no candidates remain.
//
// A walk failure aborts before anything is removed. Individual removal
// failures are logged and skipped.
func Evict(fsys platform.FS, root string, depth int, filter walk.Filter, target uint64, logger *slog.Logger) (Result, error) {
	var res Result
	entries, err := walk.Walk(fsys, root, depth, filter)
	if err != nil {
		return res, fmt.Errorf("list entries: %w", err)
	}

	slices.SortFunc(entries, func(a, b walk.Entry) int {
		if c := a.AccessTime.Compare(b.AccessTime); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})

	for _, e := range entries {
		if res.Freed > target {
			break
		}
		if err := fsys.Remove(e.Path); err != nil {
			res.Failed++
			logger.Warn("evict entry", slog.String("path", e.Path), slog.Any("error", err))
			continue
		}
		res.Freed += e.Size
		res.Removed = append(res.Removed, e.Path)
		logger.Debug("evicted entry",
			slog.String("path", e.Path),
			slog.Uint64("size", e.Size),
			slog.Time("atime", e.AccessTime))
	}
	return res, nil
}
