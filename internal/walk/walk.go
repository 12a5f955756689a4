// Package walk enumerates cache entries below a directory.
package walk

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/meigma/compcache/internal/platform"
	"github.com/meigma/compcache/internal/sizing"
)

// Entry describes one regular file found by Walk.
type Entry struct {
	Path       string
	Size       uint64
	AccessTime time.Time
}

// Filter selects files by base name. A nil Filter accepts every file.
type Filter func(name string) bool

type frame struct {
	dir   string
	level int
}

// Walk lists regular files under root that match filter.
//
// Files directly in root are at level 0. Subdirectories are descended while
// their level is <= depth; deeper directories are skipped silently. Any
// ReadDir or Stat failure stops the walk and returns the entries collected so
// far together with the error.
func Walk(fsys platform.FS, root string, depth int, filter Filter) ([]Entry, error) {
	var entries []Entry
	stack := []frame{{dir: root}}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		dirents, err := fsys.ReadDir(cur.dir)
		if err != nil {
			return entries, fmt.Errorf("read dir %s: %w", cur.dir, err)
		}
		for _, d := range dirents {
			name := d.Name()
			if name == "." || name == ".." {
				continue
			}
			path := filepath.Join(cur.dir, name)
			switch {
			case d.IsDir():
				if cur.level < depth {
					stack = append(stack, frame{dir: path, level: cur.level + 1})
				}
			case d.Type().IsRegular():
				if filter != nil && !filter(name) {
					continue
				}
				info, err := fsys.Stat(path)
				if err != nil {
					return entries, fmt.Errorf("stat %s: %w", path, err)
				}
				entries = append(entries, Entry{
					Path:       path,
					Size:       sizing.FromInt64(info.Size()),
					AccessTime: platform.AccessTime(info),
				})
			}
		}
	}
	return entries, nil
}

// TotalSize sums the sizes of entries.
func TotalSize(entries []Entry) uint64 {
	var total uint64
	for _, e := range entries {
		total += e.Size
	}
	return total
}
