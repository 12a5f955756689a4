// Package atomicfile publishes files so readers never see partial content.
package atomicfile

import (
	"fmt"
	"io"

	"github.com/meigma/compcache/internal/platform"
)

// TempPrefix and TempPattern name the temporary files created next to
// their target.
const (
	TempPrefix  = ".compcache-"
	TempPattern = TempPrefix + "*.tmp"
)

// Write stores data at path by writing a temporary file in dir and renaming
// it into place. dir must be on the same filesystem as path.
//
// The temporary file is removed on every failure after it was created.
// A rename over an existing file replaces it.
func Write(fsys platform.FS, dir, path string, data []byte) (err error) {
	f, err := fsys.CreateTemp(dir, TempPattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			_ = f.Close()
		}
		_ = fsys.Remove(tmp)
	}()

	n, err := f.Write(data)
	if err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("write temp file: %w", io.ErrShortWrite)
	}

	closed = true
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := fsys.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
