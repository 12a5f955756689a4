// Package quota persists the running total of cached bytes.
//
// The total lives in an 8-byte file inside the cache directory. Holding the
// exclusive lock on that file is what serializes writers across processes.
package quota

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/meigma/compcache/internal/platform"
)

// FileName is the tracker file inside the cache directory.
const FileName = "config.file"

const recordSize = 8

// ScanFunc recomputes the directory total from scratch.
type ScanFunc func() (uint64, error)

// Tracker opens and locks the size file of one cache directory.
type Tracker struct {
	fs   platform.FS
	path string
	scan ScanFunc
}

// New returns a Tracker for dir. scan is called when the file is new or
// does not hold a full record.
func New(fsys platform.FS, dir string, scan ScanFunc) *Tracker {
	return &Tracker{fs: fsys, path: filepath.Join(dir, FileName), scan: scan}
}

// Path returns the location of the size file.
func (t *Tracker) Path() string { return t.path }

// Lock is a held exclusive lock on the size file.
type Lock struct {
	fs      platform.FS
	f       platform.File
	size    uint64
	rebuilt bool
}

// Acquire opens the size file, creating it if needed, and blocks until the
// exclusive lock is held. A freshly created or truncated file is seeded by
// scanning the directory and the result is written back before returning.
func (t *Tracker) Acquire() (*Lock, error) {
	f, err := t.open()
	if err != nil {
		return nil, err
	}
	if err := t.fs.Lock(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("lock %s: %w", t.path, err)
	}

	l := &Lock{fs: t.fs, f: f}
	var buf [recordSize]byte
	n, err := f.ReadAt(buf[:], 0)
	if err != nil && !errors.Is(err, io.EOF) {
		l.Release()
		return nil, fmt.Errorf("read %s: %w", t.path, err)
	}
	if n == recordSize {
		l.size = binary.NativeEndian.Uint64(buf[:])
		return l, nil
	}

	size, err := t.scan()
	if err != nil {
		l.Release()
		return nil, fmt.Errorf("scan cache directory: %w", err)
	}
	l.rebuilt = true
	if err := l.WriteSize(size); err != nil {
		l.Release()
		return nil, err
	}
	return l, nil
}

func (t *Tracker) open() (platform.File, error) {
	f, err := t.fs.OpenFile(t.path, os.O_RDWR, 0)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", t.path, err)
	}
	f, err = t.fs.OpenFile(t.path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("create %s: %w", t.path, err)
	}
	// Another process created it between the two opens.
	f, err = t.fs.OpenFile(t.path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", t.path, err)
	}
	return f, nil
}

// Size returns the total as of the last read or write.
func (l *Lock) Size() uint64 { return l.size }

// Rebuilt reports whether the total came from a directory scan.
func (l *Lock) Rebuilt() bool { return l.rebuilt }

// WriteSize stores n as the new total.
func (l *Lock) WriteSize(n uint64) error {
	var buf [recordSize]byte
	binary.NativeEndian.PutUint64(buf[:], n)
	if _, err := l.f.WriteAt(buf[:], 0); err != nil {
		return fmt.Errorf("write %s: %w", l.f.Name(), err)
	}
	l.size = n
	return nil
}

// Release unlocks and closes the size file. It is safe to call more than once.
func (l *Lock) Release() {
	if l.f == nil {
		return
	}
	_ = l.fs.Unlock(l.f)
	_ = l.f.Close()
	l.f = nil
}
