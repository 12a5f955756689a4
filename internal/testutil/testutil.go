// Package testutil provides filesystem fixtures shared by the cache tests.
package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meigma/compcache/internal/platform"
)

// Op names a FaultFS operation.
type Op string

// Operations that can be failed.
const (
	OpOpenFile   Op = "open"
	OpCreateTemp Op = "createtemp"
	OpReadFile   Op = "readfile"
	OpRename     Op = "rename"
	OpRemove     Op = "remove"
	OpStat       Op = "stat"
	OpReadDir    Op = "readdir"
	OpMkdir      Op = "mkdir"
	OpLock       Op = "lock"
	OpWrite      Op = "write"
	OpClose      Op = "close"
)

// Fault decides whether an operation on name fails.
// Returning nil lets the real operation run.
type Fault func(name string) error

// FaultFS wraps platform.OS and fails selected operations.
// It also counts calls per operation.
type FaultFS struct {
	platform.OS

	mu     sync.Mutex
	faults map[Op]Fault
	calls  map[Op]*atomic.Int64
}

// NewFaultFS returns a FaultFS with no faults installed.
func NewFaultFS() *FaultFS {
	return &FaultFS{
		faults: make(map[Op]Fault),
		calls:  make(map[Op]*atomic.Int64),
	}
}

// Fail installs a fault for op, replacing any previous one.
func (f *FaultFS) Fail(op Op, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[op] = fault
}

// FailAlways makes every call to op return err.
func (f *FaultFS) FailAlways(op Op, err error) {
	f.Fail(op, func(string) error { return err })
}

// Calls returns how many times op was invoked.
func (f *FaultFS) Calls(op Op) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.calls[op]; ok {
		return c.Load()
	}
	return 0
}

func (f *FaultFS) check(op Op, name string) error {
	f.mu.Lock()
	c, ok := f.calls[op]
	if !ok {
		c = new(atomic.Int64)
		f.calls[op] = c
	}
	fault := f.faults[op]
	f.mu.Unlock()

	c.Add(1)
	if fault == nil {
		return nil
	}
	return fault(name)
}

// OpenFile implements platform.FS.
func (f *FaultFS) OpenFile(name string, flag int, perm fs.FileMode) (platform.File, error) {
	if err := f.check(OpOpenFile, name); err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	file, err := f.OS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultFile{File: file, fs: f}, nil
}

// CreateTemp implements platform.FS.
func (f *FaultFS) CreateTemp(dir, pattern string) (platform.File, error) {
	if err := f.check(OpCreateTemp, dir); err != nil {
		return nil, &fs.PathError{Op: "createtemp", Path: dir, Err: err}
	}
	file, err := f.OS.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	return &faultFile{File: file, fs: f}, nil
}

// ReadFile implements platform.FS.
func (f *FaultFS) ReadFile(name string) ([]byte, error) {
	if err := f.check(OpReadFile, name); err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	return f.OS.ReadFile(name)
}

// Rename implements platform.FS.
func (f *FaultFS) Rename(oldpath, newpath string) error {
	if err := f.check(OpRename, newpath); err != nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: err}
	}
	return f.OS.Rename(oldpath, newpath)
}

// Remove implements platform.FS.
func (f *FaultFS) Remove(name string) error {
	if err := f.check(OpRemove, name); err != nil {
		return &fs.PathError{Op: "remove", Path: name, Err: err}
	}
	return f.OS.Remove(name)
}

// Stat implements platform.FS.
func (f *FaultFS) Stat(name string) (fs.FileInfo, error) {
	if err := f.check(OpStat, name); err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return f.OS.Stat(name)
}

// ReadDir implements platform.FS.
func (f *FaultFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if err := f.check(OpReadDir, name); err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	return f.OS.ReadDir(name)
}

// Mkdir implements platform.FS.
func (f *FaultFS) Mkdir(name string, perm fs.FileMode) error {
	if err := f.check(OpMkdir, name); err != nil {
		return &fs.PathError{Op: "mkdir", Path: name, Err: err}
	}
	return f.OS.Mkdir(name, perm)
}

// Lock implements platform.FS.
func (f *FaultFS) Lock(file platform.File) error {
	if err := f.check(OpLock, file.Name()); err != nil {
		return err
	}
	return f.OS.Lock(unwrap(file))
}

// Unlock implements platform.FS.
func (f *FaultFS) Unlock(file platform.File) error {
	return f.OS.Unlock(unwrap(file))
}

func unwrap(file platform.File) platform.File {
	if ff, ok := file.(*faultFile); ok {
		return ff.File
	}
	return file
}

type faultFile struct {
	platform.File
	fs *FaultFS
}

func (ff *faultFile) Write(p []byte) (int, error) {
	if err := ff.fs.check(OpWrite, ff.Name()); err != nil {
		return 0, err
	}
	return ff.File.Write(p)
}

func (ff *faultFile) WriteAt(p []byte, off int64) (int, error) {
	if err := ff.fs.check(OpWrite, ff.Name()); err != nil {
		return 0, err
	}
	return ff.File.WriteAt(p, off)
}

func (ff *faultFile) Close() error {
	closeErr := ff.File.Close()
	if err := ff.fs.check(OpClose, ff.Name()); err != nil {
		return err
	}
	return closeErr
}

// WriteEntry creates dir/name with size bytes and sets its access time.
// The modification time is set to the same instant.
func WriteEntry(t testing.TB, dir, name string, size int, atime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.Chtimes(path, atime, atime); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}
	return path
}

// Age returns a fixed instant n hours after a reference point in the past.
// Lower n means older.
func Age(n int) time.Time {
	return time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Hour)
}

// Exists reports whether path exists.
func Exists(t testing.TB, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	return err == nil
}
