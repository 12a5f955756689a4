// Package platform isolates the operating system calls used by the cache.
//
// The cache facade, size tracker, and eviction engine only talk to [FS], so
// tests can inject failures at any step and each target OS supplies its own
// locking and access-time extraction.
package platform

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"time"
)

// ErrUnsupportedFile is returned by [OS.Lock] and [OS.Unlock] when the file
// was not produced by the OS implementation.
var ErrUnsupportedFile = errors.New("platform: file does not carry an OS handle")

// ErrLockUnsupported is returned on targets without an exclusive file lock.
var ErrLockUnsupported = errors.New("platform: file locking not supported")

// File is the subset of *os.File the cache needs.
type File interface {
	io.Reader
	io.Writer
	io.ReaderAt
	io.WriterAt
	io.Closer
	Name() string
}

// FS is the filesystem surface shared by every cache component.
type FS interface {
	OpenFile(name string, flag int, perm fs.FileMode) (File, error)
	// CreateTemp creates a uniquely named file in dir, see os.CreateTemp.
	CreateTemp(dir, pattern string) (File, error)
	ReadFile(name string) ([]byte, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
	Stat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	Mkdir(name string, perm fs.FileMode) error
	MkdirAll(name string, perm fs.FileMode) error
	Chtimes(name string, atime, mtime time.Time) error

	// Lock blocks until an exclusive lock on the whole file is held.
	// The lock is shared by every process on the host.
	Lock(f File) error
	// Unlock releases a lock taken with Lock.
	Unlock(f File) error
}

// OS implements FS on top of the os package.
type OS struct{}

var _ FS = OS{}

// OpenFile implements FS.
func (OS) OpenFile(name string, flag int, perm fs.FileMode) (File, error) {
	f, err := os.OpenFile(name, flag, perm) //nolint:gosec // paths are built by the cache
	if err != nil {
		return nil, err
	}
	return f, nil
}

// CreateTemp implements FS.
func (OS) CreateTemp(dir, pattern string) (File, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ReadFile implements FS.
func (OS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name) //nolint:gosec // paths are built by the cache
}

// Rename implements FS.
func (OS) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

// Remove implements FS.
func (OS) Remove(name string) error {
	return os.Remove(name)
}

// Stat implements FS.
func (OS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

// ReadDir implements FS.
func (OS) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

// Mkdir implements FS.
func (OS) Mkdir(name string, perm fs.FileMode) error {
	return os.Mkdir(name, perm)
}

// MkdirAll implements FS.
func (OS) MkdirAll(name string, perm fs.FileMode) error {
	return os.MkdirAll(name, perm)
}

// Chtimes implements FS.
// A zero time leaves the corresponding timestamp unchanged.
func (OS) Chtimes(name string, atime, mtime time.Time) error {
	return os.Chtimes(name, atime, mtime)
}

// Lock implements FS.
func (OS) Lock(f File) error {
	of, ok := f.(*os.File)
	if !ok {
		return ErrUnsupportedFile
	}
	return lockFile(of)
}

// Unlock implements FS.
func (OS) Unlock(f File) error {
	of, ok := f.(*os.File)
	if !ok {
		return ErrUnsupportedFile
	}
	return unlockFile(of)
}

// AccessTime returns the last access time recorded for info.
// It falls back to the modification time when the platform data is missing.
func AccessTime(info fs.FileInfo) time.Time {
	if t, ok := accessTime(info); ok {
		return t
	}
	return info.ModTime()
}
