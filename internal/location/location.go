// Package location resolves the per-user default cache directory.
package location

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/meigma/compcache/internal/platform"
)

// DirName is the directory created under the user cache base.
const DirName = "neo_compiler_cache"

// Environment variables consulted by Resolve, in priority order.
const (
	EnvOverride = "NEO_CACHE_DIR"
	EnvXDG      = "XDG_CACHE_HOME"
	EnvHome     = "HOME"
)

// ErrNotFound is returned when no usable location exists.
var ErrNotFound = errors.New("location: no usable cache directory")

// LookupFunc reads an environment variable, see os.LookupEnv.
type LookupFunc func(key string) (string, bool)

const dirPerm = 0o750

// Resolve returns the cache directory to use.
//
// An explicit override must name an existing directory and is used as is.
// Otherwise DirName is created below $XDG_CACHE_HOME, or below $HOME/.cache
// when XDG_CACHE_HOME is unset. Each base must already exist. A directory
// that already exists is not an error. Empty variables count as unset.
func Resolve(fsys platform.FS, lookup LookupFunc) (string, error) {
	if dir, ok := value(lookup, EnvOverride); ok {
		if err := isDir(fsys, dir); err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrNotFound, EnvOverride, err)
		}
		return dir, nil
	}

	if base, ok := value(lookup, EnvXDG); ok {
		if err := isDir(fsys, base); err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrNotFound, EnvXDG, err)
		}
		dir := filepath.Join(base, DirName)
		if err := ensureDir(fsys, dir); err != nil {
			return "", fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return dir, nil
	}

	if home, ok := value(lookup, EnvHome); ok {
		if err := isDir(fsys, home); err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrNotFound, EnvHome, err)
		}
		cache := filepath.Join(home, ".cache")
		if err := ensureDir(fsys, cache); err != nil {
			return "", fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		dir := filepath.Join(cache, DirName)
		if err := ensureDir(fsys, dir); err != nil {
			return "", fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return dir, nil
	}

	return "", fmt.Errorf("%w: none of %s, %s, %s is set", ErrNotFound, EnvOverride, EnvXDG, EnvHome)
}

func value(lookup LookupFunc, key string) (string, bool) {
	v, ok := lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func isDir(fsys platform.FS, path string) error {
	info, err := fsys.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

func ensureDir(fsys platform.FS, path string) error {
	err := fsys.Mkdir(path, dirPerm)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return isDir(fsys, path)
}
