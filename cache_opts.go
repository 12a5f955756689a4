package compcache

import (
	"io/fs"
	"log/slog"

	"github.com/meigma/compcache/internal/platform"
)

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger for cache failures and evictions.
// Defaults to a logger that discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithShardPrefixLen stores entries in a subdirectory named by the first n
// characters of the hash. Use 0 to keep every entry in the cache directory.
// Defaults to 0.
func WithShardPrefixLen(n int) Option {
	return func(c *Cache) {
		c.shardPrefixLen = n
	}
}

// WithDirPerm sets the permissions used for created directories.
func WithDirPerm(mode fs.FileMode) Option {
	return func(c *Cache) {
		c.dirPerm = mode
	}
}

// WithMaxDepth sets how many subdirectory levels eviction and size scans
// descend. Defaults to 2.
func WithMaxDepth(n int) Option {
	return func(c *Cache) {
		c.maxDepth = n
	}
}

// WithTrace makes DeriveKey write <key>.trace and <key>.input files
// describing the hashed inputs.
func WithTrace(enabled bool) Option {
	return func(c *Cache) {
		c.trace = enabled
	}
}

// WithMemoryEntries keeps up to n recently loaded binaries in memory.
// Use 0 to disable. Defaults to 0.
func WithMemoryEntries(n int) Option {
	return func(c *Cache) {
		c.memEntries = n
	}
}

// WithAccessTimeUpdate makes LoadCachedBinary refresh the entry's access
// time, keeping eviction order meaningful on noatime mounts.
func WithAccessTimeUpdate() Option {
	return func(c *Cache) {
		c.touchOnLoad = true
	}
}

// WithFS replaces the filesystem layer. Intended for tests.
func WithFS(fsys platform.FS) Option {
	return func(c *Cache) {
		if fsys != nil {
			c.fs = fsys
		}
	}
}
