package compcache

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/compcache/internal/atomicfile"
	"github.com/meigma/compcache/internal/evict"
	"github.com/meigma/compcache/internal/platform"
	"github.com/meigma/compcache/internal/quota"
	"github.com/meigma/compcache/internal/sizing"
	"github.com/meigma/compcache/internal/walk"
)

const (
	defaultDirPerm  = 0o750
	defaultMaxDepth = 2
	maxShardLen     = 8
)

// Cache stores compiled binaries in a directory shared between processes.
// The zero value is not usable; construct with New. A Cache is safe for
// concurrent use.
type Cache struct {
	cfg            Config
	fs             platform.FS
	logger         *slog.Logger
	shardPrefixLen int
	dirPerm        fs.FileMode
	maxDepth       int
	trace          bool
	touchOnLoad    bool
	memEntries     int
	now            func() time.Time

	mem   *lru.Cache[string, []byte]
	quota *quota.Tracker
	mu    sync.Mutex // serializes this process's writers
	group singleflight.Group
}

// New creates a Cache for cfg.
//
// Invalid arguments return an error. If the cache directory cannot be
// created the failure is logged and a disabled Cache is returned instead.
func New(cfg Config, opts ...Option) (*Cache, error) {
	c := &Cache{
		cfg:      cfg,
		fs:       platform.OS{},
		logger:   slog.New(slog.DiscardHandler),
		dirPerm:  defaultDirPerm,
		maxDepth: defaultMaxDepth,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.cfg.Extension == "" {
		c.cfg.Extension = ExtensionOpenCL
	}
	if err := checkExtension(c.cfg.Extension); err != nil {
		return nil, err
	}
	if c.shardPrefixLen < 0 || c.shardPrefixLen > maxShardLen {
		return nil, fmt.Errorf("shard prefix length must be between 0 and %d", maxShardLen)
	}
	if c.maxDepth < 0 {
		return nil, errors.New("max depth must be >= 0")
	}
	if c.shardPrefixLen > 0 && c.maxDepth < 1 {
		return nil, errors.New("sharded entries need max depth >= 1")
	}
	if c.memEntries < 0 {
		return nil, errors.New("memory entries must be >= 0")
	}
	if !c.cfg.Enabled {
		return c, nil
	}
	if c.cfg.Dir == "" {
		return nil, errors.New("cache dir is empty")
	}

	if err := c.fs.MkdirAll(c.cfg.Dir, c.dirPerm); err != nil {
		c.fail("create cache dir", err)
		c.cfg.Enabled = false
		return c, nil
	}
	if c.memEntries > 0 {
		mem, err := lru.New[string, []byte](c.memEntries)
		if err != nil {
			return nil, err
		}
		c.mem = mem
	}
	c.quota = quota.New(c.fs, c.cfg.Dir, c.scan)
	return c, nil
}

// Enabled reports whether the cache stores anything.
func (c *Cache) Enabled() bool { return c.cfg.Enabled }

// Config returns the effective configuration.
func (c *Cache) Config() Config { return c.cfg }

// Path returns the entry file for hash.
func (c *Cache) Path(hash string) (string, error) {
	if err := validHash(hash); err != nil {
		return "", err
	}
	name := hash + c.cfg.Extension
	if c.shardPrefixLen == 0 {
		return filepath.Join(c.cfg.Dir, name), nil
	}
	prefix := hash[:min(c.shardPrefixLen, len(hash))]
	return filepath.Join(c.cfg.Dir, prefix, name), nil
}

// CacheBinary stores data under hash.
//
// It returns nil when the entry was written and also when an entry for hash
// already exists; the first writer's bytes are kept. When the quota would be
// exceeded the least recently used entries are evicted until more than a
// third of the quota has been freed.
func (c *Cache) CacheBinary(hash string, data []byte) error {
	if !c.cfg.Enabled {
		return ErrDisabled
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(data) == 0 {
		return ErrEmptyBinary
	}
	need := uint64(len(data))
	if c.cfg.MaxSize > 0 && need > c.cfg.MaxSize {
		return fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, need, c.cfg.MaxSize)
	}
	path, err := c.Path(hash)
	if err != nil {
		return err
	}

	lock, err := c.quota.Acquire()
	if err != nil {
		c.fail("lock size file", err)
		return fmt.Errorf("%w: %v", ErrLockFailed, err)
	}
	defer lock.Release()

	if _, err := c.fs.Stat(path); err == nil {
		return nil
	}

	current := lock.Size()
	var freed uint64
	if sizing.Exceeds(current, need, c.cfg.MaxSize) {
		res, evictErr := c.evict(c.cfg.MaxSize / 3)
		freed = res.Freed
		current = sizing.SubClamp(current, freed)
		if evictErr != nil {
			c.storeSize(lock, current, freed)
			c.fail("evict", evictErr)
			return fmt.Errorf("%w: %v", ErrEvictionFailed, evictErr)
		}
		if sizing.Exceeds(current, need, c.cfg.MaxSize) {
			c.storeSize(lock, current, freed)
			return fmt.Errorf("%w: %d + %d > %d bytes", ErrQuotaExceeded, current, need, c.cfg.MaxSize)
		}
	}

	if err := c.publish(path, data); err != nil {
		if _, statErr := c.fs.Stat(path); statErr == nil {
			// Someone outside the lock published the same entry.
			c.storeSize(lock, current, freed)
			return nil
		}
		c.storeSize(lock, current, freed)
		c.fail("write entry", err)
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	total, ok := sizing.AddUint64(current, need)
	if !ok {
		total = math.MaxUint64
	}
	if err := lock.WriteSize(total); err != nil {
		c.fail("write size file", err)
	}
	c.remember(path, data)
	return nil
}

func (c *Cache) publish(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != filepath.Clean(c.cfg.Dir) {
		if err := c.fs.MkdirAll(dir, c.dirPerm); err != nil {
			return err
		}
	}
	return atomicfile.Write(c.fs, dir, path, data)
}

// LoadCachedBinary returns the binary stored under hash.
// A missing entry yields ErrNotFound. It takes no lock.
func (c *Cache) LoadCachedBinary(hash string) ([]byte, error) {
	if !c.cfg.Enabled {
		return nil, ErrDisabled
	}
	path, err := c.Path(hash)
	if err != nil {
		return nil, err
	}

	if c.mem != nil {
		if data, ok := c.mem.Get(path); ok {
			c.touch(path)
			return clone(data), nil
		}
	}

	data, err := c.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		c.fail("read entry", err)
		return nil, err
	}
	c.touch(path)
	c.remember(path, data)
	return data, nil
}

func (c *Cache) touch(path string) {
	if !c.touchOnLoad {
		return
	}
	now := c.now()
	if err := c.fs.Chtimes(path, now, time.Time{}); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.fail("touch entry", err)
	}
}

func (c *Cache) remember(path string, data []byte) {
	if c.mem != nil {
		c.mem.Add(path, clone(data))
	}
}

func (c *Cache) forget(paths []string) {
	if c.mem == nil {
		return
	}
	for _, p := range paths {
		c.mem.Remove(p)
	}
}

// evict runs one eviction pass. The caller holds the size file lock.
func (c *Cache) evict(target uint64) (evict.Result, error) {
	res, err := evict.Evict(c.fs, c.cfg.Dir, c.maxDepth, c.isEntry, target, c.logger)
	c.forget(res.Removed)
	if err == nil {
		c.logger.Debug("evicted cache entries",
			slog.Uint64("target", target),
			slog.Uint64("freed", res.Freed),
			slog.Int("removed", len(res.Removed)),
			slog.Int("failed", res.Failed))
	}
	return res, err
}

func (c *Cache) storeSize(lock *quota.Lock, size, freed uint64) {
	if freed == 0 {
		return
	}
	if err := lock.WriteSize(size); err != nil {
		c.fail("write size file", err)
	}
}

func (c *Cache) scan() (uint64, error) {
	entries, err := walk.Walk(c.fs, c.cfg.Dir, c.maxDepth, c.isEntry)
	if err != nil {
		return 0, err
	}
	return walk.TotalSize(entries), nil
}

// reservedNames are files in the cache directory that are never entries.
var reservedNames = []string{quota.FileName, ".tmp", TraceExtension, InputExtension}

// checkExtension rejects extensions that would make reserved files look
// like entries.
func checkExtension(ext string) error {
	if strings.ContainsAny(ext, `/\`) {
		return fmt.Errorf("invalid extension %q: contains a path separator", ext)
	}
	for _, name := range reservedNames {
		if strings.HasSuffix(name, ext) {
			return fmt.Errorf("invalid extension %q: matches reserved file %q", ext, name)
		}
	}
	return nil
}

// isEntry reports whether name is a cache entry file of any front end.
// The size file and in-flight temp files never are.
func (c *Cache) isEntry(name string) bool {
	if name == quota.FileName || strings.HasPrefix(name, atomicfile.TempPrefix) {
		return false
	}
	return strings.HasSuffix(name, c.cfg.Extension) ||
		strings.HasSuffix(name, ExtensionOpenCL) ||
		strings.HasSuffix(name, ExtensionLevelZero)
}

func (c *Cache) fail(op string, err error) {
	c.logger.Warn("cache failure", slog.String("op", op), slog.String("dir", c.cfg.Dir), slog.Any("error", err))
}

func validHash(hash string) error {
	switch {
	case hash == "", hash == ".", hash == "..":
		return fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	case strings.ContainsAny(hash, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidHash, hash)
	}
	return nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
