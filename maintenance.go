package compcache

import (
	"fmt"

	"github.com/meigma/compcache/internal/sizing"
	"github.com/meigma/compcache/internal/walk"
)

// Stats describes the cache directory.
type Stats struct {
	Dir string
	// Entries and Bytes come from walking the directory.
	Entries int
	Bytes   uint64
	// Recorded is the total stored in the size file.
	Recorded uint64
	// MaxSize is the configured quota, zero when unlimited.
	MaxSize uint64
}

// Stats walks the cache directory and reads the recorded size under the
// lock.
func (c *Cache) Stats() (Stats, error) {
	st := Stats{Dir: c.cfg.Dir, MaxSize: c.cfg.MaxSize}
	if !c.cfg.Enabled {
		return st, ErrDisabled
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, err := c.quota.Acquire()
	if err != nil {
		return st, fmt.Errorf("%w: %v", ErrLockFailed, err)
	}
	defer lock.Release()
	st.Recorded = lock.Size()

	entries, err := walk.Walk(c.fs, c.cfg.Dir, c.maxDepth, c.isEntry)
	if err != nil {
		return st, fmt.Errorf("list entries: %w", err)
	}
	st.Entries = len(entries)
	st.Bytes = walk.TotalSize(entries)
	return st, nil
}

// EvictResult reports one explicit eviction.
type EvictResult struct {
	Freed   uint64
	Removed int
	Failed  int
}

// Evict removes least recently used entries until more than target bytes
// are freed, then records the new total.
func (c *Cache) Evict(target uint64) (EvictResult, error) {
	if !c.cfg.Enabled {
		return EvictResult{}, ErrDisabled
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, err := c.quota.Acquire()
	if err != nil {
		return EvictResult{}, fmt.Errorf("%w: %v", ErrLockFailed, err)
	}
	defer lock.Release()

	res, err := c.evict(target)
	out := EvictResult{Freed: res.Freed, Removed: len(res.Removed), Failed: res.Failed}
	c.storeSize(lock, sizing.SubClamp(lock.Size(), res.Freed), res.Freed)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrEvictionFailed, err)
	}
	return out, nil
}

// Rescan recomputes the size file from the directory contents and returns
// the new total.
func (c *Cache) Rescan() (uint64, error) {
	if !c.cfg.Enabled {
		return 0, ErrDisabled
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, err := c.quota.Acquire()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLockFailed, err)
	}
	defer lock.Release()
	if lock.Rebuilt() {
		return lock.Size(), nil
	}

	total, err := c.scan()
	if err != nil {
		return 0, fmt.Errorf("scan cache directory: %w", err)
	}
	if err := lock.WriteSize(total); err != nil {
		return 0, err
	}
	return total, nil
}
