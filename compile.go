package compcache

import (
	"context"
	"errors"
	"fmt"
)

// CompileFunc produces the binary for a cache miss.
type CompileFunc func(ctx context.Context) ([]byte, error)

// GetOrCompile returns the binary cached under hash, calling compile on a
// miss and caching its result.
//
// Concurrent callers in this process share one compile per hash. Cache
// failures are logged and never returned; compile failures are.
func (c *Cache) GetOrCompile(ctx context.Context, hash string, compile CompileFunc) ([]byte, error) {
	data, err := c.LoadCachedBinary(hash)
	switch {
	case err == nil:
		return data, nil
	case errors.Is(err, ErrInvalidHash):
		return nil, err
	}

	ch := c.group.DoChan(hash, func() (any, error) {
		// A sibling may have finished between the load and here.
		if data, err := c.LoadCachedBinary(hash); err == nil {
			return data, nil
		}
		data, err := compile(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("compile %s: %w", hash, ErrEmptyBinary)
		}
		if err := c.CacheBinary(hash, data); err != nil && !errors.Is(err, ErrDisabled) {
			c.fail("store compiled binary", err)
		}
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		data, _ := res.Val.([]byte)
		return clone(data), nil
	}
}
