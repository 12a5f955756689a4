package compcache

import (
	"bytes"
	"path/filepath"

	"github.com/meigma/compcache/internal/atomicfile"
	"github.com/meigma/compcache/key"
)

// Trace file extensions written by DeriveKey when tracing is on.
const (
	TraceExtension = ".trace"
	InputExtension = ".input"
)

// DeriveKey returns the key for in. With tracing enabled it also writes
// <key>.trace and <key>.input into the cache directory; failures there are
// logged and ignored.
func (c *Cache) DeriveKey(in *key.Inputs) string {
	k := key.Derive(in)
	if !c.trace || !c.cfg.Enabled {
		return k
	}

	var buf bytes.Buffer
	if err := in.WriteTrace(&buf); err != nil {
		c.fail("format trace", err)
		return k
	}
	tracePath := filepath.Join(c.cfg.Dir, k+TraceExtension)
	if err := atomicfile.Write(c.fs, c.cfg.Dir, tracePath, buf.Bytes()); err != nil {
		c.fail("write trace", err)
	}
	if len(in.Source) > 0 {
		inputPath := filepath.Join(c.cfg.Dir, k+InputExtension)
		if err := atomicfile.Write(c.fs, c.cfg.Dir, inputPath, in.Source); err != nil {
			c.fail("write trace input", err)
		}
	}
	return k
}
