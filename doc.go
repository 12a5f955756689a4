// Package compcache is a persistent, content-addressed cache for compiled
// GPU program binaries.
//
// Entries are plain files named by a hex key plus an extension. Any number of
// processes may share one cache directory: readers take no lock and only
// ever observe complete files because entries are published by atomic
// rename, while writers serialize on an exclusive lock over the directory's
// size file (config.file) and evict the least recently used entries when
// the configured quota would be exceeded.
//
// Every failure is reported as an error wrapping one of the sentinel errors
// in this package. Callers treat any error from [Cache.CacheBinary] or
// [Cache.LoadCachedBinary] as "not cached" and fall back to compiling.
//
// # Quick Start
//
//	env, err := compcache.LoadEnvironment()
//	if err != nil {
//	    return err
//	}
//	cfg, _ := env.Config(compcache.ExtensionOpenCL)
//	c, err := compcache.New(cfg, compcache.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	hash := c.DeriveKey(&inputs)
//	bin, err := c.GetOrCompile(ctx, hash, compile)
//
// Keys are derived with the [key] subpackage.
package compcache
