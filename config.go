package compcache

import (
	"os"

	"github.com/caarlos0/env/v11"

	"github.com/meigma/compcache/internal/location"
	"github.com/meigma/compcache/internal/platform"
)

// Entry file extensions used by the OpenCL and Level Zero front ends.
const (
	ExtensionOpenCL    = ".cl_cache"
	ExtensionLevelZero = ".l0_c_cache"
)

// DefaultMaxSize is the quota applied when none is configured.
// The NEO_CACHE_MAX_SIZE default on Environment must match it.
const DefaultMaxSize uint64 = 1 << 30

// Config selects where and how much a Cache stores.
type Config struct {
	// Enabled turns the cache on. A disabled cache fails every operation
	// with ErrDisabled.
	Enabled bool
	// Dir is the cache directory. Required when Enabled.
	Dir string
	// Extension is appended to every entry file name.
	// Defaults to ExtensionOpenCL.
	Extension string
	// MaxSize is the quota in bytes. Zero means unlimited.
	MaxSize uint64
}

// Environment holds the cache settings read from the process environment.
type Environment struct {
	Persistent bool   `env:"NEO_CACHE_PERSISTENT" envDefault:"true"`
	Dir        string `env:"NEO_CACHE_DIR"`
	MaxSize    uint64 `env:"NEO_CACHE_MAX_SIZE"   envDefault:"1073741824"`
	Trace      bool   `env:"NEO_CACHE_TRACE"      envDefault:"false"`

	lookup location.LookupFunc
	fs     platform.FS
}

// LoadEnvironment parses the NEO_CACHE_* variables.
func LoadEnvironment() (Environment, error) {
	return env.ParseAs[Environment]()
}

func parseEnvironment(vars map[string]string) (Environment, error) {
	e, err := env.ParseAsWithOptions[Environment](env.Options{Environment: vars})
	if err != nil {
		return e, err
	}
	e.lookup = func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
	return e, nil
}

// Config resolves the cache directory and returns the matching Config.
//
// When persistence is off the result is disabled and the error is nil.
// When no directory can be resolved the result is disabled and the error
// wraps ErrNoCacheDir; callers may log it and continue with the disabled
// config.
func (e Environment) Config(extension string) (Config, error) {
	cfg := Config{Extension: extension, MaxSize: e.MaxSize}
	if !e.Persistent {
		return cfg, nil
	}

	lookup := e.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	fsys := e.fs
	if fsys == nil {
		fsys = platform.OS{}
	}
	dir, err := location.Resolve(fsys, func(k string) (string, bool) {
		if k == location.EnvOverride {
			return e.Dir, e.Dir != ""
		}
		return lookup(k)
	})
	if err != nil {
		return cfg, err
	}
	cfg.Enabled = true
	cfg.Dir = dir
	return cfg, nil
}

// Options returns the cache options implied by the environment.
func (e Environment) Options() []Option {
	var opts []Option
	if e.Trace {
		opts = append(opts, WithTrace(true))
	}
	return opts
}
