package compcache

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/compcache/internal/location"
)

func newBufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestParseEnvironmentDefaults(t *testing.T) {
	t.Parallel()
	e, err := parseEnvironment(map[string]string{})
	require.NoError(t, err)

	assert.True(t, e.Persistent)
	assert.Empty(t, e.Dir)
	assert.Equal(t, DefaultMaxSize, e.MaxSize)
	assert.False(t, e.Trace)
	assert.Empty(t, e.Options())
}

func TestMaxSizeTagMatchesDefault(t *testing.T) {
	t.Parallel()
	field, ok := reflect.TypeFor[Environment]().FieldByName("MaxSize")
	require.True(t, ok)
	assert.Equal(t, strconv.FormatUint(DefaultMaxSize, 10), field.Tag.Get("envDefault"))
}

func TestParseEnvironmentValues(t *testing.T) {
	t.Parallel()
	e, err := parseEnvironment(map[string]string{
		"NEO_CACHE_PERSISTENT": "false",
		"NEO_CACHE_DIR":        "/var/cache/neo",
		"NEO_CACHE_MAX_SIZE":   "0",
		"NEO_CACHE_TRACE":      "true",
	})
	require.NoError(t, err)

	assert.False(t, e.Persistent)
	assert.Equal(t, "/var/cache/neo", e.Dir)
	assert.Zero(t, e.MaxSize)
	assert.True(t, e.Trace)
	assert.Len(t, e.Options(), 1)
}

func TestParseEnvironmentInvalid(t *testing.T) {
	t.Parallel()
	_, err := parseEnvironment(map[string]string{"NEO_CACHE_MAX_SIZE": "lots"})
	require.Error(t, err)
}

func TestEnvironmentConfigXDG(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	e, err := parseEnvironment(map[string]string{"XDG_CACHE_HOME": base, "NEO_CACHE_MAX_SIZE": "4096"})
	require.NoError(t, err)

	cfg, err := e.Config(ExtensionLevelZero)
	require.NoError(t, err)
	assert.Equal(t, Config{
		Enabled:   true,
		Dir:       filepath.Join(base, location.DirName),
		Extension: ExtensionLevelZero,
		MaxSize:   4096,
	}, cfg)
	assert.DirExists(t, cfg.Dir)
}

func TestEnvironmentConfigOverride(t *testing.T) {
	t.Parallel()
	override := t.TempDir()
	e, err := parseEnvironment(map[string]string{"NEO_CACHE_DIR": override, "HOME": t.TempDir()})
	require.NoError(t, err)

	cfg, err := e.Config(ExtensionOpenCL)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, override, cfg.Dir)
}

func TestEnvironmentConfigNotPersistent(t *testing.T) {
	t.Parallel()
	e, err := parseEnvironment(map[string]string{"NEO_CACHE_PERSISTENT": "0", "HOME": t.TempDir()})
	require.NoError(t, err)

	cfg, err := e.Config(ExtensionOpenCL)
	require.NoError(t, err)
	assert.False(t, cfg.Enabled)
}

func TestEnvironmentConfigNoDirectory(t *testing.T) {
	t.Parallel()
	e, err := parseEnvironment(map[string]string{"HOME": filepath.Join(t.TempDir(), "gone")})
	require.NoError(t, err)

	cfg, err := e.Config(ExtensionOpenCL)
	require.ErrorIs(t, err, ErrNoCacheDir)
	assert.False(t, cfg.Enabled)

	c, err := New(cfg)
	require.NoError(t, err)
	assert.False(t, c.Enabled())
}

func TestEnvironmentConfigUsesProcessEnvironment(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", base)
	t.Setenv("NEO_CACHE_DIR", "")

	e, err := LoadEnvironment()
	require.NoError(t, err)
	cfg, err := e.Config(ExtensionOpenCL)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, location.DirName), cfg.Dir)

	_, statErr := os.Stat(cfg.Dir)
	require.NoError(t, statErr)
}
