package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/compcache"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestPutGetStats(t *testing.T) {
	t.Parallel()
	cacheDir := t.TempDir()
	src := writeFile(t, t.TempDir(), "bin", "compiled")

	out, err := run(t, "--dir", cacheDir, "put", "abc", src)
	require.NoError(t, err)
	assert.Contains(t, out, "stored abc")
	assert.FileExists(t, filepath.Join(cacheDir, "abc"+compcache.ExtensionOpenCL))

	out, err = run(t, "--dir", cacheDir, "get", "abc")
	require.NoError(t, err)
	assert.Equal(t, "compiled", out)

	dst := filepath.Join(t.TempDir(), "out")
	_, err = run(t, "--dir", cacheDir, "get", "abc", "-o", dst)
	require.NoError(t, err)
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "compiled", string(got))

	out, err = run(t, "--dir", cacheDir, "--max-size", "1KiB", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "entries:   1")
	assert.Contains(t, out, "recorded:  8 B")
	assert.Contains(t, out, "quota:     1.0 KiB")
}

func TestGetMissing(t *testing.T) {
	t.Parallel()
	_, err := run(t, "--dir", t.TempDir(), "get", "nope")
	require.ErrorIs(t, err, compcache.ErrNotFound)
}

func TestPutTooLarge(t *testing.T) {
	t.Parallel()
	src := writeFile(t, t.TempDir(), "bin", strings.Repeat("x", 100))
	_, err := run(t, "--dir", t.TempDir(), "--max-size", "10", "put", "h", src)
	require.ErrorIs(t, err, compcache.ErrTooLarge)
}

func TestEvictAllAndRescan(t *testing.T) {
	t.Parallel()
	cacheDir := t.TempDir()
	src := writeFile(t, t.TempDir(), "bin", "0123456789")
	for _, h := range []string{"h1", "h2"} {
		_, err := run(t, "--dir", cacheDir, "put", h, src)
		require.NoError(t, err)
	}

	out, err := run(t, "--dir", cacheDir, "evict", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 2 entries")

	out, err = run(t, "--dir", cacheDir, "rescan")
	require.NoError(t, err)
	assert.Contains(t, out, "recorded size: 0 B")
}

func TestEvictBytes(t *testing.T) {
	t.Parallel()
	cacheDir := t.TempDir()
	src := writeFile(t, t.TempDir(), "bin", "0123456789")
	for _, h := range []string{"h1", "h2", "h3"} {
		_, err := run(t, "--dir", cacheDir, "put", h, src)
		require.NoError(t, err)
	}

	out, err := run(t, "--dir", cacheDir, "evict", "--bytes", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 entries")

	_, err = run(t, "--dir", cacheDir, "evict", "--bytes", "5", "--all")
	require.Error(t, err)
}

func TestEvictUnlimitedNeedsTarget(t *testing.T) {
	t.Parallel()
	cacheDir := t.TempDir()
	src := writeFile(t, t.TempDir(), "bin", "0123456789")
	_, err := run(t, "--dir", cacheDir, "--max-size", "0", "put", "h1", src)
	require.NoError(t, err)

	_, err = run(t, "--dir", cacheDir, "--max-size", "0", "evict")
	require.ErrorContains(t, err, "--bytes or --all")
	assert.FileExists(t, filepath.Join(cacheDir, "h1"+compcache.ExtensionOpenCL))

	out, err := run(t, "--dir", cacheDir, "--max-size", "0", "evict", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 entries")
}

func TestStatsDefaultQuota(t *testing.T) {
	t.Parallel()
	out, err := run(t, "--dir", t.TempDir(), "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "quota:     1.0 GiB")
}

func TestExtensionReservedByCache(t *testing.T) {
	t.Parallel()
	_, err := run(t, "--dir", t.TempDir(), "--extension", "file", "stats")
	require.ErrorContains(t, err, "reserved")
}

func TestDirFromConfigFile(t *testing.T) {
	t.Parallel()
	cacheDir := filepath.Join(t.TempDir(), "cache")
	cfgFile := writeFile(t, t.TempDir(), "compcache.yml", "dir: "+cacheDir+"\nmax_size: 64MiB\n")

	out, err := run(t, "--config", cfgFile, "dir")
	require.NoError(t, err)
	assert.Equal(t, cacheDir+"\n", out)
	assert.DirExists(t, cacheDir)
}

func TestKey(t *testing.T) {
	t.Parallel()
	src := writeFile(t, t.TempDir(), "k.cl", "kernel void k() {}")

	first, err := run(t, "key", "--source", src, "--spec-const", "1=2", "--ip-version", "12.0.1")
	require.NoError(t, err)
	second, err := run(t, "key", "--source", src, "--spec-const", "1=2", "--ip-version", "12.0.1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, strings.TrimSpace(first), 64)

	other, err := run(t, "key", "--source", src, "--spec-const", "1=3", "--ip-version", "12.0.1")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestKeyRejectsBadFlags(t *testing.T) {
	t.Parallel()
	src := writeFile(t, t.TempDir(), "k.cl", "kernel")

	tests := [][]string{
		{"key"},
		{"key", "--source", src, "--spec-const", "nope"},
		{"key", "--source", src, "--ip-version", "1.2"},
		{"key", "--source", filepath.Join(t.TempDir(), "missing.cl")},
	}
	for _, args := range tests {
		_, err := run(t, args...)
		assert.Error(t, err, args)
	}
}

func TestKeyWithTrace(t *testing.T) {
	t.Parallel()
	cacheDir := t.TempDir()
	src := writeFile(t, t.TempDir(), "k.cl", "kernel void k() {}")

	out, err := run(t, "--dir", cacheDir, "--trace", "key", "--source", src)
	require.NoError(t, err)
	k := strings.TrimSpace(out)
	assert.FileExists(t, filepath.Join(cacheDir, k+compcache.TraceExtension))
	assert.FileExists(t, filepath.Join(cacheDir, k+compcache.InputExtension))
}

func TestParseSize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "0", want: 0},
		{in: "1024", want: 1024},
		{in: "1KiB", want: 1024},
		{in: "1 GiB", want: 1 << 30},
		{in: "2MB", want: 2000000},
		{in: "lots", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseSize(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
