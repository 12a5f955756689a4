package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

type settings struct {
	Dir            string
	MaxSize        uint64
	Extension      string
	ShardPrefixLen int
	Trace          bool
	Debug          bool
}

// loadConfig reads compcache.yml and NEO_CACHE_* variables into the viper
// instance. Flags bound to the same keys take precedence.
func (a *app) loadConfig() error {
	a.v.SetEnvPrefix("NEO_CACHE")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if a.configFile != "" {
		a.v.SetConfigFile(a.configFile)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", a.configFile, err)
		}
		return nil
	}

	for _, dir := range configDirs() {
		a.v.AddConfigPath(dir)
	}
	a.v.SetConfigName("compcache")
	a.v.SetConfigType("yaml")
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func configDirs() []string {
	var dirs []string
	if c := os.Getenv("COMPCACHE_CONFIG_HOME"); c != "" {
		dirs = append(dirs, c)
	}
	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append(dirs, filepath.Join(c, "compcache"))
	}
	scope := gap.NewScope(gap.User, "compcache")
	if scoped, err := scope.ConfigDirs(); err == nil {
		dirs = append(dirs, scoped...)
	}
	return dirs
}

func (a *app) settings() (settings, error) {
	s := settings{
		Dir:            a.v.GetString("dir"),
		Extension:      a.v.GetString("extension"),
		ShardPrefixLen: a.v.GetInt("shard_prefix_len"),
		Trace:          a.v.GetBool("trace"),
		Debug:          a.v.GetBool("debug"),
	}
	size, err := parseSize(a.v.GetString("max_size"))
	if err != nil {
		return s, err
	}
	s.MaxSize = size
	if s.Extension != "" && !strings.HasPrefix(s.Extension, ".") {
		s.Extension = "." + s.Extension
	}
	return s, nil
}

// parseSize accepts plain byte counts and human units such as 64MiB.
func parseSize(v string) (uint64, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(v)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", v, err)
	}
	return n, nil
}

func formatSize(n uint64) string {
	return humanize.IBytes(n)
}
