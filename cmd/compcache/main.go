// Command compcache inspects and maintains a compiler binary cache directory.
package main

import (
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/compcache"
)

// Version is set at build time.
var Version = ""

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		log.Error("compcache failed", "err", err)
		os.Exit(1)
	}
}

type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer

	configFile string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "compcache",
		Short:         "Inspect and maintain a compiler binary cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.loadConfig()
		},
	}
	root.Version = Version
	if root.Version == "" {
		root.Version = "unknown (built from source)"
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	f := root.PersistentFlags()
	f.StringVar(&a.configFile, "config", "", "config file (default compcache.yml in the user config dir)")
	f.String("dir", "", "cache directory (default resolved from NEO_CACHE_DIR, XDG_CACHE_HOME, HOME)")
	f.String("max-size", "", "cache quota, e.g. 512MiB (0 = unlimited)")
	f.String("extension", ".cl_cache", "entry file extension")
	f.Int("shard", 0, "hash prefix length used for entry subdirectories")
	f.Bool("trace", false, "write key trace files when deriving keys")
	f.Bool("debug", false, "enable debug logging")

	_ = a.v.BindPFlag("dir", f.Lookup("dir"))
	_ = a.v.BindPFlag("max_size", f.Lookup("max-size"))
	_ = a.v.BindPFlag("extension", f.Lookup("extension"))
	_ = a.v.BindPFlag("shard_prefix_len", f.Lookup("shard"))
	_ = a.v.BindPFlag("trace", f.Lookup("trace"))
	_ = a.v.BindPFlag("debug", f.Lookup("debug"))

	a.v.SetDefault("max_size", strconv.FormatUint(compcache.DefaultMaxSize, 10))
	a.v.SetDefault("extension", ".cl_cache")

	root.AddCommand(
		a.dirCmd(),
		a.statsCmd(),
		a.evictCmd(),
		a.rescanCmd(),
		a.getCmd(),
		a.putCmd(),
		a.keyCmd(),
	)
	return root
}
