package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meigma/compcache"
	"github.com/meigma/compcache/key"
)

// open builds a Cache from the merged settings.
func (a *app) open() (*compcache.Cache, settings, error) {
	s, err := a.settings()
	if err != nil {
		return nil, s, err
	}
	logger := newLogger(a.stderr, s.Debug)

	cfg := compcache.Config{Enabled: true, Dir: s.Dir, Extension: s.Extension, MaxSize: s.MaxSize}
	if s.Dir == "" {
		env := compcache.Environment{Persistent: true, MaxSize: s.MaxSize}
		cfg, err = env.Config(s.Extension)
		if err != nil {
			return nil, s, err
		}
	}

	c, err := compcache.New(cfg,
		compcache.WithLogger(logger),
		compcache.WithShardPrefixLen(s.ShardPrefixLen),
		compcache.WithTrace(s.Trace),
	)
	if err != nil {
		return nil, s, err
	}
	if !c.Enabled() {
		return nil, s, fmt.Errorf("cache directory %s is not usable", cfg.Dir)
	}
	return c, s, nil
}

func (a *app) dirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dir",
		Short: "Print the cache directory",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			c, _, err := a.open()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, c.Config().Dir)
			return err
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show entry count and sizes",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			c, _, err := a.open()
			if err != nil {
				return err
			}
			st, err := c.Stats()
			if err != nil {
				return err
			}
			quota := "unlimited"
			if st.MaxSize > 0 {
				quota = fmt.Sprintf("%s (%.1f%% used)", formatSize(st.MaxSize), 100*float64(st.Recorded)/float64(st.MaxSize))
			}
			_, err = fmt.Fprintf(a.stdout, "directory: %s\nentries:   %d\non disk:   %s\nrecorded:  %s\nquota:     %s\n",
				st.Dir, st.Entries, formatSize(st.Bytes), formatSize(st.Recorded), quota)
			return err
		},
	}
}

func (a *app) evictCmd() *cobra.Command {
	var (
		amount string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "evict",
		Short: "Remove least recently used entries",
		Long: "Remove least recently used entries until more than --bytes have been freed.\n" +
			"Without --bytes a third of the quota is freed; an unlimited quota needs --bytes or --all.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, s, err := a.open()
			if err != nil {
				return err
			}
			var target uint64
			switch {
			case all:
				target = math.MaxUint64
			case cmd.Flags().Changed("bytes"):
				if target, err = parseSize(amount); err != nil {
					return err
				}
			case s.MaxSize == 0:
				return errors.New("quota is unlimited: pass --bytes or --all")
			default:
				target = s.MaxSize / 3
			}
			res, err := c.Evict(target)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.stdout, "removed %d entries, freed %s (%d failed)\n",
				res.Removed, formatSize(res.Freed), res.Failed)
			return err
		},
	}
	cmd.Flags().StringVar(&amount, "bytes", "", "free more than this many bytes, e.g. 100MB")
	cmd.Flags().BoolVar(&all, "all", false, "remove every entry")
	cmd.MarkFlagsMutuallyExclusive("bytes", "all")
	return cmd
}

func (a *app) rescanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rescan",
		Short: "Recompute the recorded cache size from disk",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			c, _, err := a.open()
			if err != nil {
				return err
			}
			total, err := c.Rescan()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.stdout, "recorded size: %s\n", formatSize(total))
			return err
		},
	}
}

func (a *app) getCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "get HASH",
		Short: "Write a cached binary to stdout or a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			c, _, err := a.open()
			if err != nil {
				return err
			}
			data, err := c.LoadCachedBinary(args[0])
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = a.stdout.Write(data)
				return err
			}
			return os.WriteFile(output, data, 0o600)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func (a *app) putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put HASH FILE",
		Short: "Store a file as a cached binary",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			c, s, err := a.open()
			if err != nil {
				return err
			}
			hash := args[0]
			if _, err := key.Parse(hash); err != nil {
				newLogger(a.stderr, s.Debug).Warn("hash is not a derived key", "hash", hash)
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			if err := c.CacheBinary(hash, data); err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.stdout, "stored %s (%s)\n", hash, formatSize(uint64(len(data))))
			return err
		},
	}
}

type keyFlags struct {
	source          string
	options         string
	internalOptions string
	revision        string
	library         string
	specConsts      []string
	productFamily   uint32
	renderCore      uint32
	deviceID        uint16
	revisionID      uint16
	ipVersion       string
}

func (a *app) keyCmd() *cobra.Command {
	var kf keyFlags
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Derive the cache key for a compilation",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			in, err := kf.inputs()
			if err != nil {
				return err
			}
			s, err := a.settings()
			if err != nil {
				return err
			}
			k := key.Derive(in)
			if s.Trace {
				c, _, err := a.open()
				if err != nil {
					return err
				}
				k = c.DeriveKey(in)
			}
			_, err = fmt.Fprintln(a.stdout, k)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&kf.source, "source", "", "source file")
	f.StringVar(&kf.options, "options", "", "build options")
	f.StringVar(&kf.internalOptions, "internal-options", "", "internal compiler options")
	f.StringVar(&kf.revision, "revision", "", "compiler revision")
	f.StringVar(&kf.library, "library", "", "compiler library whose size and mtime are hashed")
	f.StringSliceVar(&kf.specConsts, "spec-const", nil, "specialization constant as ID=VALUE")
	f.Uint32Var(&kf.productFamily, "product-family", 0, "platform product family")
	f.Uint32Var(&kf.renderCore, "render-core", 0, "render core family")
	f.Uint16Var(&kf.deviceID, "device-id", 0, "PCI device ID")
	f.Uint16Var(&kf.revisionID, "revision-id", 0, "device revision ID")
	f.StringVar(&kf.ipVersion, "ip-version", "", "IP version as ARCH.RELEASE.REVISION")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func (kf *keyFlags) inputs() (*key.Inputs, error) {
	src, err := os.ReadFile(kf.source)
	if err != nil {
		return nil, err
	}
	in := &key.Inputs{
		Source:           src,
		Options:          kf.options,
		InternalOptions:  kf.internalOptions,
		CompilerRevision: kf.revision,
	}
	in.Hardware.Platform.ProductFamily = kf.productFamily
	in.Hardware.Platform.RenderCoreFamily = kf.renderCore
	in.Hardware.Platform.DeviceID = kf.deviceID
	in.Hardware.Platform.RevisionID = kf.revisionID
	if kf.library != "" {
		in.CompilerLibrarySize, in.CompilerLibraryModTime = key.LibraryStat(kf.library)
	}

	for _, sc := range kf.specConsts {
		id, value, ok := strings.Cut(sc, "=")
		if !ok {
			return nil, fmt.Errorf("spec constant %q: want ID=VALUE", sc)
		}
		n, err := strconv.ParseUint(id, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("spec constant id %q: %w", id, err)
		}
		v, err := strconv.ParseUint(value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("spec constant value %q: %w", value, err)
		}
		in.SpecConstIDs = append(in.SpecConstIDs, uint32(n))
		in.SpecConstValues = append(in.SpecConstValues, v)
	}

	if kf.ipVersion != "" {
		parts := strings.Split(kf.ipVersion, ".")
		if len(parts) != 3 {
			return nil, errors.New("ip version: want ARCH.RELEASE.REVISION")
		}
		var nums [3]uint32
		for i, p := range parts {
			n, err := strconv.ParseUint(p, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("ip version: %w", err)
			}
			nums[i] = uint32(n)
		}
		in.Hardware.IPVersion = key.IPVersion{Architecture: nums[0], Release: nums[1], Revision: nums[2]}
	}
	return in, nil
}
