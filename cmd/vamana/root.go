package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vamana"
	"github.com/hupe1980/vamana/distance"
	"github.com/hupe1980/vamana/resource"
	"github.com/hupe1980/vamana/storage"
	"github.com/hupe1980/vamana/vectors"
)

// app carries the state shared by every command.
type app struct {
	cfgPath  string
	dir      string
	logLevel string

	cfg    Config
	logger *vamana.Logger
	rc     *resource.Controller
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "vamana",
		Short:         "Build and query Vamana graph indexes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "vamana.yaml", "config file")
	root.PersistentFlags().StringVar(&a.dir, "dir", "", "region directory (overrides config)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	root.AddCommand(
		a.prebuildCmd(),
		a.buildCmd(),
		a.searchCmd(),
		a.snapshotCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.cfgPath)
	if err != nil {
		return err
	}
	if a.dir != "" {
		cfg.Dir = a.dir
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	a.cfg = cfg
	a.logger = cfg.logger(cmd.ErrOrStderr())
	a.rc = resource.NewController(cfg.resourceConfig())
	return nil
}

func (a *app) indexOptions(extra ...vamana.Option) []vamana.Option {
	return append([]vamana.Option{
		vamana.WithLogger(a.logger),
		vamana.WithResourceController(a.rc),
	}, extra...)
}

func (a *app) openStorage() (*storage.Store, error) {
	return storage.Open(a.cfg.Dir, storage.WithResourceController(a.rc))
}

// ensureReserved prebuilds the region unless it already exists.
func (a *app) ensureReserved(ctx context.Context, st *storage.Store) error {
	err := vamana.Prebuild(ctx, st, a.cfg.Index, a.indexOptions()...)
	if errors.Is(err, storage.ErrRegionExists) {
		return nil
	}
	return err
}

func (a *app) loadDataset(path string) (vectors.Dataset, error) {
	if path == "" {
		return nil, errors.New("no dataset: set data.path or pass --data")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dense, err := vectors.ReadFvecs(f, a.cfg.Data.Limit)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !a.cfg.Data.Half {
		return dense, nil
	}
	return vectors.NewHalf(dense)
}

func (a *app) distance() (distance.Func, error) {
	return distance.Provider(a.cfg.Metric)
}
