package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hupe1980/vamana/blobstore"
	"github.com/hupe1980/vamana/snapshot"
)

const snapshotPrefix = "snap-"

func snapshotName(now time.Time) string {
	return snapshotPrefix + now.UTC().Format("20060102T150405.000Z")
}

func (a *app) snapshotOptions() []snapshot.Option {
	return []snapshot.Option{
		snapshot.WithCodec(a.cfg.Snapshot.Codec),
		snapshot.WithLevel(a.cfg.Snapshot.Level),
		snapshot.WithResourceController(a.rc),
		snapshot.WithLogger(a.logger.Logger),
	}
}

func (a *app) snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Copy graph regions to and from the blob store",
		Long: `Snapshots are compressed, checksummed copies of the graph region.
push uploads one and points CURRENT at it, pull restores CURRENT (or a
named snapshot) into the local region, list shows what is stored.`,
	}
	cmd.AddCommand(a.snapshotPushCmd(), a.snapshotPullCmd(), a.snapshotListCmd())
	return cmd
}

func (a *app) snapshotPushCmd() *cobra.Command {
	var noCommit bool

	cmd := &cobra.Command{
		Use:   "push [name]",
		Short: "Upload the region and commit it as CURRENT",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name := snapshotName(time.Now())
			if len(args) == 1 {
				name = args[0]
			}
			if name == blobstore.CurrentName {
				return fmt.Errorf("%q is reserved", name)
			}

			st, err := a.openStorage()
			if err != nil {
				return err
			}
			defer st.Close()

			region, err := st.Region(a.cfg.Index.RegionName)
			if err != nil {
				return err
			}
			store, err := openBlobStore(ctx, a.cfg.BlobStore)
			if err != nil {
				return err
			}

			var info snapshot.Info
			if noCommit {
				info, err = snapshot.Save(ctx, store, name, region, a.snapshotOptions()...)
			} else {
				info, err = snapshot.Publish(ctx, store, name, region, a.snapshotOptions()...)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %s: %s -> %s (%s)\n", info.Name,
				humanize.IBytes(uint64(info.RawSize)), humanize.IBytes(uint64(info.StoredSize)), info.Codec)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noCommit, "no-commit", false, "upload without moving CURRENT")
	return cmd
}

func (a *app) snapshotPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull [name]",
		Short: "Restore CURRENT or the named snapshot into the region",
		Long: `Restore a snapshot into the local region, prebuilding it first if
needed. The index options must describe the same layout the snapshot was
taken from.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openBlobStore(ctx, a.cfg.BlobStore)
			if err != nil {
				return err
			}
			st, err := a.openStorage()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := a.ensureReserved(ctx, st); err != nil {
				return err
			}
			region, err := st.Region(a.cfg.Index.RegionName)
			if err != nil {
				return err
			}

			var info snapshot.Info
			if len(args) == 1 {
				info, err = snapshot.Restore(ctx, store, args[0], region, a.snapshotOptions()...)
			} else {
				info, err = snapshot.RestoreLatest(ctx, store, region, a.snapshotOptions()...)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pulled %s into %s (%s)\n", info.Name, a.cfg.Index.RegionName,
				humanize.IBytes(uint64(info.RawSize)))
			return nil
		},
	}
}

func (a *app) snapshotListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := openBlobStore(ctx, a.cfg.BlobStore)
			if err != nil {
				return err
			}
			names, err := store.List(ctx, snapshotPrefix)
			if err != nil {
				return err
			}
			current, err := snapshot.Latest(ctx, store)
			if err != nil && !errors.Is(err, snapshot.ErrNoSnapshot) {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range names {
				marker := " "
				if name == current {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, name)
			}
			return nil
		},
	}
}
