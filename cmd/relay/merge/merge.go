package mergecmder

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/relay/cmd/relay/stack"
	"github.com/papercomputeco/relay/pkg/config"
	"github.com/papercomputeco/relay/pkg/session"
	"github.com/papercomputeco/relay/pkg/storage"
	"github.com/papercomputeco/relay/pkg/storage/sqlite"
)

const mergeLongDesc string = `Merge one or more SQLite session stores into the configured store.

Every key in each source is copied as-is. Keys the target already
holds are left alone unless --overwrite is given, and values that are
not a readable conversation are skipped.

Examples:
  relay merge old-relay.db
  relay merge --sqlite /tmp/merged.db ~/alice/relay.db ~/bob/relay.db
  relay merge --config prod.toml --overwrite relay.db`

const mergeShortDesc string = "Merge SQLite session stores"

type mergeCommander struct {
	sqlitePath string
	overwrite  bool
}

// mergeStats counts what happened to the keys of one source.
type mergeStats struct {
	copied     int
	existing   int
	unreadable int
}

func NewMergeCmd() *cobra.Command {
	cmder := &mergeCommander{}

	cmd := &cobra.Command{
		Use:   "merge [sources...]",
		Short: mergeShortDesc,
		Long:  mergeLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), configPath, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Merge into this SQLite database instead of the configured store")
	cmd.Flags().BoolVar(&cmder.overwrite, "overwrite", false, "Replace sessions the target already holds")

	return cmd
}

func (c *mergeCommander) run(ctx context.Context, out io.Writer, configPath string, sources []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if c.sqlitePath != "" {
		cfg.Store.Driver = config.DriverSQLite
		cfg.Store.SQLite.Path = c.sqlitePath
	}

	target, err := stack.OpenDriver(ctx, cfg, zap.NewNop())
	if err != nil {
		return fmt.Errorf("could not open target store: %w", err)
	}
	defer target.Close()

	if err := target.Ping(ctx); err != nil {
		return fmt.Errorf("target store is not reachable: %w", err)
	}

	var total mergeStats

	for _, srcPath := range sources {
		stats, err := c.mergeSource(ctx, target, srcPath)
		if err != nil {
			return err
		}

		total.copied += stats.copied
		total.existing += stats.existing
		total.unreadable += stats.unreadable

		fmt.Fprintf(out, "  %s: %d copied, %d already existed, %d unreadable\n",
			srcPath, stats.copied, stats.existing, stats.unreadable)
	}

	fmt.Fprintf(out, "Merged %d sessions from %d sources (%d already existed, %d unreadable) into %s store\n",
		total.copied, len(sources), total.existing, total.unreadable, cfg.Store.Driver)

	return nil
}

func (c *mergeCommander) mergeSource(ctx context.Context, target storage.Driver, srcPath string) (mergeStats, error) {
	var stats mergeStats

	source, err := sqlite.NewDriver(ctx, srcPath)
	if err != nil {
		return stats, fmt.Errorf("could not open source database %s: %w", srcPath, err)
	}
	defer source.Close()

	keys, err := source.Keys(ctx, "")
	if err != nil {
		return stats, fmt.Errorf("could not list sessions from %s: %w", srcPath, err)
	}

	for _, key := range keys {
		value, err := source.Get(ctx, key)
		if err != nil {
			return stats, fmt.Errorf("could not read %s from %s: %w", key, srcPath, err)
		}

		if _, err := session.Decode(value); err != nil {
			stats.unreadable++
			continue
		}

		if !c.overwrite {
			_, err := target.Get(ctx, key)
			switch {
			case err == nil:
				stats.existing++
				continue
			case !errors.Is(err, storage.ErrNotFound):
				return stats, fmt.Errorf("could not check %s in target: %w", key, err)
			}
		}

		if err := target.Set(ctx, key, value); err != nil {
			return stats, fmt.Errorf("could not write %s: %w", key, err)
		}
		stats.copied++
	}

	return stats, nil
}
