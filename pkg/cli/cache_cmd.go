package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/octgate/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// NewCacheCommand creates the dependency cache maintenance commands
func NewCacheCommand() *cli.Command {
	dirFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:  "cache-dir",
			Usage: "Root directory of the dependency cache",
		}
	}

	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and prune the dependency cache",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List cached dependency sets",
				Flags:  []cli.Flag{dirFlag()},
				Action: cacheListAction,
			},
			{
				Name:  "prune",
				Usage: "Remove cache entries older than --older-than",
				Flags: []cli.Flag{
					dirFlag(),
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Minimum age of removed entries",
						Value: 7 * 24 * time.Hour,
					},
				},
				Action: cachePruneAction,
			},
		},
	}
}

func cacheStore(ctx context.Context, cmd *cli.Command) (*usecase.FileCacheStore, error) {
	dir := cmd.String("cache-dir")
	if dir == "" {
		config, err := loadConfig(ctx, cmd)
		if err != nil {
			return nil, err
		}
		dir = config.Job.CacheDir
	}
	if dir == "" {
		dir = usecase.DefaultCacheDir()
	}
	return usecase.NewFileCacheStore(dir), nil
}

func cacheListAction(ctx context.Context, cmd *cli.Command) error {
	ctx, _ = newLogger(ctx, cmd)

	store, err := cacheStore(ctx, cmd)
	if err != nil {
		return err
	}
	entries, err := store.List(ctx)
	if err != nil {
		return err
	}
	printCacheEntries(cmd.Root().Writer, entries)
	return nil
}

func cachePruneAction(ctx context.Context, cmd *cli.Command) error {
	ctx, _ = newLogger(ctx, cmd)

	store, err := cacheStore(ctx, cmd)
	if err != nil {
		return err
	}
	removed, err := store.Prune(ctx, cmd.Duration("older-than"))
	if err != nil {
		return err
	}
	printPruned(cmd.Root().Writer, removed)
	return nil
}
