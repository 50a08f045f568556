package cli

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/octgate/pkg/domain"
	"github.com/m-mizutani/octgate/pkg/domain/model"
	"github.com/m-mizutani/octgate/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// Config holds the flags of `octgate run` that override the config file
type Config struct {
	LedgerPath   string
	CacheDir     string
	Lockfile     string
	PollInterval time.Duration
	RemoteCancel bool
}

func NewConfig(cmd *cli.Command) *Config {
	return &Config{
		LedgerPath:   cmd.String("ledger"),
		CacheDir:     cmd.String("cache-dir"),
		Lockfile:     cmd.String("lockfile"),
		PollInterval: cmd.Duration("poll-interval"),
		RemoteCancel: cmd.Bool("remote-cancel"),
	}
}

// Apply overlays the flags that were set on the file config
func (c *Config) Apply(config *model.Config) *model.Config {
	merged := *config
	merged.Job = config.Job.WithDefaults()
	if c.LedgerPath != "" {
		merged.Ledger.Path = c.LedgerPath
	}
	if c.PollInterval > 0 {
		merged.Ledger.PollInterval = c.PollInterval
	}
	if c.CacheDir != "" {
		merged.Job.CacheDir = c.CacheDir
	}
	if c.Lockfile != "" {
		merged.Job.Lockfile = c.Lockfile
	}
	if merged.Job.CacheDir == "" {
		merged.Job.CacheDir = usecase.DefaultCacheDir()
	}
	return &merged
}

func DefineRunFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "changes-outside-docs",
			Usage: "Output of the docs change detection job (only \"true\" runs the job)",
		},
		&cli.StringFlag{
			Name:  "needs",
			Usage: "JSON of ${{ toJSON(needs) }}; read instead of --changes-outside-docs",
		},
		&cli.StringFlag{
			Name:  "ledger",
			Usage: "Path of the sqlite run ledger shared by runs on this machine",
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Usage: "Root directory of the dependency cache",
		},
		&cli.StringFlag{
			Name:  "lockfile",
			Usage: "Lockfile whose hash keys the dependency cache",
		},
		&cli.DurationFlag{
			Name:  "poll-interval",
			Usage: "How often the run ledger is checked for supersession",
		},
		&cli.BoolFlag{
			Name:  "remote-cancel",
			Usage: "Also cancel older GitHub Actions runs of the same pull request",
		},
		prFlag(),
	}
}

// newLogger builds the logger from --debug/--verbose and stores it in ctx
func newLogger(ctx context.Context, cmd *cli.Command) (context.Context, *slog.Logger) {
	logLevel := slog.LevelWarn
	if cmd.Bool("debug") {
		logLevel = slog.LevelDebug
	} else if cmd.Bool("verbose") {
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	return ctxlog.With(ctx, logger), logger
}

// loadConfig reads --config, or the repository config of the working
// directory, or the per-user config.
func loadConfig(ctx context.Context, cmd *cli.Command) (*model.Config, error) {
	service := usecase.NewConfigService()

	if path := cmd.String("config"); path != "" {
		return service.Load(path)
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return nil, domain.ErrConfiguration.Wrap(err)
	}
	config, path, err := service.LoadFromDirectory(currentDir)
	if err != nil {
		return nil, err
	}
	if path != "" {
		ctxlog.From(ctx).Debug("loaded config", slog.String("path", path))
	}
	return config, nil
}
