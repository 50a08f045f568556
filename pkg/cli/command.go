package cli

import (
	"github.com/urfave/cli/v3"
)

func NewCommand() *cli.Command {
	return &cli.Command{
		Name:    "octgate",
		Usage:   "Gate and run CI jobs on pull requests",
		Version: "0.1.0",
		Description: `octgate decides whether the gated test job of a pull request runs, cancels
older runs of the same pull request and runs the job with a dependency cache keyed
by the lockfile.

In GitHub Actions, run "octgate detect" in the docs change detection job and
"octgate run --needs '${{ toJSON(needs) }}'" in the gated job.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose logging",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file (default: .octgate.yml or ~/.config/octgate/config.yml)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "detect",
				Usage: "Report whether files outside docs changed",
				Flags: append([]cli.Flag{
					&cli.StringSliceFlag{
						Name:  "files",
						Usage: "Changed files; fetched from the pull request when omitted",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Output file (default: $GITHUB_OUTPUT, or stdout)",
					},
					prFlag(),
				}, githubFlags()...),
				Action: RunDetect,
			},
			{
				Name:   "run",
				Usage:  "Run the gated job",
				Flags:  append(DefineRunFlags(), githubFlags()...),
				Action: RunPipeline,
			},
			{
				Name:  "cancel",
				Usage: "Cancel older GitHub Actions runs of the same pull request",
				Flags: append([]cli.Flag{
					&cli.Int64Flag{
						Name:  "run-id",
						Usage: "Current run (default: $GITHUB_RUN_ID)",
					},
					prFlag(),
				}, githubFlags()...),
				Action: RunCancel,
			},
			{
				Name:  "runs",
				Usage: "List runs recorded in the run ledger",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "ledger",
						Usage: "Path of the sqlite run ledger",
					},
					&cli.StringFlag{
						Name:  "key",
						Usage: "Only runs of this concurrency key",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs",
						Value: 20,
					},
				},
				Action: RunListRuns,
			},
			NewCacheCommand(),
			NewAuthCommand(),
			NewConfigCommand(),
		},
	}
}

func githubFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "token",
			Usage:   "GitHub token (defaults to the saved token)",
			Sources: cli.EnvVars("GITHUB_TOKEN"),
		},
		&cli.StringFlag{
			Name:  "github-url",
			Usage: "GitHub Enterprise base URL",
		},
	}
}

func prFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "pr",
		Usage: "Pull request number when running outside GitHub Actions",
	}
}
