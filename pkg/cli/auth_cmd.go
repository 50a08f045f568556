package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octgate/pkg/domain"
	"github.com/m-mizutani/octgate/pkg/usecase"
	"github.com/urfave/cli/v3"
)

// NewAuthCommand stores a GitHub token for use outside GitHub Actions
func NewAuthCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the GitHub token",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Save a GitHub token (read from stdin when --token is not given)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "token",
						Usage: "GitHub token to save",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					token := cmd.String("token")
					if token == "" {
						fmt.Fprint(os.Stderr, "GitHub token: ")
						line, err := bufio.NewReader(os.Stdin).ReadString('\n')
						if err != nil && line == "" {
							return domain.ErrAuthentication.Wrap(goerr.Wrap(err, "failed to read token"))
						}
						token = strings.TrimSpace(line)
					}
					if token == "" {
						return domain.ErrAuthentication.Wrap(goerr.New("empty token"))
					}

					if err := usecase.NewAuthService("").SaveToken(ctx, token); err != nil {
						return err
					}
					fmt.Fprintln(cmd.Root().Writer, "token saved")
					return nil
				},
			},
		},
	}
}
