package usecase

import (
	"context"

	"github.com/m-mizutani/octgate/pkg/domain"
	"github.com/m-mizutani/octgate/pkg/domain/model"
	"github.com/sethvargo/go-envconfig"
)

// ActionsEnv holds the GitHub Actions runtime variables octgate reads
type ActionsEnv struct {
	EventName  string `env:"GITHUB_EVENT_NAME"`
	EventPath  string `env:"GITHUB_EVENT_PATH"`
	Repository string `env:"GITHUB_REPOSITORY"`
	Workflow   string `env:"GITHUB_WORKFLOW"`
	Ref        string `env:"GITHUB_REF"`
	RunID      int64  `env:"GITHUB_RUN_ID, default=0"`
	Output     string `env:"GITHUB_OUTPUT"`
	Token      string `env:"GITHUB_TOKEN"`
}

// JobEnv is everything the gated job takes from the environment
type JobEnv struct {
	Credentials model.CredentialSet
	Runtime     model.RuntimeEnv
}

// LoadActionsEnv reads GitHub Actions variables. A nil lookuper reads the
// process environment.
func LoadActionsEnv(ctx context.Context, lookuper envconfig.Lookuper) (*ActionsEnv, error) {
	var env ActionsEnv
	if err := process(ctx, &env, lookuper); err != nil {
		return nil, err
	}
	return &env, nil
}

// LoadJobEnv reads credentials and runtime settings. Credentials are not
// validated here; a partial set is rejected right before execution.
func LoadJobEnv(ctx context.Context, lookuper envconfig.Lookuper) (*JobEnv, error) {
	var env JobEnv
	if err := process(ctx, &env.Credentials, lookuper); err != nil {
		return nil, err
	}
	if err := process(ctx, &env.Runtime, lookuper); err != nil {
		return nil, err
	}
	return &env, nil
}

func process(ctx context.Context, target any, lookuper envconfig.Lookuper) error {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   target,
		Lookuper: lookuper,
	})
	if err != nil {
		return domain.ErrConfiguration.Wrap(err)
	}
	return nil
}
