package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octgate/pkg/domain"
	"github.com/m-mizutani/octgate/pkg/domain/model"
	"github.com/m-mizutani/octgate/pkg/usecase"
	"github.com/sethvargo/go-envconfig"
)

func TestLoadActionsEnv(t *testing.T) {
	ctx := context.Background()

	env, err := usecase.LoadActionsEnv(ctx, envconfig.MapLookuper(map[string]string{
		"GITHUB_EVENT_NAME": "pull_request",
		"GITHUB_EVENT_PATH": "/github/workflow/event.json",
		"GITHUB_REPOSITORY": "dlt-hub/dlt",
		"GITHUB_WORKFLOW":   "test dbt cloud",
		"GITHUB_RUN_ID":     "1234567890",
		"GITHUB_OUTPUT":     "/github/output",
	}))
	gt.NoError(t, err)
	gt.Equal(t, env.EventName, "pull_request")
	gt.Equal(t, env.Repository, "dlt-hub/dlt")
	gt.Equal(t, env.RunID, int64(1234567890))
	gt.Equal(t, env.Output, "/github/output")
	gt.Equal(t, env.Token, "")

	_, err = usecase.LoadActionsEnv(ctx, envconfig.MapLookuper(map[string]string{
		"GITHUB_RUN_ID": "not-a-number",
	}))
	gt.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestLoadJobEnv(t *testing.T) {
	ctx := context.Background()

	t.Run("complete set", func(t *testing.T) {
		env, err := usecase.LoadJobEnv(ctx, envconfig.MapLookuper(map[string]string{
			model.EnvAccountID:         "10",
			model.EnvJobID:             "20",
			model.EnvAPIToken:          "secret",
			model.EnvTelemetryEndpoint: "https://telemetry.example.com",
		}))
		gt.NoError(t, err)
		gt.NoError(t, env.Credentials.Validate())
		gt.Equal(t, env.Runtime.TelemetryEndpoint, "https://telemetry.example.com")
		gt.Equal(t, env.Runtime.LogLevel, "")
	})

	t.Run("partial set loads but does not validate", func(t *testing.T) {
		env, err := usecase.LoadJobEnv(ctx, envconfig.MapLookuper(map[string]string{
			model.EnvAccountID: "10",
		}))
		gt.NoError(t, err)
		gt.Equal(t, env.Credentials.Missing(), []string{model.EnvJobID, model.EnvAPIToken})
		gt.True(t, errors.Is(env.Credentials.Validate(), domain.ErrMissingCredential))
	})
}
