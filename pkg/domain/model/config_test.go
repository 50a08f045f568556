package model_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octgate/pkg/domain/model"
)

func TestActionConversions(t *testing.T) {
	t.Run("ToCommandAction success", func(t *testing.T) {
		action := model.Action{
			Type: "command",
			Data: map[string]any{
				"command": "echo",
				"args":    []any{"hello", "world"},
				"timeout": "5s",
				"env":     []string{"FOO=bar"},
			},
		}

		cmd, err := action.ToCommandAction()
		gt.NoError(t, err)
		gt.Equal(t, cmd.Command, "echo")
		gt.Equal(t, cmd.Args, []string{"hello", "world"})
		gt.Equal(t, cmd.Timeout, 5*time.Second)
		gt.Equal(t, cmd.Env, []string{"FOO=bar"})
	})

	t.Run("ToCommandAction with wrong type", func(t *testing.T) {
		action := model.Action{Type: "slack", Data: map[string]any{"command": "echo"}}
		_, err := action.ToCommandAction()
		gt.Error(t, err)
	})

	t.Run("ToCommandAction rejects non-string args", func(t *testing.T) {
		action := model.Action{
			Type: "command",
			Data: map[string]any{"command": "echo", "args": []any{1, 2}},
		}
		_, err := action.ToCommandAction()
		gt.Error(t, err)
	})

	t.Run("ToCommandAction rejects invalid timeout", func(t *testing.T) {
		action := model.Action{
			Type: "command",
			Data: map[string]any{"command": "echo", "timeout": "soon"},
		}
		_, err := action.ToCommandAction()
		gt.Error(t, err)
	})

	t.Run("ToSlackAction success", func(t *testing.T) {
		action := model.Action{
			Type: "slack",
			Data: map[string]any{
				"webhook_url": "https://hooks.slack.com/services/T/B/X",
				"message":     "{{.Workflow}} failed",
				"color":       "danger",
			},
		}

		slack, err := action.ToSlackAction()
		gt.NoError(t, err)
		gt.Equal(t, slack.Message, "{{.Workflow}} failed")
		gt.Equal(t, slack.Color, "danger")
	})

	t.Run("ToSlackAction without webhook", func(t *testing.T) {
		action := model.Action{Type: "slack", Data: map[string]any{"message": "hi"}}
		_, err := action.ToSlackAction()
		gt.Error(t, err)
	})
}

func TestJobConfig(t *testing.T) {
	t.Run("WithDefaults fills empty fields", func(t *testing.T) {
		job := model.JobConfig{}.WithDefaults()
		gt.Equal(t, job.Lockfile, "poetry.lock")
		gt.Equal(t, job.CacheQualifier, "dbt-cloud")
		gt.Equal(t, job.Test.Args, []string{"run", "pytest", "tests/helpers/dbt_cloud_tests", "-k", "(not venv)"})
		gt.Equal(t, job.Env[model.EnvLogLevel], "ERROR")
	})

	t.Run("WithDefaults keeps explicit values", func(t *testing.T) {
		job := model.JobConfig{
			Lockfile: "uv.lock",
			Test:     model.Step{Command: "make", Args: []string{"test"}},
			Env:      map[string]string{},
		}.WithDefaults()
		gt.Equal(t, job.Lockfile, "uv.lock")
		gt.Equal(t, job.Test.Command, "make")
		gt.Equal(t, len(job.Env), 0)
	})
}

func TestHooksConfig(t *testing.T) {
	hooks := model.HooksConfig{
		RunFailure: []model.Action{{Type: "command"}},
	}
	gt.Equal(t, len(hooks.For(model.HookRunFailure)), 1)
	gt.Equal(t, len(hooks.For(model.HookRunSuccess)), 0)
	gt.Equal(t, len(hooks.For(model.HookEvent("unknown"))), 0)
}
