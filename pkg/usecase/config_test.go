package usecase_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octgate/pkg/domain/model"
	"github.com/m-mizutani/octgate/pkg/usecase"
	"gopkg.in/yaml.v3"
)

func TestConfigService(t *testing.T) {
	t.Run("GenerateTemplate returns valid template", func(t *testing.T) {
		service := usecase.NewConfigService()
		template := service.GenerateTemplate()
		gt.True(t, strings.Contains(template, "hooks:"))
		gt.True(t, strings.Contains(template, "override_label: ci from fork"))

		var config model.Config
		gt.NoError(t, yaml.Unmarshal([]byte(template), &config))
		gt.Equal(t, config.WorkflowName(), "test dbt cloud")
		gt.Equal(t, config.Gate.Label(), model.DefaultOverrideLabel)
		gt.Equal(t, config.Job.Install.Timeout, 20*time.Minute)
		gt.Equal(t, config.Job.Test.Args, []string{"run", "pytest", "tests/helpers/dbt_cloud_tests", "-k", "(not venv)"})
		gt.Equal(t, config.Ledger.PollInterval, 2*time.Second)
		gt.Equal(t, len(config.Hooks.RunFailure), 1)
		gt.Equal(t, config.Hooks.RunFailure[0].Type, "command")
	})

	t.Run("SaveTemplate fails without force when file exists", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "nested", "config.yml")
		service := usecase.NewConfigService()

		gt.NoError(t, service.SaveTemplate(configPath, false))
		gt.Error(t, service.SaveTemplate(configPath, false))
		gt.NoError(t, service.SaveTemplate(configPath, true))

		content, err := os.ReadFile(configPath)
		gt.NoError(t, err)
		gt.Equal(t, string(content), service.GenerateTemplate())
	})

	t.Run("Load parses valid YAML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yml")
		yamlContent := `
workflow: nightly dbt
gate:
  docs_patterns: ["docs/**"]
job:
  test:
    command: make
    args: [test]
hooks:
  run_success:
    - type: slack
      webhook_url: https://hooks.slack.com/services/x
      message: passed
  run_failure:
    - type: command
      command: echo
      timeout: 5s
`
		gt.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0600))

		config, err := usecase.NewConfigService().Load(configPath)
		gt.NoError(t, err)
		gt.Equal(t, config.WorkflowName(), "nightly dbt")
		gt.Equal(t, config.Gate.Patterns(), []string{"docs/**"})
		gt.Equal(t, config.Job.Test.Command, "make")

		job := config.Job.WithDefaults()
		gt.Equal(t, job.Install.Command, "poetry")
		gt.Equal(t, job.Test.Command, "make")

		gt.Equal(t, len(config.Hooks.For(model.HookRunSuccess)), 1)
		cmd, err := config.Hooks.RunFailure[0].ToCommandAction()
		gt.NoError(t, err)
		gt.Equal(t, cmd.Timeout, 5*time.Second)
	})

	t.Run("Load fails on invalid YAML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yml")
		gt.NoError(t, os.WriteFile(configPath, []byte("hooks:\n  run_success:\n    - type slack\n      x: y\n"), 0600))

		_, err := usecase.NewConfigService().Load(configPath)
		gt.Error(t, err)
	})

	t.Run("LoadFromDirectory with no config file found", func(t *testing.T) {
		t.Setenv("HOME", t.TempDir())
		config, path, err := usecase.NewConfigService().LoadFromDirectory(t.TempDir())
		gt.NoError(t, err)
		gt.V(t, config).NotNil()
		gt.Equal(t, path, "")
		gt.Equal(t, len(config.Hooks.RunSuccess), 0)
	})

	t.Run("LoadFromDirectory yml has priority over yaml", func(t *testing.T) {
		tempDir := t.TempDir()
		ymlPath := filepath.Join(tempDir, ".octgate.yml")
		yamlPath := filepath.Join(tempDir, ".octgate.yaml")
		gt.NoError(t, os.WriteFile(ymlPath, []byte("workflow: from-yml\n"), 0600))
		gt.NoError(t, os.WriteFile(yamlPath, []byte("workflow: from-yaml\n"), 0600))

		config, path, err := usecase.NewConfigService().LoadFromDirectory(tempDir)
		gt.NoError(t, err)
		gt.Equal(t, path, ymlPath)
		gt.Equal(t, config.Workflow, "from-yml")
	})

	t.Run("FindConfigInDirectory ignores directories", func(t *testing.T) {
		tempDir := t.TempDir()
		gt.NoError(t, os.Mkdir(filepath.Join(tempDir, ".octgate.yml"), 0750))
		gt.NoError(t, os.WriteFile(filepath.Join(tempDir, ".octgate.yaml"), []byte("{}"), 0600))

		service := &usecase.ConfigService{}
		gt.Equal(t, service.FindConfigInDirectory(tempDir), filepath.Join(tempDir, ".octgate.yaml"))
	})
}
