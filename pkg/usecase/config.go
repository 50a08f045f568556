package usecase

import (
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octgate/pkg/domain"
	"github.com/m-mizutani/octgate/pkg/domain/interfaces"
	"github.com/m-mizutani/octgate/pkg/domain/model"
	"gopkg.in/yaml.v3"
)

var configFileNames = []string{".octgate.yml", ".octgate.yaml"}

type configService struct {
	homeDir string
}

// NewConfigService creates a new ConfigService instance
func NewConfigService() interfaces.ConfigService {
	homeDir, _ := os.UserHomeDir()
	return &configService{homeDir: homeDir}
}

func (c *configService) GetDefaultPath() string {
	return filepath.Join(c.homeDir, ".config", "octgate", "config.yml")
}

// Load parses the YAML file at path
func (c *configService) Load(path string) (*model.Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is provided by the user
	if err != nil {
		return nil, domain.ErrConfiguration.Wrap(goerr.Wrap(err, "failed to read config file"))
	}

	var config model.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, domain.ErrConfiguration.Wrap(goerr.Wrap(err, "failed to parse config file"))
	}
	return &config, nil
}

// LoadDefault loads the per-user config, or an empty config when there is none
func (c *configService) LoadDefault() (*model.Config, error) {
	path := c.GetDefaultPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &model.Config{}, nil
	}
	return c.Load(path)
}

// LoadFromDirectory prefers a repository config in dir over the per-user one.
// The returned path is empty when no repository config was found.
func (c *configService) LoadFromDirectory(dir string) (*model.Config, string, error) {
	path := c.findConfigInDirectory(dir)
	if path == "" {
		config, err := c.LoadDefault()
		return config, "", err
	}
	config, err := c.Load(path)
	return config, path, err
}

func (c *configService) findConfigInDirectory(dir string) string {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

func (c *configService) GenerateTemplate() string {
	return configTemplate
}

func (c *configService) SaveTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return domain.ErrConfiguration.Wrap(goerr.New("config file already exists: " + path + " (use --force to overwrite)"))
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return domain.ErrConfiguration.Wrap(err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0600); err != nil {
		return domain.ErrConfiguration.Wrap(err)
	}
	return nil
}

const configTemplate = `# octgate configuration
workflow: test dbt cloud

gate:
  # pull requests from forks only run with this label
  override_label: ci from fork
  docs_patterns:
    - "docs/**"
    - "**/*.md"

job:
  lockfile: poetry.lock
  runtime_version: "3.10"
  cache_qualifier: dbt-cloud
  # cache_dir: ~/.cache/octgate
  install:
    command: poetry
    args: [install, --no-interaction, -E, dbt]
    timeout: 20m
  test:
    command: poetry
    args: [run, pytest, tests/helpers/dbt_cloud_tests, -k, "(not venv)"]
    timeout: 30m
  env:
    RUNTIME__LOG_LEVEL: ERROR
    RUNTIME__DLTHUB_TELEMETRY_ENDPOINT: https://telemetry-tracker.services4758.workers.dev

ledger:
  # sqlite file shared by runs on this machine; empty keeps runs in memory
  path: ""
  poll_interval: 2s

hooks:
  run_failure:
    - type: command
      command: echo
      args: ["run $OCTGATE_RUN_ID failed with $OCTGATE_EXIT_CODE"]
  # run_success:
  #   - type: slack
  #     webhook_url: ${SLACK_WEBHOOK_URL}
  #     message: "{{.Workflow}} passed on {{.Repository}}"
  #     color: good
`
