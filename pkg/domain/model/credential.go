package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octgate/pkg/domain"
)

const (
	EnvAccountID = "DBT_CLOUD__ACCOUNT_ID"
	EnvJobID     = "DBT_CLOUD__JOB_ID"
	EnvAPIToken  = "DBT_CLOUD__API_TOKEN" // #nosec G101 - variable name, not a credential

	EnvLogLevel          = "RUNTIME__LOG_LEVEL"
	EnvTelemetryEndpoint = "RUNTIME__DLTHUB_TELEMETRY_ENDPOINT"
)

// CredentialSet holds the secrets forwarded to the downstream test command.
// All of them must be present together.
type CredentialSet struct {
	AccountID string `env:"DBT_CLOUD__ACCOUNT_ID"`
	JobID     string `env:"DBT_CLOUD__JOB_ID"`
	APIToken  string `env:"DBT_CLOUD__API_TOKEN"`
}

// Missing returns names of variables that are not set
func (c CredentialSet) Missing() []string {
	var missing []string
	if c.AccountID == "" {
		missing = append(missing, EnvAccountID)
	}
	if c.JobID == "" {
		missing = append(missing, EnvJobID)
	}
	if c.APIToken == "" {
		missing = append(missing, EnvAPIToken)
	}
	return missing
}

func (c CredentialSet) Validate() error {
	if missing := c.Missing(); len(missing) > 0 {
		return domain.ErrMissingCredential.Wrap(
			goerr.New("required credentials are not set: " + strings.Join(missing, ", ")),
		)
	}
	return nil
}

// IsCredentialEnv reports whether a NAME=value entry carries a credential
func IsCredentialEnv(kv string) bool {
	name, _, _ := strings.Cut(kv, "=")
	switch name {
	case EnvAccountID, EnvJobID, EnvAPIToken:
		return true
	}
	return false
}

func (c CredentialSet) Env() []string {
	return []string{
		EnvAccountID + "=" + c.AccountID,
		EnvJobID + "=" + c.JobID,
		EnvAPIToken + "=" + c.APIToken,
	}
}

// RuntimeEnv is forwarded verbatim to the test command when set
type RuntimeEnv struct {
	LogLevel          string `env:"RUNTIME__LOG_LEVEL"`
	TelemetryEndpoint string `env:"RUNTIME__DLTHUB_TELEMETRY_ENDPOINT"`
}

func (r RuntimeEnv) Env() []string {
	var env []string
	if r.LogLevel != "" {
		env = append(env, EnvLogLevel+"="+r.LogLevel)
	}
	if r.TelemetryEndpoint != "" {
		env = append(env, EnvTelemetryEndpoint+"="+r.TelemetryEndpoint)
	}
	return env
}
