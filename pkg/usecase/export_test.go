package usecase

import (
	"net/http"
	"time"

	"github.com/m-mizutani/octgate/pkg/domain/interfaces"
)

// ConfigService exports for testing
type ConfigService = configService

func (c *configService) FindConfigInDirectory(dir string) string {
	return c.findConfigInDirectory(dir)
}

// NewSlackActionWithDelay shortens the retry delay for tests
func NewSlackActionWithDelay(delay time.Duration) interfaces.ActionExecutor {
	return &slackAction{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		retryDelay: delay,
	}
}

// NewCommandActionWithRunner replaces the process runner of command hooks
func NewCommandActionWithRunner(runner interfaces.CommandRunner) interfaces.ActionExecutor {
	return &commandAction{runner: runner}
}

var (
	MaskWebhookURL = maskWebhookURL
	SameGroup      = sameGroup
)
