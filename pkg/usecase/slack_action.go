package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octgate/pkg/domain/interfaces"
	"github.com/m-mizutani/octgate/pkg/domain/model"
)

type slackAction struct {
	httpClient *http.Client
	retryDelay time.Duration
}

// NewSlackAction creates a new SlackAction instance
func NewSlackAction() interfaces.ActionExecutor {
	return &slackAction{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryDelay: time.Second,
	}
}

type slackStatusError struct {
	status int
	body   string
}

func (e *slackStatusError) Error() string {
	return fmt.Sprintf("slack webhook returned status %d: %s", e.status, e.body)
}

// retryable reports whether a failed post is worth repeating
func retryable(err error) bool {
	var se *slackStatusError
	if errors.As(err, &se) {
		return se.status == http.StatusTooManyRequests || se.status >= 500
	}
	return true
}

// Execute sends a notification to Slack
func (s *slackAction) Execute(ctx context.Context, action model.Action, event model.RunEvent) error {
	logger := ctxlog.From(ctx)

	// Convert to typed action
	slackAction, err := action.ToSlackAction()
	if err != nil {
		return goerr.Wrap(err, "failed to parse slack action")
	}

	// Expand environment variables in webhook URL
	webhookURL := os.ExpandEnv(slackAction.WebhookURL)
	if webhookURL == "" {
		return goerr.New("webhook URL is empty after expansion")
	}

	// Build message from template
	message, err := s.buildMessage(slackAction.Message, event)
	if err != nil {
		return goerr.Wrap(err, "failed to build message")
	}

	// Prepare payload
	payload := model.SlackPayload{
		Text:      message,
		UserName:  slackAction.UserName,
		IconEmoji: slackAction.IconEmoji,
	}
	// Add attachment with color if specified
	if slackAction.Color != "" {
		payload.Attachments = []model.Attachment{
			{
				Color:     slackAction.Color,
				Text:      message,
				Footer:    fmt.Sprintf("octgate - %s", event.Repository),
				Timestamp: time.Now().Unix(),
				Fields: []model.Field{
					{Title: "Status", Value: string(event.Type), Short: true},
					{Title: "Exit code", Value: fmt.Sprintf("%d", event.ExitCode), Short: true},
				},
			},
		}
		// Clear main text to avoid duplication
		payload.Text = ""
	}

	// Send to Slack, retrying rate limits and server errors only
	err = retry.Do(
		func() error { return s.sendToSlack(ctx, webhookURL, payload) },
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(s.retryDelay),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("Failed to send Slack notification, retrying",
				slog.Uint64("attempt", uint64(n+1)),
				slog.String("error", err.Error()),
			)
		}),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to send slack notification")
	}

	logger.Debug("Slack notification sent")
	return nil
}

// buildMessage processes the message template
func (s *slackAction) buildMessage(messageTemplate string, event model.RunEvent) (string, error) {
	// Prepare template data
	data := struct {
		Repository     string
		Workflow       string
		ConcurrencyKey string
		RunID          string
		EventType      string
		ExitCode       int
		Reason         string
		Timestamp      time.Time
	}{
		Repository:     event.Repository,
		Workflow:       event.Workflow,
		ConcurrencyKey: event.ConcurrencyKey,
		RunID:          event.RunID,
		EventType:      string(event.Type),
		ExitCode:       event.ExitCode,
		Reason:         event.Reason,
		Timestamp:      time.Now(),
	}

	// Parse and execute template
	tmpl, err := template.New("message").Parse(messageTemplate)
	if err != nil {
		return "", goerr.Wrap(err, "failed to parse message template")
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(err, "failed to execute message template")
	}

	return buf.String(), nil
}

// sendToSlack sends the payload to Slack webhook
func (s *slackAction) sendToSlack(ctx context.Context, webhookURL string, payload model.SlackPayload) error {
	// Marshal payload to JSON
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal slack payload")
	}

	ctxlog.From(ctx).Debug("Sending to Slack",
		slog.String("webhook_url", maskWebhookURL(webhookURL)),
	)

	// Create HTTP request
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return goerr.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	// Send request
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	// Check response
	if resp.StatusCode != http.StatusOK {
		var respBody bytes.Buffer
		_, _ = respBody.ReadFrom(resp.Body)
		return &slackStatusError{status: resp.StatusCode, body: respBody.String()}
	}

	return nil
}

// maskWebhookURL masks the secret path segments of a webhook URL for logging
func maskWebhookURL(url string) string {
	if strings.Contains(url, "hooks.slack.com") {
		parts := strings.Split(url, "/")
		if len(parts) > 3 {
			for i := len(parts) - 3; i < len(parts); i++ {
				if len(parts[i]) > 4 {
					parts[i] = parts[i][:2] + "***"
				}
			}
			return strings.Join(parts, "/")
		}
	}
	if len(url) > 20 {
		return url[:20] + "***"
	}
	return "***"
}
