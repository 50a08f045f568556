package usecase_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octgate/pkg/domain/model"
	"github.com/m-mizutani/octgate/pkg/usecase"
)

func TestHookExecutor(t *testing.T) {
	event := model.RunEvent{
		Type:           model.HookRunSuccess,
		Repository:     "dlt-hub/dlt",
		Workflow:       "test dbt cloud",
		ConcurrencyKey: "test dbt cloud-42",
		RunID:          "run-1",
	}

	t.Run("Execute with nil config does not panic", func(t *testing.T) {
		executor := usecase.NewHookExecutor(nil)
		gt.NoError(t, executor.Execute(context.Background(), event))
		executor.WaitForCompletion()
	})

	t.Run("Execute handles unknown action type gracefully", func(t *testing.T) {
		config := &model.Config{
			Hooks: model.HooksConfig{
				RunSuccess: []model.Action{{Type: "unknown", Data: map[string]any{}}},
			},
		}
		executor := usecase.NewHookExecutor(config)
		gt.NoError(t, executor.Execute(context.Background(), event))
		executor.WaitForCompletion()
	})

	t.Run("WaitForCompletion waits for all pending actions", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("uses sleep")
		}
		sleep := model.Action{
			Type: "command",
			Data: map[string]any{"command": "sleep", "args": []string{"0.1"}},
		}
		config := &model.Config{
			Hooks: model.HooksConfig{
				RunSuccess: []model.Action{sleep, sleep},
				RunFailure: []model.Action{sleep},
			},
		}
		executor := usecase.NewHookExecutor(config)
		ctx := context.Background()

		startTime := time.Now()
		gt.NoError(t, executor.Execute(ctx, event))
		failure := event
		failure.Type = model.HookRunFailure
		gt.NoError(t, executor.Execute(ctx, failure))

		// Execute must not block on the actions
		gt.True(t, time.Since(startTime) < 100*time.Millisecond)

		executor.WaitForCompletion()
		duration := time.Since(startTime)
		gt.True(t, duration >= 100*time.Millisecond)
		gt.True(t, duration < 500*time.Millisecond)
	})

	t.Run("only actions of the event type run", func(t *testing.T) {
		var successCount, skippedCount int32
		success := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&successCount, 1)
			_, _ = w.Write([]byte("ok"))
		}))
		defer success.Close()
		skipped := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&skippedCount, 1)
			_, _ = w.Write([]byte("ok"))
		}))
		defer skipped.Close()

		config := &model.Config{
			Hooks: model.HooksConfig{
				RunSuccess: []model.Action{{
					Type: "slack",
					Data: map[string]any{"webhook_url": success.URL, "message": "{{.Workflow}} passed"},
				}},
				RunSkipped: []model.Action{{
					Type: "slack",
					Data: map[string]any{"webhook_url": skipped.URL, "message": "{{.Workflow}} skipped"},
				}},
			},
		}
		executor := usecase.NewHookExecutor(config)
		gt.NoError(t, executor.Execute(context.Background(), event))
		executor.WaitForCompletion()

		gt.Equal(t, atomic.LoadInt32(&successCount), int32(1))
		gt.Equal(t, atomic.LoadInt32(&skippedCount), int32(0))
	})

	t.Run("Execute with real Command action", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("uses sh")
		}
		tempFile := filepath.Join(t.TempDir(), "hook_output.txt")

		config := &model.Config{
			Hooks: model.HooksConfig{
				RunCancelled: []model.Action{{
					Type: "command",
					Data: map[string]any{
						"command": "sh",
						"args":    []string{"-c", fmt.Sprintf("echo $OCTGATE_EVENT_TYPE > %s", tempFile)},
					},
				}},
			},
		}
		executor := usecase.NewHookExecutor(config)

		cancelled := event
		cancelled.Type = model.HookRunCancelled
		gt.NoError(t, executor.Execute(context.Background(), cancelled))
		executor.WaitForCompletion()

		data, err := os.ReadFile(tempFile)
		gt.NoError(t, err)
		gt.Equal(t, string(data), "run_cancelled\n")
	})
}
