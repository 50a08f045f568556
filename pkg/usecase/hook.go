package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/octgate/pkg/domain/interfaces"
	"github.com/m-mizutani/octgate/pkg/domain/model"
)

type hookExecutor struct {
	hooks   model.HooksConfig
	actions map[string]interfaces.ActionExecutor
	wg      sync.WaitGroup
}

// NewHookExecutor creates a new HookExecutor instance
func NewHookExecutor(config *model.Config) interfaces.HookExecutor {
	h := &hookExecutor{
		actions: map[string]interfaces.ActionExecutor{
			"command": NewCommandAction(),
			"slack":   NewSlackAction(),
		},
	}
	if config != nil {
		h.hooks = config.Hooks
	}
	return h
}

// Execute starts the actions configured for the event in the background
func (h *hookExecutor) Execute(ctx context.Context, event model.RunEvent) error {
	logger := ctxlog.From(ctx)

	// Actions configured for this event type
	for _, action := range h.hooks.For(event.Type) {
		// Execute action asynchronously
		h.wg.Add(1)
		go func(a model.Action) {
			defer h.wg.Done()
			if err := h.executeAction(ctx, a, event); err != nil {
				logger.Warn("Failed to execute hook action",
					slog.String("type", a.Type),
					slog.String("event", string(event.Type)),
					slog.String("error", err.Error()),
				)
			}
		}(action)
	}

	return nil
}

// WaitForCompletion blocks until every started action has returned
func (h *hookExecutor) WaitForCompletion() {
	h.wg.Wait()
}

// executeAction executes a single action
func (h *hookExecutor) executeAction(ctx context.Context, action model.Action, event model.RunEvent) error {
	executor, ok := h.actions[action.Type]
	if !ok {
		ctxlog.From(ctx).Warn("Unknown action type",
			slog.String("type", action.Type),
		)
		return nil
	}

	return executor.Execute(ctx, action, event)
}
