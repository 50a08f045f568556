package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/octgate/pkg/domain"
	"github.com/m-mizutani/octgate/pkg/domain/interfaces"
	"github.com/m-mizutani/octgate/pkg/domain/model"
	"github.com/m-mizutani/octgate/pkg/repository"
)

func newLedgers(t *testing.T) map[string]interfaces.RunLedger {
	sqlite, err := repository.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	gt.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]interfaces.RunLedger{
		"memory": repository.NewMemory(),
		"sqlite": sqlite,
	}
}

func TestRunLedger(t *testing.T) {
	for name, ledger := range newLedgers(t) {
		t.Run(name, func(t *testing.T) {
			testRunLedger(t, ledger)
		})
	}
}

func testRunLedger(t *testing.T, ledger interfaces.RunLedger) {
	ctx := context.Background()

	t.Run("Begin cancels runs of the same key", func(t *testing.T) {
		first := model.NewWorkflowRun("wf", "wf-1")
		cancelled, err := ledger.Begin(ctx, first)
		gt.NoError(t, err)
		gt.Equal(t, len(cancelled), 0)
		gt.NoError(t, ledger.Start(ctx, first.ID))

		other := model.NewWorkflowRun("wf", "wf-2")
		_, err = ledger.Begin(ctx, other)
		gt.NoError(t, err)

		second := model.NewWorkflowRun("wf", "wf-1")
		cancelled, err = ledger.Begin(ctx, second)
		gt.NoError(t, err)
		gt.Equal(t, cancelled, []string{first.ID})

		got, err := ledger.Get(ctx, first.ID)
		gt.NoError(t, err)
		gt.Equal(t, got.Status, model.RunStatusCancelled)

		got, err = ledger.Get(ctx, other.ID)
		gt.NoError(t, err)
		gt.Equal(t, got.Status, model.RunStatusPending)
	})

	t.Run("Finish does not overwrite a cancelled run", func(t *testing.T) {
		first := model.NewWorkflowRun("wf", "wf-3")
		_, err := ledger.Begin(ctx, first)
		gt.NoError(t, err)

		second := model.NewWorkflowRun("wf", "wf-3")
		_, err = ledger.Begin(ctx, second)
		gt.NoError(t, err)

		applied, err := ledger.Finish(ctx, first.ID, model.RunStatusSuccess, 0, "")
		gt.NoError(t, err)
		gt.False(t, applied)

		applied, err = ledger.Finish(ctx, second.ID, model.RunStatusFailure, 2, "tests failed")
		gt.NoError(t, err)
		gt.True(t, applied)

		got, err := ledger.Get(ctx, second.ID)
		gt.NoError(t, err)
		gt.Equal(t, got.Status, model.RunStatusFailure)
		gt.Equal(t, got.ExitCode, 2)
		gt.Equal(t, got.Reason, "tests failed")

		got, err = ledger.Get(ctx, first.ID)
		gt.NoError(t, err)
		gt.Equal(t, got.Status, model.RunStatusCancelled)
	})

	t.Run("terminal runs are not cancelled again", func(t *testing.T) {
		first := model.NewWorkflowRun("wf", "wf-4")
		_, err := ledger.Begin(ctx, first)
		gt.NoError(t, err)
		_, err = ledger.Finish(ctx, first.ID, model.RunStatusSkipped, 0, "")
		gt.NoError(t, err)

		cancelled, err := ledger.Begin(ctx, model.NewWorkflowRun("wf", "wf-4"))
		gt.NoError(t, err)
		gt.Equal(t, len(cancelled), 0)
	})

	t.Run("List filters by key and orders newest first", func(t *testing.T) {
		older := model.NewWorkflowRun("wf", "wf-5")
		older.CreatedAt = time.Now().Add(-time.Minute)
		_, err := ledger.Begin(ctx, older)
		gt.NoError(t, err)
		newer := model.NewWorkflowRun("wf", "wf-5")
		_, err = ledger.Begin(ctx, newer)
		gt.NoError(t, err)

		runs, err := ledger.List(ctx, "wf-5", 0)
		gt.NoError(t, err)
		gt.Equal(t, len(runs), 2)
		gt.Equal(t, runs[0].ID, newer.ID)
		gt.Equal(t, runs[1].ID, older.ID)

		runs, err = ledger.List(ctx, "wf-5", 1)
		gt.NoError(t, err)
		gt.Equal(t, len(runs), 1)
	})

	t.Run("unknown run", func(t *testing.T) {
		_, err := ledger.Get(ctx, "missing")
		gt.True(t, errors.Is(err, domain.ErrRepository))

		_, err = ledger.Finish(ctx, "missing", model.RunStatusSuccess, 0, "")
		gt.True(t, errors.Is(err, domain.ErrRepository))
	})
}

func TestSQLiteSharedBetweenHandles(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	a, err := repository.NewSQLite(path)
	gt.NoError(t, err)
	defer a.Close()
	b, err := repository.NewSQLite(path)
	gt.NoError(t, err)
	defer b.Close()

	first := model.NewWorkflowRun("wf", "wf-pr-7")
	_, err = a.Begin(ctx, first)
	gt.NoError(t, err)

	second := model.NewWorkflowRun("wf", "wf-pr-7")
	cancelled, err := b.Begin(ctx, second)
	gt.NoError(t, err)
	gt.Equal(t, cancelled, []string{first.ID})

	got, err := a.Get(ctx, first.ID)
	gt.NoError(t, err)
	gt.Equal(t, got.Status, model.RunStatusCancelled)
}
