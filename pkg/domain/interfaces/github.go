package interfaces

import (
	"context"

	"github.com/m-mizutani/octgate/pkg/domain/model"
)

type GitHubService interface {
	ListChangedFiles(ctx context.Context, repo model.Repository, number int) ([]string, error)
	GetRun(ctx context.Context, repo model.Repository, runID int64) (*model.ActionsRun, error)
	ListActiveRuns(ctx context.Context, repo model.Repository, workflowID int64) ([]*model.ActionsRun, error)
	CancelRun(ctx context.Context, repo model.Repository, runID int64) error
}
