package usecase

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/google/go-github/v74/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octgate/pkg/domain"
	"github.com/m-mizutani/octgate/pkg/domain/interfaces"
	"github.com/m-mizutani/octgate/pkg/domain/model"
)

type GitHubService struct {
	client *github.Client
	logger *slog.Logger
}

func NewGitHubService(client *github.Client, logger *slog.Logger) interfaces.GitHubService {
	return &GitHubService{
		client: client,
		logger: logger,
	}
}

func (s *GitHubService) ListChangedFiles(ctx context.Context, repo model.Repository, number int) ([]string, error) {
	opts := &github.ListOptions{PerPage: 100}

	var files []string
	for {
		page, resp, err := s.client.PullRequests.ListFiles(ctx, repo.Owner, repo.Name, number, opts)
		if err != nil {
			return nil, domain.ErrAPIRequest.Wrap(err)
		}
		for _, f := range page {
			files = append(files, f.GetFilename())
			// a rename out of docs/ is a change outside docs
			if prev := f.GetPreviousFilename(); prev != "" {
				files = append(files, prev)
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	s.logger.Debug("fetched pull request files",
		slog.String("repo", repo.FullName()),
		slog.Int("number", number),
		slog.Int("count", len(files)),
	)
	return files, nil
}

func (s *GitHubService) GetRun(ctx context.Context, repo model.Repository, runID int64) (*model.ActionsRun, error) {
	run, _, err := s.client.Actions.GetWorkflowRunByID(ctx, repo.Owner, repo.Name, runID)
	if err != nil {
		return nil, domain.ErrAPIRequest.Wrap(err)
	}
	return convertRun(run), nil
}

func (s *GitHubService) ListActiveRuns(ctx context.Context, repo model.Repository, workflowID int64) ([]*model.ActionsRun, error) {
	var runs []*model.ActionsRun
	for _, status := range []string{"queued", "in_progress"} {
		opts := &github.ListWorkflowRunsOptions{
			Status:      status,
			ListOptions: github.ListOptions{PerPage: 100},
		}
		for {
			page, resp, err := s.client.Actions.ListWorkflowRunsByID(ctx, repo.Owner, repo.Name, workflowID, opts)
			if err != nil {
				return nil, domain.ErrAPIRequest.Wrap(err)
			}
			for _, run := range page.WorkflowRuns {
				runs = append(runs, convertRun(run))
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	}

	s.logger.Debug("fetched active workflow runs",
		slog.String("repo", repo.FullName()),
		slog.Int64("workflow_id", workflowID),
		slog.Int("count", len(runs)),
	)
	return runs, nil
}

func (s *GitHubService) CancelRun(ctx context.Context, repo model.Repository, runID int64) error {
	resp, err := s.client.Actions.CancelWorkflowRunByID(ctx, repo.Owner, repo.Name, runID)
	var accepted *github.AcceptedError
	if errors.As(err, &accepted) {
		return nil
	}
	if err != nil {
		// 409: the run already finished
		if resp != nil && resp.StatusCode == 409 {
			s.logger.Debug("run is not cancellable", slog.Int64("run_id", runID))
			return nil
		}
		return domain.ErrAPIRequest.Wrap(err)
	}
	return nil
}

func convertRun(run *github.WorkflowRun) *model.ActionsRun {
	r := &model.ActionsRun{
		ID:         run.GetID(),
		WorkflowID: run.GetWorkflowID(),
		Name:       run.GetName(),
		HeadBranch: run.GetHeadBranch(),
		HeadRepo:   run.GetHeadRepository().GetFullName(),
		Event:      run.GetEvent(),
		Status:     convertStatus(run.GetStatus()),
		URL:        run.GetHTMLURL(),
		CreatedAt:  run.GetCreatedAt().Time,
	}
	if run.GetStatus() == "completed" {
		r.Conclusion = convertConclusion(run.GetConclusion())
	}
	for _, pr := range run.PullRequests {
		r.PRNumbers = append(r.PRNumbers, pr.GetNumber())
	}
	return r
}

func convertStatus(status string) model.WorkflowStatus {
	switch status {
	case "queued", "waiting", "pending", "requested":
		return model.WorkflowStatusQueued
	case "in_progress":
		return model.WorkflowStatusInProgress
	case "completed":
		return model.WorkflowStatusCompleted
	default:
		return model.WorkflowStatus(status)
	}
}

func convertConclusion(conclusion string) model.WorkflowConclusion {
	switch conclusion {
	case "success":
		return model.WorkflowConclusionSuccess
	case "failure":
		return model.WorkflowConclusionFailure
	case "cancelled":
		return model.WorkflowConclusionCancelled
	case "skipped":
		return model.WorkflowConclusionSkipped
	case "timed_out":
		return model.WorkflowConclusionTimedOut
	default:
		return model.WorkflowConclusion(conclusion)
	}
}

// LoadEvent reads the webhook payload GitHub Actions stores at
// GITHUB_EVENT_PATH.
func LoadEvent(env *ActionsEnv) (*model.Event, error) {
	if env.EventName == "" || env.EventPath == "" {
		return nil, domain.ErrConfiguration.Wrap(goerr.New("GITHUB_EVENT_NAME and GITHUB_EVENT_PATH are required"))
	}

	payload, err := os.ReadFile(env.EventPath) // #nosec G304 - path is provided by the runner
	if err != nil {
		return nil, domain.ErrConfiguration.Wrap(err)
	}

	return ParseEvent(env.EventName, payload, env)
}

// ParseEvent converts a pull_request or workflow_dispatch payload
func ParseEvent(name string, payload []byte, env *ActionsEnv) (*model.Event, error) {
	event := &model.Event{
		Kind:       model.EventKind(name),
		Repository: model.ParseRepository(env.Repository),
		Workflow:   env.Workflow,
		Ref:        env.Ref,
	}

	switch name {
	case string(model.EventPullRequest), "pull_request_target":
		event.Kind = model.EventPullRequest
		parsed, err := github.ParseWebHook("pull_request", payload)
		if err != nil {
			return nil, domain.ErrConfiguration.Wrap(goerr.Wrap(err, "failed to parse pull_request payload"))
		}
		ev, ok := parsed.(*github.PullRequestEvent)
		if !ok || ev.PullRequest == nil {
			return nil, domain.ErrConfiguration.Wrap(goerr.New("pull_request payload has no pull request"))
		}

		pr := ev.GetPullRequest()
		event.PullRequest = &model.PullRequest{
			Number:     pr.GetNumber(),
			BaseBranch: pr.GetBase().GetRef(),
			HeadRepo:   pr.GetHead().GetRepo().GetFullName(),
			Fork:       pr.GetHead().GetRepo().GetFork(),
		}
		for _, l := range pr.Labels {
			event.PullRequest.Labels = append(event.PullRequest.Labels, l.GetName())
		}
		if event.Repository == (model.Repository{}) {
			event.Repository = model.ParseRepository(ev.GetRepo().GetFullName())
		}

	case string(model.EventWorkflowDispatch):
		parsed, err := github.ParseWebHook("workflow_dispatch", payload)
		if err != nil {
			return nil, domain.ErrConfiguration.Wrap(goerr.Wrap(err, "failed to parse workflow_dispatch payload"))
		}
		if ev, ok := parsed.(*github.WorkflowDispatchEvent); ok {
			if event.Ref == "" {
				event.Ref = ev.GetRef()
			}
			if event.Repository == (model.Repository{}) {
				event.Repository = model.ParseRepository(ev.GetRepo().GetFullName())
			}
		}

	default:
		return nil, domain.ErrConfiguration.Wrap(goerr.New("unsupported event: " + name))
	}

	return event, nil
}
