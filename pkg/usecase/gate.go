package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octgate/pkg/domain"
	"github.com/m-mizutani/octgate/pkg/domain/model"
)

// DocsCheckJob is the job id of the docs-change-detection job in `needs`
const DocsCheckJob = "get_docs_changes"

// ShouldRunDocsCheck gates the docs-change-detection job. Pull requests from
// forks only run when a maintainer added the override label.
func ShouldRunDocsCheck(event model.Event, policy model.GatePolicy) bool {
	if !event.IsForkPullRequest() {
		return true
	}
	return event.PullRequest.HasLabel(policy.Label())
}

// ShouldRun gates the downstream job on the docs-change-detection output.
// Only the exact string "true" runs the job. The event itself is not
// consulted here; whether the event may run CI at all is decided by
// ShouldRunDocsCheck, which Pipeline.Run applies first.
func ShouldRun(event model.Event, upstream model.UpstreamOutputs) bool {
	return upstream.HasChangesOutsideDocs()
}

// DetectDocsChanges reports whether any of the changed files falls outside
// the docs patterns.
func DetectDocsChanges(ctx context.Context, files []string, patterns []string) (bool, error) {
	logger := ctxlog.From(ctx)

	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return false, domain.ErrConfiguration.Wrap(goerr.New("invalid docs pattern: " + p))
		}
	}

	for _, f := range files {
		name := path.Clean(strings.TrimPrefix(f, "./"))
		if !matchAny(name, patterns) {
			logger.Debug("change outside docs", slog.String("file", name))
			return true, nil
		}
	}

	logger.Debug("only docs changed", slog.Int("files", len(files)))
	return false, nil
}

func matchAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// ParseNeeds extracts the docs-change-detection outputs from the JSON of
// `toJSON(needs)`. Malformed input, a missing job or a missing output yield
// empty outputs, which never trigger the job.
func ParseNeeds(ctx context.Context, data []byte, job string) model.UpstreamOutputs {
	var needs map[string]struct {
		Result  string            `json:"result"`
		Outputs map[string]string `json:"outputs"`
	}
	if err := json.Unmarshal(data, &needs); err != nil {
		ctxlog.From(ctx).Warn("ignoring malformed needs",
			slog.String("error", err.Error()),
		)
		return model.UpstreamOutputs{}
	}

	n, ok := needs[job]
	if !ok {
		return model.UpstreamOutputs{}
	}

	return model.UpstreamOutputs{
		Result:             n.Result,
		ChangesOutsideDocs: n.Outputs[model.ChangesOutsideDocsOutput],
	}
}
