package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/m-mizutani/octgate/pkg/domain/model"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	failureColor = color.New(color.FgRed, color.Bold)
	skippedColor = color.New(color.FgYellow)
	mutedColor   = color.New(color.FgHiBlack)
	runningColor = color.New(color.FgCyan)
)

func statusIcon(status model.RunStatus) string {
	switch status {
	case model.RunStatusSuccess:
		return "✅"
	case model.RunStatusFailure:
		return "❌"
	case model.RunStatusCancelled:
		return "⚪"
	case model.RunStatusSkipped:
		return "⏭️"
	case model.RunStatusRunning:
		return "🔄"
	default:
		return "⏳"
	}
}

func statusColor(status model.RunStatus) *color.Color {
	switch status {
	case model.RunStatusSuccess:
		return successColor
	case model.RunStatusFailure:
		return failureColor
	case model.RunStatusSkipped:
		return skippedColor
	case model.RunStatusCancelled:
		return mutedColor
	default:
		return runningColor
	}
}

func statusText(status model.RunStatus) string {
	return statusColor(status).Sprintf("[%s]", status)
}

func printInvocation(w io.Writer, inv *model.JobInvocation) {
	if inv == nil {
		return
	}

	details := []string{}
	if inv.CacheKey != "" {
		cache := "cache miss"
		if inv.CacheHit {
			cache = "cache hit"
		}
		details = append(details, cache)
	}
	if inv.Status == model.RunStatusFailure {
		details = append(details, fmt.Sprintf("exit %d", inv.ExitCode))
	}
	if inv.Duration > 0 {
		details = append(details, inv.Duration.Round(time.Millisecond).String())
	}

	fmt.Fprintf(w, "\n%s %s %s", statusIcon(inv.Status), statusText(inv.Status), inv.RunID)
	if len(details) > 0 {
		fmt.Fprintf(w, " %s", mutedColor.Sprintf("(%s)", strings.Join(details, ", ")))
	}
	fmt.Fprintln(w)
	if inv.Reason != "" && inv.Status != model.RunStatusSuccess {
		fmt.Fprintf(w, "   %s\n", inv.Reason)
	}
}

func printSkipped(w io.Writer, message string) {
	fmt.Fprintf(w, "%s %s %s\n", statusIcon(model.RunStatusSkipped), statusText(model.RunStatusSkipped), message)
}

func printCancelled(w io.Writer, ids []int64) {
	if len(ids) == 0 {
		fmt.Fprintln(w, mutedColor.Sprint("no superseded runs"))
		return
	}
	for _, id := range ids {
		fmt.Fprintf(w, "%s %s run %d\n", statusIcon(model.RunStatusCancelled), statusText(model.RunStatusCancelled), id)
	}
}

func printRuns(w io.Writer, runs []*model.WorkflowRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, mutedColor.Sprint("no runs recorded"))
		return
	}
	for _, run := range runs {
		fmt.Fprintf(w, "%s %-12s %s %s %s\n",
			statusIcon(run.Status),
			statusText(run.Status),
			run.ID,
			run.ConcurrencyKey,
			mutedColor.Sprint(humanize.Time(run.CreatedAt)),
		)
		if run.Reason != "" {
			fmt.Fprintf(w, "   %s\n", run.Reason)
		}
	}
}

func printCacheEntries(w io.Writer, entries []*model.CacheEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, mutedColor.Sprint("dependency cache is empty"))
		return
	}

	var total int64
	for _, e := range entries {
		total += e.Size
		fmt.Fprintf(w, "%-10s %s %s\n",
			humanize.Bytes(uint64(e.Size)), // #nosec G115 - sizes are never negative
			e.Key,
			mutedColor.Sprint(humanize.Time(e.CreatedAt)),
		)
	}
	fmt.Fprintf(w, "%d entries, %s\n", len(entries), humanize.Bytes(uint64(total))) // #nosec G115
}

func printPruned(w io.Writer, removed []string) {
	for _, key := range removed {
		fmt.Fprintf(w, "removed %s\n", key)
	}
	fmt.Fprintf(w, "%d entries removed\n", len(removed))
}
