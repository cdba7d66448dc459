package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/3leaps/perfgate/pkg/gate"
)

var (
	summaryBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)

	summaryHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("12"))

	summaryPassStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("10"))

	summaryFailStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("9"))

	summaryWarnStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11"))

	summaryMutedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("8"))
)

// renderSummary formats the outcome of a run for the terminal.
func renderSummary(cfg *gate.ThresholdConfig, res *gate.Result) string {
	var sb strings.Builder

	sb.WriteString(summaryHeaderStyle.Render("PERFORMANCE GATE: " + cfg.Build().Label()))
	sb.WriteString("\n")

	started, failedToStart := 0, 0
	if res.Submission != nil {
		started = len(res.Submission.Jobs)
		failedToStart = len(res.Submission.Failures)
	}
	info := fmt.Sprintf("Snapshots started: %d", started)
	if failedToStart > 0 {
		info += fmt.Sprintf("    Failed to start: %d", failedToStart)
	}
	sb.WriteString(summaryMutedStyle.Render(info))
	sb.WriteString("\n")

	if res.Verdict != nil {
		sb.WriteString("\n")
		for _, o := range res.Verdict.Outcomes {
			sb.WriteString(renderOutcome(o))
		}
	}

	if !res.Waited && res.Err == nil {
		sb.WriteString("\n")
		sb.WriteString(summaryMutedStyle.Render("Results not awaited"))
		sb.WriteString("\n")
	}

	if res.Err != nil {
		sb.WriteString("\n")
		line := "Error: " + res.Err.Error()
		if res.Passed {
			sb.WriteString(summaryWarnStyle.Render(line + " (ignored, fail on error disabled)"))
		} else {
			sb.WriteString(summaryFailStyle.Render(line))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	if res.Passed {
		sb.WriteString(summaryPassStyle.Bold(true).Render("RESULT: PASSED"))
	} else {
		sb.WriteString(summaryFailStyle.Bold(true).Render("RESULT: FAILED"))
	}

	return summaryBoxStyle.Render(sb.String())
}

func renderOutcome(o gate.EvaluationOutcome) string {
	var sb strings.Builder

	icon, style := "✓", summaryPassStyle
	if !o.Passed {
		icon, style = "✗", summaryFailStyle
	}
	line := fmt.Sprintf("%s test %d / snapshot %d   score %s   critical %s",
		icon, o.Job.TestID, o.Job.SnapshotID, optInt(o.Job.Score), optInt(o.Job.CriticalDefects))
	sb.WriteString(style.Render(line))
	sb.WriteString("\n")

	for _, reason := range o.Reasons {
		sb.WriteString("    - " + reason + "\n")
	}
	if o.Job.ResultURL != "" {
		sb.WriteString(summaryMutedStyle.Render("    " + o.Job.ResultURL))
		sb.WriteString("\n")
	}
	if o.TagError != nil {
		sb.WriteString(summaryWarnStyle.Render("    tags not applied: " + o.TagError.Error()))
		sb.WriteString("\n")
	}
	return sb.String()
}

func optInt(v *int) string {
	if v == nil {
		return "n/a"
	}
	return strconv.Itoa(*v)
}
