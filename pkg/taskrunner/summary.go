package taskrunner

import (
	"fmt"
	"strings"
	"time"

	"github.com/tyemirov/taskgraph/internal/results"
)

const exportQuoteCharactersConstant = " \t\n"

// RenderSummaryLine returns the summary line printed after multi-target runs.
func RenderSummaryLine(outcome Outcome) string {
	if len(outcome.Targets) <= 1 {
		return ""
	}

	succeeded := 0
	failed := 0
	cached := 0
	for _, target := range outcome.Targets {
		if target.Error != nil {
			failed++
			continue
		}
		succeeded++
		if target.Cached {
			cached++
		}
	}

	parts := []string{
		fmt.Sprintf("Summary: total.targets=%d", len(outcome.Targets)),
		fmt.Sprintf("succeeded=%d", succeeded),
		fmt.Sprintf("cached=%d", cached),
		fmt.Sprintf("failed=%d", failed),
		fmt.Sprintf("duration_human=%s", outcome.Duration.Round(time.Millisecond)),
		fmt.Sprintf("duration_ms=%d", outcome.Duration.Milliseconds()),
	}
	return strings.Join(parts, " ")
}

// RenderExportLine formats a result as a shell export, quoting values with whitespace.
func RenderExportLine(result results.NamedResult) string {
	value := result.Value
	if strings.ContainsAny(value, exportQuoteCharactersConstant) {
		value = `"` + value + `"`
	}
	return "export " + result.TaskName + "=" + value
}
