package soltest

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-soltest/types"
)

// printResultsTable renders one row per selected suite. Suites that never
// ran because an earlier one failed are listed as skipped.
func printResultsTable(w io.Writer, report *types.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Test Suite Results on %s (%s)", report.Network, formatDuration(report.Duration)))

	t.AppendHeader(table.Row{"#", "Suite", "Duration", "Exit Code", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "Suite", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Exit Code", Align: text.AlignRight},
	})

	var passed, failed int
	for i, result := range report.Results {
		if result.Succeeded() {
			passed++
		} else {
			failed++
		}
		t.AppendRow(table.Row{
			i + 1,
			result.Suite,
			formatDuration(result.Duration),
			result.ExitCode,
			getResultString(result.Status()),
		})
	}
	notRun := report.NotRun()
	for i, name := range notRun {
		t.AppendRow(table.Row{
			len(report.Results) + i + 1,
			name,
			"-",
			"-",
			getResultString(types.SuiteStatusSkip),
		})
	}

	switch {
	case report.FirstFailure != nil:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case len(notRun) > 0:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d passed, %d failed, %d skipped", passed, failed, len(notRun)),
		formatDuration(report.Duration),
		"",
		overallStatus(report),
	})

	t.Render()
}

func overallStatus(report *types.Report) string {
	if report.AllSucceeded() {
		return getResultString(types.SuiteStatusPass)
	}
	return getResultString(types.SuiteStatusFail)
}

// getResultString returns a marked string representing the suite result
func getResultString(status types.SuiteStatus) string {
	switch status {
	case types.SuiteStatusPass:
		return "✓ pass"
	case types.SuiteStatusSkip:
		return "- skip"
	default:
		return "✗ fail"
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(10 * time.Millisecond).String()
}
