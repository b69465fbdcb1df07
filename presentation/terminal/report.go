package terminal

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"biztrack_e2e/domain/entities"
	"biztrack_e2e/domain/interfaces"
)

// PrintSummary writes one line per result followed by totals
func PrintSummary(w io.Writer, results []*entities.RunResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tSTATUS\tDURATION\tDETAIL")

	counts := make(map[entities.RunStatus]int)
	for _, r := range results {
		if r == nil {
			continue
		}
		counts[r.Status]++

		detail := r.Title
		if r.Error != "" {
			detail = firstLine(r.Error)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ScenarioID, strings.ToUpper(string(r.Status)), r.Duration.Round(time.Millisecond), detail)
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d passed, %d failed, %d errors, %d skipped\n",
		counts[entities.RunPassed], counts[entities.RunFailed], counts[entities.RunError], counts[entities.RunSkipped])
}

// PrintScenarios lists scenarios with their tags, marking the ones guard
// treats as destructive
func PrintScenarios(ctx context.Context, w io.Writer, scenarios []*entities.Scenario, guard interfaces.Guard) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTEPS\tTAGS\tTITLE")
	for _, sc := range scenarios {
		tags := strings.Join(sc.Tags, ",")
		if guard.IsDestructive(ctx, sc) {
			tags += " (destructive)"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", sc.ID, len(sc.Steps), tags, sc.Title)
	}
	tw.Flush()
}

// PrintRun writes the details of one run
func PrintRun(w io.Writer, r *entities.RunResult) {
	fmt.Fprintf(w, "Run:      %s\n", r.RunID)
	fmt.Fprintf(w, "Scenario: %s %s\n", r.ScenarioID, r.Title)
	fmt.Fprintf(w, "Status:   %s\n", r.Status)
	fmt.Fprintf(w, "Started:  %s (%s)\n", r.StartedAt.Format(time.RFC3339), r.Duration.Round(time.Millisecond))
	if r.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", r.Error)
	}

	fmt.Fprintln(w, "\nSteps:")
	for _, step := range r.Steps {
		mark := "ok"
		if step.Error != "" {
			mark = "FAILED: " + step.Error
		}
		fmt.Fprintf(w, "  %2d. %s [%s] %s\n", step.Index+1, step.Description, step.Duration.Round(time.Millisecond), mark)
	}

	if r.Page != nil {
		fmt.Fprintf(w, "\nPage: %s (%s)\n", r.Page.URL, r.Page.Title)
	}
	if r.Screenshot != "" {
		fmt.Fprintf(w, "Screenshot: %s\n", r.Screenshot)
	}
	if r.TeardownError != "" {
		fmt.Fprintf(w, "Teardown: %s\n", r.TeardownError)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
