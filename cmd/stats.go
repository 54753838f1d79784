package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/arin/ask-cli/internal/stats"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage statistics and response times",
	Long: `Display a dashboard of your ask usage: question counts, success rate,
time to first token, total answer time and most-asked questions.

Data is collected automatically and stored locally in ~/.ask-cli/stats.json.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := stats.Summarize()
		if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}

		cyan := color.New(color.FgCyan, color.Bold)
		green := color.New(color.FgGreen)
		yellow := color.New(color.FgYellow)
		dim := color.New(color.FgHiBlack)

		cyan.Fprintf(os.Stderr, "\n  📊 ask stats\n\n")

		if summary.TotalQuestions == 0 {
			dim.Fprintln(os.Stderr, "  No data yet. Ask a few questions and come back.")
			fmt.Fprintln(os.Stderr)
			return nil
		}

		green.Fprintf(os.Stderr, "  Questions:   ")
		fmt.Fprintf(os.Stderr, "%d total", summary.TotalQuestions)
		dim.Fprintf(os.Stderr, "  (%d today, %d this week)\n", summary.TodayCount, summary.ThisWeekCount)

		green.Fprintf(os.Stderr, "  Success:     ")
		if summary.SuccessRate >= 90 {
			fmt.Fprintf(os.Stderr, "%.0f%%\n", summary.SuccessRate)
		} else {
			yellow.Fprintf(os.Stderr, "%.0f%%\n", summary.SuccessRate)
		}

		green.Fprintf(os.Stderr, "  First token: ")
		fmt.Fprintf(os.Stderr, "%dms avg\n", summary.AvgFirstTokenMs)
		green.Fprintf(os.Stderr, "  Full answer: ")
		fmt.Fprintf(os.Stderr, "%dms avg\n", summary.AvgTotalMs)

		if len(summary.StatusBreakdown) > 0 {
			fmt.Fprintln(os.Stderr)
			cyan.Fprintln(os.Stderr, "  Outcomes")
			for status, count := range summary.StatusBreakdown {
				pct := float64(count) / float64(summary.TotalQuestions) * 100
				bar := strings.Repeat("█", int(pct/5))
				dim.Fprintf(os.Stderr, "  %-10s ", status)
				fmt.Fprintf(os.Stderr, "%s %d (%.0f%%)\n", bar, count, pct)
			}
		}

		if len(summary.SubcmdBreakdown) > 0 {
			fmt.Fprintln(os.Stderr)
			cyan.Fprintln(os.Stderr, "  Subcommands")
			for sub, count := range summary.SubcmdBreakdown {
				dim.Fprintf(os.Stderr, "  %-14s ", sub)
				fmt.Fprintf(os.Stderr, "%d\n", count)
			}
		}

		if len(summary.TopQuestions) > 0 {
			fmt.Fprintln(os.Stderr)
			cyan.Fprintln(os.Stderr, "  Top Questions")
			for i, tq := range summary.TopQuestions {
				dim.Fprintf(os.Stderr, "  %d. ", i+1)
				fmt.Fprintf(os.Stderr, "%s ", truncate(tq.Question, 50))
				dim.Fprintf(os.Stderr, "(%dx)\n", tq.Count)
			}
		}

		fmt.Fprintln(os.Stderr)
		return nil
	},
}
