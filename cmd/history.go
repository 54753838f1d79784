package cmd

import (
	"fmt"

	"github.com/arin/ask-cli/internal/history"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyClear bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show previously asked questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyClear {
			if err := history.Clear(); err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			fmt.Println("History cleared.")
			return nil
		}

		entries, err := history.Load(historyLimit)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No history yet.")
			return nil
		}

		cyan := color.New(color.FgCyan)
		dim := color.New(color.FgHiBlack)
		red := color.New(color.FgRed)
		green := color.New(color.FgGreen)

		for i, e := range entries {
			dim.Printf("[%s] ", e.Timestamp.Format("2006-01-02 15:04:05"))
			fmt.Printf("%s ", e.Question)
			if e.Failed() {
				red.Printf("✗ %s\n", e.Error)
			} else {
				green.Println("✓")
				cyan.Printf("  → %s\n", truncate(e.Answer, 200))
			}
			if i < len(entries)-1 {
				fmt.Println()
			}
		}
		return nil
	},
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of history entries to show")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "Delete all history")
}
