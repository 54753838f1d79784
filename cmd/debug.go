package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/arin/ask-cli/internal/insets"
	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:    "debug",
	Short:  "Diagnostics for host integration",
	Hidden: true,
}

var debugInsetsCmd = &cobra.Command{
	Use:   "insets",
	Short: "Query the safe-area insets and log every step",
	Long: `Query the host for safe-area insets. Each step of the query is logged
to stderr and the result is printed to stdout. Hosts report insets through
the ` + insets.EnvKey + ` environment variable as "top,right,bottom,left".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		l := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		in := insets.Query(cmd.Context(), insets.EnvSource{}, l)
		fmt.Println(in.String())
		return nil
	},
}

func init() {
	debugCmd.AddCommand(debugInsetsCmd)
}
