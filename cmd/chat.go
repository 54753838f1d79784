package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/arin/ask-cli/internal/config"
	"github.com/arin/ask-cli/internal/ui"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start a conversational session. Every question gets its own entry in
the transcript and its answer streams in as it is generated.

Type 'exit' or 'quit' to end the session. Ctrl-C cancels the question in
flight and ends the session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		ctx := cmd.Context()
		sess := newSession(cfg, "chat")
		defer sess.Close()

		tr := ui.NewTranscript(os.Stderr, queryInsets(ctx))
		cyan := color.New(color.FgCyan, color.Bold)
		dim := color.New(color.FgHiBlack)
		green := color.New(color.FgGreen)

		fmt.Fprintln(os.Stderr)
		cyan.Fprintf(os.Stderr, "%sask chat\n", tr.Indent())
		dim.Fprintf(os.Stderr, "%sConnected to %s\n", tr.Indent(), cfg.BaseURL)
		dim.Fprintf(os.Stderr, "%sType 'exit' to quit.\n\n", tr.Indent())

		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
		}()

		for {
			green.Fprintf(os.Stderr, "%syou → ", tr.Indent())

			var input string
			select {
			case line, ok := <-lines:
				if !ok {
					fmt.Fprintln(os.Stderr)
					return nil
				}
				input = strings.TrimSpace(line)
			case <-ctx.Done():
				fmt.Fprintln(os.Stderr)
				return nil
			}

			if input == "" {
				continue
			}
			if input == "exit" || input == "quit" || input == "bye" {
				dim.Fprintf(os.Stderr, "\n%sLater! 👋\n\n", tr.Indent())
				return nil
			}

			h, err := sess.Submit(input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%sError: %v\n\n", tr.Indent(), err)
				continue
			}

			rec := tr.Follow(ctx, sess.Store(), h, ui.NewSpinner("Thinking..."))
			if !rec.Status.Terminal() {
				// Interrupted mid-answer.
				sess.Close()
				rec, _ = sess.Store().Get(h)
				tr.Render(rec)
				return nil
			}
		}
	},
}
