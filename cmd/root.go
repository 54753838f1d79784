package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/arin/ask-cli/internal/ai"
	"github.com/arin/ask-cli/internal/config"
	"github.com/arin/ask-cli/internal/conversation"
	"github.com/arin/ask-cli/internal/history"
	"github.com/arin/ask-cli/internal/insets"
	"github.com/arin/ask-cli/internal/session"
	"github.com/arin/ask-cli/internal/stats"
	"github.com/arin/ask-cli/internal/ui"
	"github.com/spf13/cobra"
)

// ErrQuestionFailed is returned when the answer was already reported as a
// failure on the terminal, so main only needs to set the exit status.
var ErrQuestionFailed = errors.New("question failed")

var (
	verbose bool
	logger  = newLogger(false)
)

var rootCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask questions and watch the answers stream in",
	Long: `ask sends a question to a chat endpoint and streams the answer
into your terminal as it is generated.

Examples:
  ask what is a goroutine
  ask "why does my select block?"
  ask chat
  ask serve --addr :8080

Point ask at an endpoint with: ask config set-url http://localhost:8080`,
	Args:                       cobra.ArbitraryArgs,
	RunE:                       askOnce,
	SilenceUsage:               true,
	SilenceErrors:              true,
	TraverseChildren:           true,
	SuggestionsMinimumDistance: 1,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = newLogger(verbose)
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug details to stderr")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(debugCmd)
}

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the entry point called from main. Interrupts cancel the
// command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func askOnce(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	sess := newSession(cfg, "ask")
	h, err := sess.Submit(strings.Join(args, " "))
	if err != nil {
		sess.Close()
		return err
	}

	ctx := cmd.Context()
	tr := ui.NewTranscript(os.Stdout, queryInsets(ctx))
	rec := tr.Follow(ctx, sess.Store(), h, ui.NewSpinner("Thinking..."))
	if rec.Status.Terminal() {
		sess.Wait()
	}
	sess.Close()

	// An interrupt leaves the record to be failed by Close.
	rec, _ = sess.Store().Get(h)
	tr.Render(rec)
	if rec.Status == conversation.Failed {
		return ErrQuestionFailed
	}
	return nil
}

// newSession wires a session to the configured endpoint and records every
// finished question in history and stats.
func newSession(cfg *config.Config, subcommand string) *session.Session {
	client := ai.NewClient(cfg, ai.WithLogger(logger))
	return session.New(client,
		session.WithTimeout(cfg.Timeout()),
		session.WithLogger(logger),
		session.WithObserver(func(rec conversation.Record, timing session.Timing) {
			if err := history.Save(history.FromRecord(rec)); err != nil {
				logger.Warn("could not save history", "error", err)
			}
			r := stats.NewRecord(rec.Question, rec.Status.String(), timing.FirstToken, timing.Total,
				rec.Status == conversation.Complete, subcommand)
			if err := stats.Save(r); err != nil {
				logger.Warn("could not save stats", "error", err)
			}
		}),
	)
}

func queryInsets(ctx context.Context) insets.Insets {
	return insets.Query(ctx, insets.EnvSource{}, logger)
}
