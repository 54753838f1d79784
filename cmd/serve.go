package cmd

import (
	"fmt"
	"os"

	"github.com/arin/ask-cli/internal/ai"
	"github.com/arin/ask-cli/internal/config"
	"github.com/arin/ask-cli/internal/server"
	"github.com/arin/ask-cli/internal/users"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	serveAddr  string
	serveRate  int
	serveBurst int
	serveModel string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a chat endpoint backed by Ollama",
	Long: `Serve POST /api/chat, streaming answers from a local Ollama model as
newline-delimited JSON. Users identified by X-Telegram-User-* headers are
remembered in a local SQLite database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		addr := cfg.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		model := cfg.Model
		if serveModel != "" {
			model = serveModel
		}

		reg, err := users.Open(cfg.UsersPath())
		if err != nil {
			return fmt.Errorf("failed to open user registry: %w", err)
		}
		defer reg.Close()

		opts := []server.Option{server.WithLogger(logger), server.WithUsers(reg)}
		if serveRate > 0 {
			opts = append(opts, server.WithRateLimit(serveRate, serveBurst))
		}
		srv := server.New(ai.NewOllamaProvider(cfg.OllamaURL, model), opts...)

		dim := color.New(color.FgHiBlack)
		color.New(color.FgCyan, color.Bold).Fprintf(os.Stderr, "\n  ask serve\n")
		dim.Fprintf(os.Stderr, "  Listening on %s, answering with %s via %s\n\n", addr, model, cfg.OllamaURL)

		return srv.ListenAndServe(cmd.Context(), addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, "+config.DefaultListenAddr+")")
	serveCmd.Flags().StringVar(&serveModel, "model", "", "Ollama model to answer with (default from config)")
	serveCmd.Flags().IntVar(&serveRate, "rate", 30, "Requests per minute allowed per client, 0 disables limiting")
	serveCmd.Flags().IntVar(&serveBurst, "burst", 5, "Burst size for the per-client rate limit")
}
