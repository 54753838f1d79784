package cmd

import (
	"fmt"

	"github.com/arin/ask-cli/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage ask configuration",
}

var setURLCmd = &cobra.Command{
	Use:   "set-url <base-url>",
	Short: "Set the chat endpoint base URL (default: " + config.DefaultBaseURL + ")",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetBaseURL(args[0]); err != nil {
			return fmt.Errorf("failed to save base URL: %w", err)
		}
		fmt.Printf("Base URL set to %s.\n", args[0])
		return nil
	},
}

var setModelCmd = &cobra.Command{
	Use:   "set-model <model-name>",
	Short: "Set the Ollama model used by serve (default: " + config.DefaultModel + ")",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetModel(args[0]); err != nil {
			return fmt.Errorf("failed to save model: %w", err)
		}
		fmt.Printf("Model set to %s.\n", args[0])
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Printf("Base URL:   %s\n", cfg.BaseURL)
		fmt.Printf("Timeout:    %s\n", cfg.Timeout())
		fmt.Printf("Model:      %s\n", cfg.Model)
		fmt.Printf("Ollama URL: %s\n", cfg.OllamaURL)
		fmt.Printf("Listen:     %s\n", cfg.ListenAddr)
		fmt.Printf("Users DB:   %s\n", cfg.UsersPath())
		fmt.Printf("Config Dir: %s\n", config.Dir())
		return nil
	},
}

func init() {
	configCmd.AddCommand(setURLCmd)
	configCmd.AddCommand(setModelCmd)
	configCmd.AddCommand(showCmd)
}
