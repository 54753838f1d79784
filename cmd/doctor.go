package cmd

import (
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/arin/ask-cli/internal/ai"
	"github.com/arin/ask-cli/internal/config"
	"github.com/arin/ask-cli/internal/users"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check system health and configuration",
	Long: `Run a health check on your ask setup. Verifies the configuration,
the chat endpoint, the Ollama server used by serve, the user registry and
the safe-area insets.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		green := color.New(color.FgGreen)
		red := color.New(color.FgRed)
		yellow := color.New(color.FgYellow)
		dim := color.New(color.FgHiBlack)
		cyan := color.New(color.FgCyan, color.Bold)

		cyan.Fprintf(os.Stderr, "\n  🩺 ask doctor\n\n")

		pass, fail, warn := 0, 0, 0

		check := func(name string, fn func() (string, error)) {
			detail, err := fn()
			if err != nil {
				if strings.HasPrefix(err.Error(), "warn:") {
					yellow.Fprintf(os.Stderr, "  ⚠ %s\n", name)
					dim.Fprintf(os.Stderr, "    %s\n", strings.TrimPrefix(err.Error(), "warn:"))
					warn++
				} else {
					red.Fprintf(os.Stderr, "  ✗ %s\n", name)
					dim.Fprintf(os.Stderr, "    %s\n", err.Error())
					fail++
				}
			} else {
				green.Fprintf(os.Stderr, "  ✓ %s", name)
				if detail != "" {
					dim.Fprintf(os.Stderr, " (%s)", detail)
				}
				fmt.Fprintln(os.Stderr)
				pass++
			}
		}

		cfg, cfgErr := config.Load()
		check("Configuration readable", func() (string, error) {
			if cfgErr != nil {
				return "", cfgErr
			}
			return config.Dir(), nil
		})
		if cfgErr != nil {
			fmt.Fprintln(os.Stderr)
			red.Fprintf(os.Stderr, "  Fix the configuration before running the other checks.\n\n")
			return nil
		}

		check("Config directory", func() (string, error) {
			info, err := os.Stat(config.Dir())
			if err != nil {
				return "", fmt.Errorf("warn:~/.ask-cli not found, it will be created on first use")
			}
			if !info.IsDir() {
				return "", fmt.Errorf("~/.ask-cli exists but is not a directory")
			}
			return "", nil
		})

		check("Chat endpoint reachable", func() (string, error) {
			err := ai.NewClient(cfg, ai.WithLogger(logger)).Ping(cmd.Context())
			if err != nil {
				return "", fmt.Errorf("%v (set it with: ask config set-url <url>)", err)
			}
			return cfg.BaseURL, nil
		})

		check("Ollama server reachable (for serve)", func() (string, error) {
			client := &http.Client{Timeout: 3 * time.Second}
			resp, err := client.Get(cfg.OllamaURL + "/api/tags")
			if err != nil {
				return "", fmt.Errorf("warn:could not connect to %s, run: ollama serve", cfg.OllamaURL)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("warn:unexpected status %d", resp.StatusCode)
			}
			return cfg.OllamaURL, nil
		})

		check("User registry", func() (string, error) {
			reg, err := users.Open(cfg.UsersPath())
			if err != nil {
				return "", err
			}
			defer reg.Close()
			n, err := reg.Count(cmd.Context())
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d known users", n), nil
		})

		check("Safe-area insets", func() (string, error) {
			in := queryInsets(cmd.Context())
			if in.IsZero() {
				return "none", nil
			}
			return in.String(), nil
		})

		check("System info", func() (string, error) {
			return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH), nil
		})

		fmt.Fprintln(os.Stderr)
		total := pass + fail + warn
		if fail == 0 && warn == 0 {
			green.Fprintf(os.Stderr, "  All %d checks passed. You're good to go.\n\n", total)
		} else if fail == 0 {
			yellow.Fprintf(os.Stderr, "  %d passed, %d warnings. Everything works, but some things could be better.\n\n", pass, warn)
		} else {
			red.Fprintf(os.Stderr, "  %d passed, %d failed, %d warnings. Fix the failures above.\n\n", pass, fail, warn)
		}
		return nil
	},
}
