package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/arin/ask-cli/cmd"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cmd.SetVersion(version)
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, cmd.ErrQuestionFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
