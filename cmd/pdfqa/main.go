package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"pdfqa/cmd/pdfqa/commands"
	"pdfqa/internal/logging"
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersion(version, commit, date)

	if err := commands.Execute(); err != nil {
		logger, lerr := logging.New(logging.Options{})
		if lerr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		logger.Error("pdfqa failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
