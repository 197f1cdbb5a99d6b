// Package cmd provides CLI commands for psybrarian.
//
// Commands:
//   - serve: HTTP API server
//   - migrate: apply pending database migrations
//
// Signal handling and graceful shutdown are implemented for serve via
// context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/psybrarian/psybrarian/internal/log"
)

// Execute is the main entry point for the psybrarian CLI.
func Execute() error {
	logger := log.New(log.Config{
		Level: logLevel(),
		JSON:  os.Getenv("PSYBRARIAN_LOG_JSON") != "",
	})

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe(logger)
	case "migrate":
		return runMigrate(logger)
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

func logLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("psybrarian - psychedelics knowledge retrieval service")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  psybrarian serve [addr]  Start HTTP API server (default: 127.0.0.1:8420)")
	fmt.Println("  psybrarian migrate       Apply pending database migrations")
	fmt.Println("  psybrarian --version     Show version information")
	fmt.Println("  psybrarian --help        Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  OPENAI_API_KEY           Required: embedding provider API key")
	fmt.Println("  EXA_API_KEY              Required for serve: search provider API key")
	fmt.Println("  DATABASE_URL             Optional: overrides postgres_* settings")
	fmt.Println("  DEBUG                    Optional: enable debug logging")
	fmt.Println()
	fmt.Println("Configuration file: ~/.psybrarian/config.yaml (optional)")
}
