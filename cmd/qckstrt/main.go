package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	scopeFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "user",
			Aliases:  []string{"u"},
			Usage:    "Owner user id",
			EnvVars:  []string{"QCKSTRT_USER"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "tenant",
			Aliases: []string{"t"},
			Usage:   "Optional tenant id",
			EnvVars: []string{"QCKSTRT_TENANT"},
		},
	}

	return &cli.App{
		Name:  "qckstrt",
		Usage: "Register, ingest and query documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file",
				Value: ".env",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "register",
				Usage:     "Register a source locator without ingesting it",
				ArgsUsage: "<locator>",
				Flags:     scopeFlags,
				Action:    registerCommand,
			},
			{
				Name:      "ingest",
				Usage:     "Register a source locator and run extraction and embedding in-process",
				ArgsUsage: "<locator>",
				Flags:     scopeFlags,
				Action:    ingestCommand,
			},
			{
				Name:      "status",
				Usage:     "Show a document's pipeline status",
				ArgsUsage: "<document-id>",
				Action:    statusCommand,
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the user's documents",
				ArgsUsage: "<question>",
				Flags: append(scopeFlags, &cli.IntFlag{
					Name:  "top-k",
					Usage: "Number of chunks to retrieve (0 uses RETRIEVAL_TOP_K)",
				}),
				Action: askCommand,
			},
			{
				Name:      "delete",
				Usage:     "Delete a document and its embedding records",
				ArgsUsage: "<document-id>",
				Flags:     scopeFlags,
				Action:    deleteCommand,
			},
			{
				Name:  "token",
				Usage: "Issue an API bearer token for a user",
				Flags: append(scopeFlags, &cli.DurationFlag{
					Name:  "ttl",
					Usage: "Token lifetime",
					Value: 24 * time.Hour,
				}),
				Action: tokenCommand,
			},
		},
	}
}

func setup(c *cli.Context) error {
	if path := c.String("env-file"); path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}

	var level slog.Level
	switch strings.ToLower(c.String("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.String("log-level"))
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level})))
	return nil
}
