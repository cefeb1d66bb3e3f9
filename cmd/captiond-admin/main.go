// Command captiond-admin runs maintenance tasks against the caption pipeline stores.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/target/caption-pipeline/config"
	"github.com/target/caption-pipeline/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
}

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 2 * time.Minute
)

func main() {
	logger := bootstrap.InitLogger(os.Getenv("LOG_LEVEL"))

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
		Out:    os.Stdout,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrations,
		},
		"post-status": {
			name:        "post-status",
			description: "Show the caption state of a post",
			run:         runPostStatus,
		},
		"job-status": {
			name:        "job-status",
			description: "Show a caption job from the shared (redis) job registry",
			run:         runJobStatus,
		},
		"stats": {
			name:        "stats",
			description: "Count posts per caption status",
			run:         runStats,
		},
		"reap": {
			name:        "reap",
			description: "Fail stale pending captions once and print the sweep result",
			run:         runReap,
		},
		"queue-depth": {
			name:        "queue-depth",
			description: "Show how many caption jobs wait in the redis queue",
			run:         runQueueDepth,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: captiond-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := writef(w, "  %-16s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

type migrateOptions struct {
	Timeout time.Duration
}

type lookupOptions struct {
	ID   string
	JSON bool
}

type outputOptions struct {
	JSON bool
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := migrateOptions{}
	fs.DurationVar(&opts.Timeout, "timeout", defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete")

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, err
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

// parseLookupFlags accepts the id either as --id or as the first positional argument.
func parseLookupFlags(name string, args []string) (lookupOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := lookupOptions{}
	fs.StringVar(&opts.ID, "id", "", "Identifier to look up")
	fs.BoolVar(&opts.JSON, "json", false, "Print JSON instead of a table")

	if err := fs.Parse(args); err != nil {
		return lookupOptions{}, err
	}
	if opts.ID == "" && fs.NArg() > 0 {
		opts.ID = fs.Arg(0)
	}
	if opts.ID == "" {
		return lookupOptions{}, fmt.Errorf("%s requires an id", name)
	}
	return opts, nil
}

func parseOutputFlags(name string, args []string) (outputOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := outputOptions{}
	fs.BoolVar(&opts.JSON, "json", false, "Print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return outputOptions{}, err
	}
	return opts, nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
