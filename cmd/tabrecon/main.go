// Command tabrecon reconciles spreadsheets from the command line: it lists
// sheets, inspects columns, runs vlookup/xlookup merges between two files,
// converts sheets to csv, json or parquet and flattens pivot tables to CSV.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/tabrecon/internal/config"
	"github.com/JonMunkholm/tabrecon/internal/core"
	"github.com/JonMunkholm/tabrecon/internal/logging"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		msg := core.MapError(err)
		fmt.Fprintf(os.Stderr, "error: %v\n%s (Code: %s). %s\n", err, msg.Message, msg.Code, msg.Action)
		stop()
		os.Exit(1)
	}
}

// app holds what every subcommand shares.
type app struct {
	stdout, stderr io.Writer
	logLevel       string
	logFormat      string
	blankRowLimit  int
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	cfg, err := config.Load()
	if err == nil {
		a.logLevel, a.logFormat = cfg.Logging.Level, cfg.Logging.Format
		a.blankRowLimit = cfg.Upload.BlankRowFilterLimit
	} else {
		a.logLevel, a.logFormat = "warn", "text"
	}

	root := &cobra.Command{
		Use:           "tabrecon",
		Short:         "Reconcile spreadsheet data",
		Long:          "tabrecon loads .xlsx and .csv files, joins them on key columns and exports the results.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(logging.New(a.stderr, a.logLevel, a.logFormat))
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", a.logLevel, "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", a.logFormat, "Log format: text, json")
	root.PersistentFlags().IntVar(&a.blankRowLimit, "blank-row-limit", a.blankRowLimit,
		"Drop blank rows only from sheets with fewer rows than this (negative disables)")

	root.AddCommand(
		a.sheetsCmd(),
		a.inspectCmd(),
		a.mergeCmd(),
		a.convertCmd(),
		a.flattenCmd(),
	)
	return root
}

// newService builds a service for one command run.
func (a *app) newService() *core.Service {
	return core.NewService(core.ServiceOptions{
		MaxConcurrentLoads: 2,
		Normalize:          core.NormalizeOptions{BlankRowFilterLimit: a.blankRowLimit},
	})
}
