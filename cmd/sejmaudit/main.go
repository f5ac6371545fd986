package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"SejmAudit/internal/app"
	"SejmAudit/internal/config"
	"SejmAudit/internal/logging"
)

// auditFlags holds CLI overrides layered on top of file/env configuration.
type auditFlags struct {
	configPath      string
	term            int
	process         string
	outputDir       string
	cacheDir        string
	workers         int
	docWorkers      int
	skipAttachments bool
	logLevel        string
}

func main() {
	var flags auditFlags

	root := &cobra.Command{
		Use:   "sejmaudit",
		Short: "Audit legislative processes of the Sejm",
		Long: "sejmaudit reconstructs the procedural timeline of legislative processes,\n" +
			"extracts attachment text (with optical recognition for scans), and scores\n" +
			"each process against configurable risk indicators.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd.Context(), flags)
		},
	}

	f := root.Flags()
	f.StringVar(&flags.configPath, "config", "", "Path to YAML configuration file")
	f.IntVar(&flags.term, "term", 0, "Parliamentary term to audit")
	f.StringVar(&flags.process, "process", "", "Audit a single process number instead of the full term")
	f.StringVar(&flags.outputDir, "output", "", "Directory for per-process artifacts")
	f.StringVar(&flags.cacheDir, "cache", "", "Directory for the resumable fetch cache")
	f.IntVar(&flags.workers, "workers", 0, "Outer pool size (processes in parallel)")
	f.IntVar(&flags.docWorkers, "doc-workers", 0, "Inner pool size (documents per process)")
	f.BoolVar(&flags.skipAttachments, "skip-attachments", false, "Build trees and scores without downloading attachments")
	f.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runAudit(ctx context.Context, flags auditFlags) error {
	var cfg config.Config
	if flags.configPath != "" {
		cfg = config.LoadPath(flags.configPath)
	} else {
		cfg = config.Load()
	}
	applyFlags(&cfg, flags)

	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		return err
	}

	return application.Run(ctx)
}

func applyFlags(cfg *config.Config, flags auditFlags) {
	if flags.term > 0 {
		cfg.Scope.Term = flags.term
	}
	if flags.process != "" {
		cfg.Scope.Process = flags.process
	}
	if flags.outputDir != "" {
		cfg.Run.OutputDir = flags.outputDir
	}
	if flags.cacheDir != "" {
		cfg.Run.CacheDir = flags.cacheDir
	}
	if flags.workers > 0 {
		cfg.Run.Workers = flags.workers
	}
	if flags.docWorkers > 0 {
		cfg.Run.DocWorkers = flags.docWorkers
	}
	if flags.skipAttachments {
		off := false
		cfg.Run.DownloadAttachments = &off
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
}
