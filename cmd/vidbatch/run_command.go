package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"vidbatch/internal/batch"
	"vidbatch/internal/logging"
	"vidbatch/internal/runner"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var workers int
	var skipPreflight bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process all pending work items in one batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("vidbatch-%s.log", time.Now().UTC().Format("20060102T150405Z")))
			logger, err := logging.New(logging.Options{
				Level:            cfg.Logging.Level,
				Format:           cfg.Logging.Format,
				OutputPaths:      []string{logPath},
				ErrorOutputPaths: []string{logPath},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			r, err := runner.New(cfg, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			progress := func(message string, completed, total int) {
				fmt.Fprintf(out, "[%d/%d] %s\n", completed, total, message)
			}

			report, err := r.Run(cmd.Context(), runner.Options{
				Workers:       workers,
				Progress:      progress,
				SkipPreflight: skipPreflight,
			})
			if err != nil {
				return err
			}

			printReport(out, report)
			fmt.Fprintf(out, "Log written to %s\n", logPath)
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Override the configured worker count")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip environment readiness checks")
	return cmd
}

func printReport(out io.Writer, report batch.Report) {
	fmt.Fprintf(out, "Batch %s finished: %s\n", report.BatchID, report.Summary())
	if report.AllSucceeded() {
		fmt.Fprintln(out, "All items succeeded")
		return
	}
	if len(report.Errors) > 0 {
		fmt.Fprintln(out, "Failures:")
		for _, msg := range report.Errors {
			fmt.Fprintf(out, "  - %s\n", msg)
		}
	}
}
