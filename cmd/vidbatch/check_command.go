package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vidbatch/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify directories, credentials, and the bitable connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			results := preflight.RunAll(cmd.Context(), cfg)
			for _, result := range results {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}

			if failures := preflight.Failures(results); len(failures) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failures), len(results))
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
