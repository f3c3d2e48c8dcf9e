package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"vidbatch/internal/naming"
	"vidbatch/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status [run-id]",
		Short: "Show recent batch runs, or the items of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				return printRunItems(cmd, st, args[0])
			}

			runs, err := st.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No batch runs recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					formatTimestamp(run.StartedAt),
					formatRunDuration(run),
					strconv.Itoa(run.Total),
					strconv.Itoa(run.Succeeded),
					strconv.Itoa(run.Failed),
					strconv.Itoa(run.Invalid),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Started", "Elapsed", "Total", "OK", "Failed", "Invalid"},
				rows, 3, 4, 5, 6,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of runs to show")
	return cmd
}

func printRunItems(cmd *cobra.Command, st *store.Store, runID string) error {
	items, err := st.RunItems(cmd.Context(), runID)
	if err != nil {
		return fmt.Errorf("list run items: %w", err)
	}
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintf(out, "No items recorded for run %s\n", runID)
		return nil
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ItemID,
			naming.DisplayTitle(item.Title),
			item.State,
			strconv.Itoa(item.Attempts),
			item.Worker,
			truncateCell(item.Error, 60),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Item", "Title", "State", "Attempts", "Worker", "Error"},
		rows, 3,
	))
	return nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatRunDuration(run store.RunSummary) string {
	if !run.Finished() {
		return "running"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}

func truncateCell(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-3]) + "..."
}
