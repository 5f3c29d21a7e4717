package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"comictag/internal/batch"
	"comictag/internal/journal"
	"comictag/internal/logging"
)

// latestRunAlias selects the most recent run in `history last`.
const latestRunAlias = "last"

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var prune int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history [run-id|last]",
		Short: "Show recorded batch runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			j, err := journal.Open(cfg)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer j.Close()

			out := cmd.OutOrStdout()
			if cmd.Flags().Changed("prune") {
				if prune < 0 {
					return errors.New("--prune must be zero or greater")
				}
				removed, err := j.Prune(cmd.Context(), prune)
				if err != nil {
					return err
				}
				ctx.loggerValue().Info("journal pruned",
					logging.String(logging.FieldEventType, "journal_prune"),
					logging.Int64("removed", removed),
					logging.Int("kept", prune),
				)
				fmt.Fprintf(out, "Removed %d run(s); kept the newest %d\n", removed, prune)
				return nil
			}

			if len(args) == 1 {
				id := strings.TrimSpace(args[0])
				if id == latestRunAlias {
					runs, err := j.ListRuns(cmd.Context(), 1)
					if err != nil {
						return err
					}
					if len(runs) == 0 {
						return errors.New("no runs recorded yet")
					}
					id = runs[0].ID
				}
				run, err := j.GetRun(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, run)
				}
				renderRunDetail(cmd, run)
				return nil
			}

			runs, err := j.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				if runs == nil {
					runs = []journal.Run{}
				}
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					formatWhen(run.StartedAt),
					run.Mode,
					strconv.Itoa(run.Succeeded),
					strconv.Itoa(run.Failed),
					strconv.Itoa(run.Cancelled),
					formatDuration(run.StartedAt, run.FinishedAt),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Started", "Mode", "OK", "Failed", "Cancelled", "Duration"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().IntVar(&prune, "prune", 0, "Delete all but the newest N runs")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderRunDetail(cmd *cobra.Command, run journal.Run) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Run "+run.ID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "Started:  %s\n", formatWhen(run.StartedAt))
	fmt.Fprintf(out, "Duration: %s\n", formatDuration(run.StartedAt, run.FinishedAt))
	fmt.Fprintf(out, "Mode:     %s\n", run.Mode)
	fmt.Fprintf(out, "Source:   %s\n", run.SourceRoot)
	fmt.Fprintf(out, "Output:   %s\n", run.OutputRoot)
	fmt.Fprintf(out, "Result:   %d succeeded, %d failed, %d cancelled\n\n", run.Succeeded, run.Failed, run.Cancelled)

	rows := make([][]string, 0, len(run.Items))
	for _, item := range run.Items {
		detail := item.Destination
		if item.Error != "" {
			detail = item.Error
		}
		status := batch.Status(item.Status)
		rows = append(rows, []string{
			strconv.Itoa(item.Position),
			item.RelPath,
			item.Kind,
			colorizeText(item.Status, outcomeStatus(status), colorize),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable([]string{"#", "Item", "Kind", "Status", "Destination / Error"}, rows,
		[]columnAlignment{alignRight}))
}
