package main

import (
	"cmp"
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fastygo/taskwarlock/domain"
	"github.com/fastygo/taskwarlock/internal/deps"
	"github.com/fastygo/taskwarlock/internal/urgency"
)

func newListCmd(a *app) *cobra.Command {
	var (
		all   bool
		limit int
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks by predicted urgency with the per-factor breakdown",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tasks, s, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			now := a.now()
			idx := deps.NewIndex(tasks)

			type row struct {
				task      domain.Task
				breakdown urgency.Breakdown
				blocked   bool
			}
			rows := make([]row, 0, len(tasks))
			for _, t := range tasks {
				if !all && t.IsCompleted() {
					continue
				}
				b := urgency.Explain(t, s.UrgencyCoefficients, s.UrgencyAgeMax, now)
				rows = append(rows, row{task: t, breakdown: b, blocked: idx.IsBlocked(t)})
			}
			slices.SortStableFunc(rows, func(x, y row) int {
				return cmp.Compare(y.breakdown.Total(), x.breakdown.Total())
			})
			if limit > 0 && len(rows) > limit {
				rows = rows[:limit]
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUUID\tURGENCY\tPRI\tDUE\tAGE\tTAGS\tNEXT\tPROJ\tBLOCKED\tDESCRIPTION")
			for _, r := range rows {
				b := r.breakdown
				fmt.Fprintf(w, "%d\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%s\t%s\n",
					r.task.ID, shortUUID(r.task.UUID), b.Total(),
					b.Priority, b.Due, b.Age, b.Tags, b.Next, b.Project,
					yesNo(r.blocked), r.task.Description)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include completed tasks")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n tasks")
	return cmd
}

func shortUUID(uuid string) string {
	if len(uuid) > 8 {
		return uuid[:8]
	}
	return uuid
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
