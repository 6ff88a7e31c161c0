package main

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fastygo/taskwarlock/domain"
	"github.com/fastygo/taskwarlock/internal/urgency"
)

// driftError reports that some predictions disagree with Taskwarrior. The
// table has already been printed, so main only sets the exit code.
type driftError struct {
	count int
}

func (e *driftError) Error() string {
	return fmt.Sprintf("%d task(s) drift beyond tolerance", e.count)
}

type drift struct {
	task      domain.Task
	predicted float64
	delta     float64
}

func newDriftCmd(a *app) *cobra.Command {
	var tolerance float64
	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Compare predicted urgency with the urgency Taskwarrior reports",
		Long: `drift scores every pending task and compares the prediction with the
urgency reported by Taskwarrior. It exits non-zero when any task differs by
more than --tolerance, which usually means the settings coefficients no longer
match the urgency.* values of the taskrc.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tolerance < 0 {
				return fmt.Errorf("--tolerance must not be negative")
			}
			tasks, s, err := a.load(cmd.Context())
			if err != nil {
				return err
			}
			drifts := computeDrift(tasks, s, a.now())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUUID\tPREDICTED\tREPORTED\tDELTA\tDESCRIPTION")
			over := 0
			for _, d := range drifts {
				if math.Abs(d.delta) <= tolerance {
					continue
				}
				over++
				fmt.Fprintf(w, "%d\t%s\t%.2f\t%.2f\t%+.2f\t%s\n",
					d.task.ID, shortUUID(d.task.UUID), d.predicted, d.task.Urgency, d.delta, d.task.Description)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d pending task(s) drift beyond %.2f\n", over, len(drifts), tolerance)
			if over > 0 {
				return &driftError{count: over}
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&tolerance, "tolerance", 0.5, "largest accepted difference between predicted and reported urgency")
	return cmd
}

// computeDrift scores pending tasks, largest absolute difference first.
func computeDrift(tasks []domain.Task, s domain.Settings, now time.Time) []drift {
	out := make([]drift, 0, len(tasks))
	for _, t := range tasks {
		if t.IsCompleted() {
			continue
		}
		p := urgency.Score(t, s.UrgencyCoefficients, s.UrgencyAgeMax, now)
		out = append(out, drift{task: t, predicted: p, delta: p - t.Urgency})
	}
	slices.SortStableFunc(out, func(x, y drift) int {
		return cmp.Compare(math.Abs(y.delta), math.Abs(x.delta))
	})
	return out
}
