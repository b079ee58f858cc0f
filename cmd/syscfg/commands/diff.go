package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/syscfg/syscfg/pkg/history"
)

func newDiffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show what apply would install",
		Long: `Preview the install plan: the packages the manifest declares that the
system lacks. Equivalent to apply --dry-run. Exits 2 when the plan is
non-empty.`,
		Example: `  # Preview before applying
  syscfg diff && echo "in sync"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			started := time.Now().UTC()
			report, err := current.reconciler().Apply(cmd.Context(), true)
			if err != nil {
				return err
			}

			outcome := history.OutcomeClean
			switch {
			case report.Degraded:
				outcome = history.OutcomeDegraded
			case len(report.Missing) > 0:
				outcome = history.OutcomeDrift
			}
			current.recordRun(cmd.Context(), &history.Run{
				Host:      report.Host,
				Op:        "diff",
				Backend:   string(report.Backend),
				Outcome:   outcome,
				Missing:   len(report.Missing),
				StartedAt: started,
			})

			if jsonOutput {
				if err := printJSON(report); err != nil {
					return err
				}
			} else if report.Degraded {
				fmt.Printf("degraded: %s\n", report.Reason)
			} else if len(report.Missing) == 0 {
				fmt.Println("in sync")
			} else {
				for _, name := range report.Missing {
					fmt.Printf("+ %s\n", name)
				}
			}

			if !report.Degraded && len(report.Missing) > 0 {
				return exitDrift(fmt.Sprintf("%d packages would be installed", len(report.Missing)))
			}
			return nil
		},
	}
	return cmd
}
