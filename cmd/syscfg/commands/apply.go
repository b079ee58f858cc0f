package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/syscfg/syscfg/pkg/backend"
	"github.com/syscfg/syscfg/pkg/history"
	"github.com/syscfg/syscfg/pkg/reconcile"
)

func newApplyCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Install packages the manifest declares but the system lacks",
		Long: `Install every missing package, one install command per package. A failed
package never aborts the rest of the batch, extra packages are never
removed, and the manifest is not modified.

Exits 2 when any package fails to install.`,
		Example: `  # Bring this host up to its manifest
  syscfg apply

  # Show what would be installed
  syscfg apply --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			started := time.Now().UTC()
			report, err := current.reconciler().Apply(cmd.Context(), dryRun)
			if err != nil {
				return err
			}

			current.recordRun(cmd.Context(), &history.Run{
				Host:      report.Host,
				Op:        "apply",
				Backend:   string(report.Backend),
				Outcome:   applyOutcome(report),
				Missing:   len(report.Missing),
				Installed: report.Installed(),
				Failed:    report.Failed(),
				StartedAt: started,
			})

			if jsonOutput {
				if err := printJSON(report); err != nil {
					return err
				}
			} else {
				printApply(report)
			}

			if failed := report.Failed(); failed > 0 {
				return exitDrift(fmt.Sprintf("%d packages failed to install", failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report the missing set without installing")
	return cmd
}

func applyOutcome(report reconcile.ApplyReport) history.Outcome {
	switch {
	case report.Degraded:
		return history.OutcomeDegraded
	case report.Failed() > 0:
		return history.OutcomeFailed
	case len(report.Missing) > 0 && report.DryRun:
		return history.OutcomeDrift
	default:
		return history.OutcomeClean
	}
}

func printApply(report reconcile.ApplyReport) {
	if report.Degraded {
		fmt.Printf("degraded: %s\n", report.Reason)
		return
	}
	if len(report.Missing) == 0 {
		fmt.Println("nothing to install")
		return
	}
	if report.DryRun {
		for _, name := range report.Missing {
			fmt.Printf("  would install  %s\n", name)
		}
		return
	}
	for _, res := range report.Results {
		switch res.Status {
		case backend.StatusFailed:
			fmt.Printf("  failed     %s: %s\n", res.Name, res.Reason)
		case backend.StatusAlreadyPresent:
			fmt.Printf("  present    %s\n", res.Name)
		default:
			fmt.Printf("  installed  %s\n", res.Name)
		}
	}
	fmt.Printf("installed %d, failed %d\n", report.Installed(), report.Failed())
}
