package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/syscfg/syscfg/pkg/history"
	"github.com/syscfg/syscfg/pkg/reconcile"
)

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show drift between the manifest and the installed packages",
		Long: `Compare this host's manifest against the packages its package manager
reports as explicitly installed.

Missing packages are declared but not installed. Extra packages are
installed but not declared; they are reported and never removed. Exits 2
when any package is missing.`,
		Example: `  # Check this host
  syscfg status

  # Machine-readable report
  syscfg status --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			started := time.Now().UTC()
			report, err := current.reconciler().Status(cmd.Context())
			if err != nil {
				return err
			}

			current.recordRun(cmd.Context(), &history.Run{
				Host:      report.Host,
				Op:        "status",
				Backend:   string(report.Backend),
				Outcome:   statusOutcome(report),
				Missing:   len(report.Drift.Missing),
				Extra:     len(report.Drift.Extra),
				StartedAt: started,
			})

			if jsonOutput {
				if err := printJSON(report); err != nil {
					return err
				}
			} else {
				printStatus(report)
			}

			if !report.Degraded && len(report.Drift.Missing) > 0 {
				return exitDrift(fmt.Sprintf("%d packages missing", len(report.Drift.Missing)))
			}
			return nil
		},
	}
	return cmd
}

func statusOutcome(report reconcile.StatusReport) history.Outcome {
	switch {
	case report.Degraded:
		return history.OutcomeDegraded
	case report.Drift.Clean():
		return history.OutcomeClean
	default:
		return history.OutcomeDrift
	}
}

func printStatus(report reconcile.StatusReport) {
	fmt.Printf("host %s (backend: %s)\n", report.Host, report.Backend)
	if report.Degraded {
		fmt.Printf("degraded: %s\n", report.Reason)
		return
	}
	fmt.Printf("satisfied: %d  missing: %d  extra: %d\n",
		len(report.Drift.Satisfied), len(report.Drift.Missing), len(report.Drift.Extra))
	for _, name := range report.Drift.Missing {
		fmt.Printf("  missing  %s\n", name)
	}
	for _, name := range report.Drift.Extra {
		fmt.Printf("  extra    %s\n", name)
	}
	if report.Drift.Clean() {
		fmt.Println("in sync")
	}
}
