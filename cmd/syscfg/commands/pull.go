package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/syscfg/syscfg/pkg/history"
	"github.com/syscfg/syscfg/pkg/reconcile"
)

func newPullCommand() *cobra.Command {
	var policy string

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Record the installed package set into this host's manifest",
		Long: `Query the package manager for explicitly installed packages and write
them into the manifest.

The replace policy (default) rewrites the manifest to mirror the system.
The merge policy unions the installed set in, preserving manually curated
entries.`,
		Example: `  # Mirror the system into the manifest
  syscfg pull

  # Keep manual entries while recording installed packages
  syscfg pull --policy merge`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if policy == "" {
				policy = current.cfg.PullPolicy
			}
			switch reconcile.Policy(policy) {
			case reconcile.PolicyReplace, reconcile.PolicyMerge:
			default:
				return fmt.Errorf("unknown pull policy %q", policy)
			}

			started := time.Now().UTC()
			report, err := current.reconciler().Pull(cmd.Context(), reconcile.Policy(policy))
			if err != nil {
				return err
			}

			outcome := history.OutcomeClean
			if report.Degraded {
				outcome = history.OutcomeDegraded
			}
			current.recordRun(cmd.Context(), &history.Run{
				Host:      report.Host,
				Op:        "pull",
				Backend:   string(report.Backend),
				Outcome:   outcome,
				StartedAt: started,
			})

			if jsonOutput {
				return printJSON(report)
			}
			if report.Degraded {
				fmt.Printf("degraded: %s\n", report.Reason)
				return nil
			}
			fmt.Printf("pulled %d packages into %s (policy: %s)\n", report.Count, report.Path, report.Policy)
			return nil
		},
	}

	cmd.Flags().StringVar(&policy, "policy", "", "pull policy: replace or merge (default from config)")
	return cmd
}
