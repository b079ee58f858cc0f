package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/syscfg/syscfg/pkg/history"
)

func newHistoryCommand() *cobra.Command {
	var (
		host     string
		limit    int
		allHosts bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent reconciliation runs",
		Long: `List the most recent status, pull, apply, and diff runs recorded in the
local run log, newest first.`,
		Example: `  # Last runs on this host
  syscfg history

  # Everything the log knows about
  syscfg history --all --limit 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if host == "" && !allHosts {
				host = current.cfg.Host
			}
			if allHosts {
				host = ""
			}

			store, err := history.Open(cmd.Context(), current.cfg.HistoryPath)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), host, limit)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(runs)
			}
			for _, run := range runs {
				fmt.Printf("%s  %-12s %-7s %-9s missing=%d installed=%d failed=%d\n",
					run.StartedAt.Format(time.RFC3339), run.Host, run.Op, run.Outcome,
					run.Missing, run.Installed, run.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "show runs for a specific host")
	cmd.Flags().BoolVar(&allHosts, "all", false, "show runs across all hosts")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to show")
	return cmd
}
