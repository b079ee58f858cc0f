package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syscfg/syscfg/pkg/registry"
)

func newRegistryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect and export the key and environment registry",
	}

	cmd.AddCommand(newRegistryStatusCommand())
	cmd.AddCommand(newRegistryExportCommand())

	return cmd
}

func newRegistryStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize registry contents",
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := current.registryStore().Summarize()
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(sum)
			}
			fmt.Printf("registry on %s (%d entries)\n", sum.Hostname, sum.Total)
			fmt.Printf("  ssh keys: %d shared, %d local\n",
				sum.SSHKeys[registry.ScopeShared], sum.SSHKeys[registry.ScopeLocal])
			fmt.Printf("  gpg keys: %d shared, %d local\n",
				sum.GPGKeys[registry.ScopeShared], sum.GPGKeys[registry.ScopeLocal])
			for typ, count := range sum.Environments {
				fmt.Printf("  env %-10s %d\n", typ, count)
			}
			return nil
		},
	}
	return cmd
}

func newRegistryExportCommand() *cobra.Command {
	var (
		scope         string
		includeSecret bool
	)

	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Export key metadata and public key files for another host",
		Long: `Write the key metadata document and copies of the public key files into
a directory, ready to carry to another host.

Private key material is never exported. With --include-secret the report
lists where the private counterparts live so the operator can move them
over a channel of their choosing; the files themselves are not read.`,
		Example: `  # Stage the shared keys for a new machine
  syscfg registry export /tmp/keys --scope shared`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := current.registryStore().Export(args[0], registry.Scope(scope), includeSecret)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(report)
			}
			fmt.Printf("wrote %s\n", report.MetadataPath)
			for _, path := range report.PublicFiles {
				fmt.Printf("copied %s\n", path)
			}
			if len(report.SecretPaths) > 0 {
				fmt.Println("private keys were NOT exported; move these yourself:")
				for _, path := range report.SecretPaths {
					fmt.Printf("  %s\n", path)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "shared", "shared or local")
	cmd.Flags().BoolVar(&includeSecret, "include-secret", false, "list private key locations in the report")
	return cmd
}
