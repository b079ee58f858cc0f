package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syscfg/syscfg/pkg/registry"
)

func newSSHCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ssh",
		Short: "Track SSH key metadata",
		Long: `Register SSH keys by their public halves. Only the fingerprint, path,
and comment are stored; private key files are never read.

Shared-scope keys travel between hosts, local-scope keys stay put.`,
	}

	cmd.AddCommand(newSSHAddCommand())
	cmd.AddCommand(newSSHListCommand())
	cmd.AddCommand(newSSHRemoveCommand())

	return cmd
}

func newSSHAddCommand() *cobra.Command {
	var (
		scope string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "add <id> <pubkey-path>",
		Short: "Register an SSH key from its public key file",
		Example: `  # Register the key used for code hosting everywhere
  syscfg ssh add github ~/.ssh/id_ed25519.pub

  # A key that only exists on this host
  syscfg ssh add hpc ~/.ssh/hpc_rsa.pub --scope local`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := registry.NewSSHKeyFromFile(registry.Scope(scope), args[0], args[1])
			if err != nil {
				return err
			}
			if err := current.registryStore().Add(key, force); err != nil {
				return err
			}
			fmt.Printf("registered %s (%s)\n", key.Identity(), key.Fingerprint)
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "shared", "shared or local")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing entry")
	return cmd
}

func newSSHListCommand() *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered SSH keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := current.registryStore().List(registry.Filter{
				Kind:  registry.KindSSH,
				Scope: registry.Scope(scope),
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(entries)
			}
			for _, e := range entries {
				key := e.(registry.SSHKey)
				fmt.Printf("%-7s %-16s %-50s %s\n", key.Scope, key.ID, key.Fingerprint, key.Path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "filter by scope")
	return cmd
}

func newSSHRemoveCommand() *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an SSH key entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := current.registryStore().Remove(registry.KindSSH, registry.Scope(scope), args[0]); err != nil {
				return err
			}
			fmt.Printf("removed ssh/%s/%s\n", scope, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "shared", "shared or local")
	return cmd
}
