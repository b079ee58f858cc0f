package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/syscfg/syscfg/pkg/registry"
)

func newGPGCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gpg",
		Short: "Track GPG key metadata",
		Long: `Register GPG keys by key ID and purpose. Only metadata is stored; key
material stays in the GPG keyring.`,
	}

	cmd.AddCommand(newGPGAddCommand())
	cmd.AddCommand(newGPGListCommand())
	cmd.AddCommand(newGPGRemoveCommand())

	return cmd
}

func newGPGAddCommand() *cobra.Command {
	var (
		scope   string
		purpose string
		email   string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "add <key-id>",
		Short: "Register a GPG key by ID",
		Example: `  # The signing key used on every host
  syscfg gpg add 0xDEADBEEF --purpose signing --email u@example.org

  # A host-local encryption key
  syscfg gpg add 0xCAFEF00D --purpose encryption --scope local`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := registry.GPGKey{
				Scope:   registry.Scope(scope),
				KeyID:   args[0],
				Purpose: registry.Purpose(purpose),
				Email:   email,
			}
			if err := current.registryStore().Add(key, force); err != nil {
				return err
			}
			fmt.Printf("registered %s\n", key.Identity())
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "shared", "shared or local")
	cmd.Flags().StringVar(&purpose, "purpose", "signing", "signing or encryption")
	cmd.Flags().StringVar(&email, "email", "", "identity the key belongs to")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing entry")
	return cmd
}

func newGPGListCommand() *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered GPG keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := current.registryStore().List(registry.Filter{
				Kind:  registry.KindGPG,
				Scope: registry.Scope(scope),
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(entries)
			}
			for _, e := range entries {
				key := e.(registry.GPGKey)
				fmt.Printf("%-7s %-20s %-12s %s\n", key.Scope, key.KeyID, key.Purpose, key.Email)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "", "filter by scope")
	return cmd
}

func newGPGRemoveCommand() *cobra.Command {
	var scope string

	cmd := &cobra.Command{
		Use:   "remove <key-id>",
		Short: "Remove a GPG key entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := current.registryStore().Remove(registry.KindGPG, registry.Scope(scope), args[0]); err != nil {
				return err
			}
			fmt.Printf("removed gpg/%s/%s\n", scope, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&scope, "scope", "shared", "shared or local")
	return cmd
}
