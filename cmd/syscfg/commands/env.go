package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/syscfg/syscfg/pkg/history"
	"github.com/syscfg/syscfg/pkg/logging"
	"github.com/syscfg/syscfg/pkg/registry"
	"github.com/syscfg/syscfg/pkg/scan"
)

func newEnvCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Track development environments on this host",
		Long: `Discover and track development environments: devenv and flake projects,
direnv directories, container and compose projects, Python projects.
Environments are always host-local registry entries keyed by path.`,
	}

	cmd.AddCommand(newEnvScanCommand())
	cmd.AddCommand(newEnvListCommand())
	cmd.AddCommand(newEnvAddCommand())
	cmd.AddCommand(newEnvRemoveCommand())
	cmd.AddCommand(newEnvTouchCommand())

	return cmd
}

func newEnvScanCommand() *cobra.Command {
	var (
		roots    []string
		maxDepth int
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Discover environments under the configured roots",
		Long: `Walk the scan roots looking for marker files (devenv.nix, flake.nix,
shell.nix, .envrc, compose files, Dockerfile, pyproject.toml) and merge
the discoveries into the local registry. Known environments get their
last-used time refreshed; nothing is ever removed by a scan.`,
		Example: `  # Scan the configured roots
  syscfg env scan

  # Scan somewhere else, deeper
  syscfg env scan --root ~/code --depth 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(roots) == 0 {
				roots = current.cfg.Scan.Roots
			}
			if maxDepth == 0 {
				maxDepth = current.cfg.Scan.MaxDepth
			}

			started := time.Now().UTC()
			scanner := scan.New(maxDepth, logging.Component(current.logger, "scan"))
			envs, err := scanner.Scan(cmd.Context(), roots)
			if err != nil {
				return err
			}

			stats, err := current.registryStore().UpsertEnvs(envs)
			if err != nil {
				return err
			}
			current.recordRun(cmd.Context(), &history.Run{
				Host:      current.cfg.Host,
				Op:        "scan",
				Outcome:   history.OutcomeClean,
				StartedAt: started,
			})

			if jsonOutput {
				return printJSON(struct {
					Found     int               `json:"found"`
					Added     int               `json:"added"`
					Refreshed int               `json:"refreshed"`
					Envs      []registry.DevEnv `json:"environments"`
				}{len(envs), stats.Added, stats.Refreshed, envs})
			}
			fmt.Printf("found %d environments: %d new, %d refreshed\n", len(envs), stats.Added, stats.Refreshed)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&roots, "root", nil, "directories to scan (default from config)")
	cmd.Flags().IntVar(&maxDepth, "depth", 0, "walk depth below each root (default from config)")
	return cmd
}

func newEnvListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked environments",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := current.registryStore().List(registry.Filter{Kind: registry.KindDevEnv})
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(entries)
			}
			for _, e := range entries {
				env := e.(registry.DevEnv)
				lastUsed := "never"
				if !env.LastUsed.IsZero() {
					lastUsed = env.LastUsed.Format("2006-01-02")
				}
				fmt.Printf("%-10s %-10s %s\n", env.Type, lastUsed, env.Path)
			}
			return nil
		},
	}
	return cmd
}

func newEnvAddCommand() *cobra.Command {
	var (
		envType string
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Track an environment by path",
		Long: `Register a directory as a tracked environment. Without --type the
directory's marker files decide the classification.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			typ := registry.EnvType(envType)
			if typ == "" {
				detected, ok := scan.Classify(path)
				if !ok {
					return fmt.Errorf("no environment markers in %s, pass --type", path)
				}
				typ = detected
			}

			env := registry.DevEnv{Path: path, Type: typ}
			if err := current.registryStore().Add(env, force); err != nil {
				return err
			}
			fmt.Printf("tracking %s as %s\n", path, typ)
			return nil
		},
	}

	cmd.Flags().StringVar(&envType, "type", "", "environment type (devenv, flake, nix-shell, direnv, container, compose, venv)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing entry")
	return cmd
}

func newEnvRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <path>",
		Short: "Stop tracking an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if err := current.registryStore().Remove(registry.KindDevEnv, registry.ScopeLocal, path); err != nil {
				return err
			}
			fmt.Printf("removed %s\n", path)
			return nil
		},
	}
	return cmd
}

func newEnvTouchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "touch <path>",
		Short: "Mark an environment as just used",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := current.registryStore().Touch(args[0]); err != nil {
				return err
			}
			return nil
		},
	}
	return cmd
}
