// Package commands implements the syscfg command tree.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/syscfg/syscfg/pkg/backend"
	"github.com/syscfg/syscfg/pkg/config"
	"github.com/syscfg/syscfg/pkg/history"
	"github.com/syscfg/syscfg/pkg/logging"
	"github.com/syscfg/syscfg/pkg/manifest"
	"github.com/syscfg/syscfg/pkg/reconcile"
	"github.com/syscfg/syscfg/pkg/registry"
	"github.com/syscfg/syscfg/pkg/syserr"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// app carries the resolved configuration and wired components for the
// lifetime of one command invocation.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
}

var current app

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "syscfg",
		Short: "syscfg - per-host package manifests and a cross-host registry",
		Long: `syscfg keeps one declarative package manifest per host and reconciles it
against the host's native package manager. It also maintains a small
registry of SSH key metadata, GPG key metadata, and discovered development
environments, split into a shared partition that travels between hosts and
a local one that stays put.

Extra packages are reported, never removed. Private key material is never
read or stored.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			level := cfg.Log.Level
			if verbose {
				level = "debug"
			}
			current = app{
				cfg:    cfg,
				logger: logging.New(logging.Options{Level: level, JSON: cfg.Log.JSON}),
			}
			return nil
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newPullCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newDiffCommand())
	rootCmd.AddCommand(newEnvCommand())
	rootCmd.AddCommand(newSSHCommand())
	rootCmd.AddCommand(newGPGCommand())
	rootCmd.AddCommand(newRegistryCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}

func (a *app) manifestStore() *manifest.Store {
	return manifest.NewStore(a.cfg.ManifestDir)
}

func (a *app) registryStore() *registry.Store {
	return registry.NewStore(a.cfg.RegistryDir, a.cfg.Host)
}

// reconciler wires the manifest store to the detected backend. A host with
// no supported package manager gets a nil backend and degraded operations.
func (a *app) reconciler() *reconcile.Reconciler {
	b, err := backend.Detect(nil, backend.Kind(a.cfg.Backend))
	if err != nil {
		if !syserr.IsNoBackend(err) {
			a.logger.Warn().Err(err).Msg("backend detection failed")
		}
		b = nil
	}
	return reconcile.New(a.manifestStore(), b, a.cfg.Host, logging.Component(a.logger, "reconcile"))
}

// recordRun appends to the run log. Best effort: history failures never
// fail the command that produced the run.
func (a *app) recordRun(ctx context.Context, run *history.Run) {
	store, err := history.Open(ctx, a.cfg.HistoryPath)
	if err != nil {
		a.logger.Warn().Err(err).Msg("run log unavailable")
		return
	}
	defer store.Close()
	if err := store.Record(ctx, run); err != nil {
		a.logger.Warn().Err(err).Msg("failed to record run")
	}
}

// printJSON writes the machine-readable form of a report to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// codeError carries a process exit code alongside the message.
type codeError struct {
	code int
	msg  string
}

func (e *codeError) Error() string { return e.msg }

// exitDrift signals drift or partial failure to the caller's shell.
func exitDrift(msg string) error {
	return &codeError{code: 2, msg: msg}
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	var ce *codeError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}
