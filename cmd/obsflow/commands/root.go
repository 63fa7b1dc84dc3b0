// Package commands implements the obsflow command line interface.
package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"obsflow/internal/config"
)

var (
	// Global flags
	configPath string
	jsonOutput bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "obsflow",
		Short: "Obsflow - observation workflow engine",
		Long: `Obsflow derives observation workflow states, validates observation
definitions against their call for proposals, and gates edits on the
current workflow state.

The serve command runs the HTTP read/check API over a persistent store;
workflow and check-edit inspect a store snapshot directly.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newWorkflowCommand())
	rootCmd.AddCommand(newCheckEditCommand())

	return rootCmd
}

// loadConfig resolves the effective configuration: defaults when no file
// flag was supplied, otherwise the validated file contents.
func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}
