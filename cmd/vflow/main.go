package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/sdelrio0/xyflow-flow/cmd/vflow/internal/config"
	"github.com/sdelrio0/xyflow-flow/pkg/debug"
)

var (
	version = "0.1.0-preview"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var verbose bool
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "vflow",
		Short: "vflow - node and edge change reconciler for flow documents",
		Long: `vflow applies, diffs and serves xyflow-style flow documents.
Every edit is a batch of node and edge changes reconciled against the
current document, locally or through the live sync server.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var (
				cfg *config.Config
				err error
			)
			if configPath != "" {
				cfg, err = config.LoadFile(configPath)
			} else {
				cfg, err = config.Load(".")
			}
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			level, err := log.ParseLevel(cfg.LogLevel)
			if err != nil {
				level = log.InfoLevel
			}
			if verbose {
				level = log.DebugLevel
			}

			logger := newLogger(os.Stderr, level)
			if verbose {
				debug.EnableLogging(logger.WithPrefix("trace"))
			}

			ctx := withConfig(cmd.Context(), cfg)
			ctx = withLogger(ctx, logger)
			cmd.SetContext(ctx)
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (defaults to vflow.{json,yaml,toml} in the current directory)")

	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newDiffCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newViewCommand())

	return rootCmd
}
