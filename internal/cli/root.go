// Package cli wires the lorekeep commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	log *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lorekeep",
		Short: "lorekeep — retrieval-grounded chat agent",
		Long:  "Lorekeep answers questions over your documents and the web with a tool-calling agent, streaming results over WebSocket.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logLevel
			if level == "" {
				level = "info"
			}
			log = logging.New(nil, level)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "lorekeep.yaml", "config file path")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
