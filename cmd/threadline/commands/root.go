// Package commands provides the CLI commands for Threadline.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	logLevel  string
	logToFile bool
)

var rootCmd = &cobra.Command{
	Use:   "threadline",
	Short: "Threadline - interactive chat server backend",
	Long: `Threadline is the session backend of an interactive chat server. It
binds durable conversations to ephemeral connections, survives
reconnects without losing state, and manages per-session files and
tool connections.

Run 'threadline serve' to start the server.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&logToFile, "log-to-file", false, "Also write logs to a file")

	rootCmd.SetVersionTemplate(fmt.Sprintf("threadline %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(createSecretCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
