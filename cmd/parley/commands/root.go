// Package commands provides the CLI commands for Parley.
package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/parley-ai/parley/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	configPath string
	logLevel   string
	prettyLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "Parley - AI chat session server",
	Long: `Parley runs AI chat sessions against configured model providers,
persists the conversation history, and streams turn progress to clients.

Run 'parley serve' to start the HTTP server.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Keys from a local .env are picked up before config loading so
		// {env:VAR} interpolation and API key fallbacks see them.
		godotenv.Load()

		logging.Init(logging.Config{
			Level:  logging.ParseLevel(logLevel),
			Pretty: prettyLogs,
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty-logs", false, "Human-readable console log output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("parley %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
