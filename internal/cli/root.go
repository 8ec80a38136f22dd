// Package cli implements the bron command line interface.
package cli

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/bronhq/bron/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"  _\n" +
		" | |__  _ __ ___  _ __\n" +
		" | '_ \\| '__/ _ \\| '_ \\\n" +
		" | |_) | | | (_) | | | |\n" +
		" |_.__/|_|  \\___/|_| |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "bron",
	Short: "Bron - Personal AI Assistant Backend",
	Long:  color.CyanString(logo) + "\nA task-centric personal assistant backend written in Go.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}
