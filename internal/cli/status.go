package cli

import (
	"fmt"
	"os"

	"github.com/bronhq/bron/internal/config"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("Bron Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("Bron Status")
		fmt.Printf("Version: %s\n", version)

		path, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				fmt.Println("Config:  ✓ Found (" + path + ")")
			} else {
				fmt.Println("Config:  ✗ Not found, defaults apply (" + path + ")")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config load error: %v\n", err)
			return
		}
		if cfg.Model.APIKey != "" {
			fmt.Println("API key: ✓ Set")
		} else {
			fmt.Println("API key: ✗ Missing (set BRON_MODEL_API_KEY)")
		}
		fmt.Printf("Model:   %s\n", cfg.Model.Name)
		fmt.Printf("DB:      %s\n", cfg.Paths.DBPath)
		fmt.Printf("Listen:  %s\n", cfg.Gateway.ListenAddr)
		if cfg.Events.Enabled {
			fmt.Printf("Events:  ✓ Kafka topic %s\n", cfg.Events.Topic)
		} else {
			fmt.Println("Events:  disabled")
		}
		if cfg.Notify.SlackToken != "" && cfg.Notify.SlackChannel != "" {
			fmt.Printf("Notify:  ✓ Slack channel %s\n", cfg.Notify.SlackChannel)
		} else {
			fmt.Println("Notify:  disabled")
		}
	},
}
