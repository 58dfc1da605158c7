package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Anurag-122004/CIRC/internal/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config [field]",
	Short: "Display current configuration",
	Long: `Display the current configuration values.
This command shows all configuration values loaded from the config file and environment variables.

If a field name is specified, only that field's value is displayed.
Available fields: configfile, api_base_url, data_dir, request_timeout_seconds, listen_addr

Examples:
  circ config                # Show all configuration
  circ config api_base_url   # Show only the API base URL
  circ config data_dir       # Show only the data directory`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		if len(args) > 0 {
			field := strings.ToLower(args[0])
			switch field {
			case "configfile":
				fmt.Println(viper.ConfigFileUsed())
			case "api_base_url", "apibaseurl":
				fmt.Println(cfg.APIBaseURL)
			case "data_dir", "datadir":
				fmt.Println(cfg.DataDir)
			case "request_timeout_seconds", "requesttimeoutseconds":
				fmt.Println(cfg.RequestTimeoutSeconds)
			case "listen_addr", "listenaddr":
				fmt.Println(cfg.ListenAddr)
			default:
				fmt.Fprintf(os.Stderr, "Unknown field: %s\n", args[0])
				fmt.Fprintf(os.Stderr, "Available fields: configfile, api_base_url, data_dir, request_timeout_seconds, listen_addr\n")
				os.Exit(1)
			}
			return
		}

		fmt.Printf("ConfigFile: %s\n", viper.ConfigFileUsed())
		fmt.Printf("APIBaseURL: %s\n", cfg.APIBaseURL)
		fmt.Printf("DataDir: %s\n", cfg.DataDir)
		fmt.Printf("RequestTimeoutSeconds: %d\n", cfg.RequestTimeoutSeconds)
		fmt.Printf("ListenAddr: %s\n", cfg.ListenAddr)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
