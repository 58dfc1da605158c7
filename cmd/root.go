package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Anurag-122004/CIRC/internal/config"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "circ",
	Short: "A client for the CIRC research-assistant backend",
	Long: `circ is a command-line client for the CIRC backend.
It drives the real-time chat and the image-analysis chat over the backend's
HTTP and websocket API, and keeps a durable local history of every session.
You can configure the tool using a TOML configuration file.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging, initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/circ/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix("CIRC")
	viper.AutomaticEnv()

	home, err := os.UserHomeDir()
	cobra.CheckErr(err)
	userConfigDir := filepath.Join(home, ".config", "circ")

	defaultConfig := config.NewDefaultConfig(filepath.Join(userConfigDir, "data"))

	viper.SetDefault("api_base_url", defaultConfig.APIBaseURL)
	viper.SetDefault("data_dir", defaultConfig.DataDir)
	viper.SetDefault("request_timeout_seconds", defaultConfig.RequestTimeoutSeconds)
	viper.SetDefault("listen_addr", defaultConfig.ListenAddr)

	viper.BindEnv("api_base_url", "CIRC_API_BASE_URL")
	viper.BindEnv("data_dir", "CIRC_DATA_DIR")
	viper.BindEnv("listen_addr", "CIRC_LISTEN_ADDR")

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	} else {
		viper.AddConfigPath(userConfigDir)
		viper.SetConfigType("toml")
		viper.SetConfigName("config")
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			}
		}
	}

	if verbose {
		log.Debug().Str("config_file", viper.ConfigFileUsed()).Msg("configuration loaded")
	}
}
