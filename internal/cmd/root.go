// Package cmd implements the overlayctl command line.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"overlayctl/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "overlayctl",
	Short: "Overlay input-collection orchestrator",
	Long: `overlayctl drives an overlay input capability through a timed
demonstration: it installs mouse and keyboard callbacks, toggles input
collection on and off, and shuts the capability down when the step chain
completes or the global timeout fires.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $XDG_CONFIG_HOME/overlayctl/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "console log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "console log format (line, json)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("OVERLAYCTL")
	// e.g., OVERLAYCTL_TIMING_STEP_DELAY for timing.step_delay
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
