package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"overlayctl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or create overlayctl configuration",
	Long: `View or create overlayctl configuration.

Without arguments, displays the effective configuration: defaults merged
with the config file, OVERLAYCTL_* environment variables and flags.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at $XDG_CONFIG_HOME/overlayctl/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().BoolP("force", "f", false, "overwrite an existing config file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	out, err := cfg.YAML()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(w, "# config file: %s\n", used)
	} else {
		fmt.Fprintln(w, "# no config file, showing defaults and overrides")
	}
	_, err = w.Write(out)
	return err
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := viper.GetString("config")
	if path == "" {
		path = config.ConfigFile()
	}

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	out, err := config.Default().YAML()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", path)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := viper.ConfigFileUsed()
	if path == "" {
		path = config.ConfigFile()
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
