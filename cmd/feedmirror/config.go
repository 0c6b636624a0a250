package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"feedmirror/pkg/config"
	"feedmirror/pkg/ui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage feedmirror configuration files.

Configuration is merged from, highest priority first:
  - Command line flags
  - Environment variables (FEEDMIRROR_*)
  - .env and ~/.feedmirror.env
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write a configuration file with every option set to its default.

The file is created as .feedmirror.yaml in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and the paths it refers to",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".feedmirror.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(ui.Output, "\nNext steps:")
	fmt.Fprintln(ui.Output, "1. List the account ids to mirror under 'accounts'")
	fmt.Fprintln(ui.Output, "2. Run 'feedmirror config validate'")
	fmt.Fprintln(ui.Output, "3. Run 'feedmirror sync'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current configuration")
	fmt.Fprintln(ui.Output)
	fmt.Fprint(ui.Output, string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	var problems []error
	var warnings []string

	if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
		problems = append(problems, fmt.Errorf("cannot create output directory: %w", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Errorf("cannot create log directory: %w", err))
		}
	}
	if cfg.FeedSource.CookieFile != "" {
		if _, err := os.Stat(cfg.FeedSource.CookieFile); err != nil {
			problems = append(problems, fmt.Errorf("cookie file: %w", err))
		}
	}
	if len(cfg.Accounts) == 0 {
		warnings = append(warnings, "no accounts configured; pass account ids to 'feedmirror sync'")
	}
	for id := range cfg.Names {
		if !slices.Contains(cfg.Accounts, id) {
			warnings = append(warnings, fmt.Sprintf("name override for %d has no matching account", id))
		}
	}

	for _, w := range warnings {
		ui.PrintWarning("Warning", w)
	}
	if err := errors.Join(problems...); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("Accounts", fmt.Sprintf("%d", len(cfg.Accounts)))
	ui.PrintInfo("Archive", cfg.Output.BaseDirectory)
	ui.PrintInfo("Feed source", cfg.FeedSource.Command)
	ui.PrintInfo("Incremental", fmt.Sprintf("%t", cfg.Incremental))
	return nil
}
