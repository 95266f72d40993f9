package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/pagepick/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a documented default config file",
	Long: `Write a documented default config file.

Without a path the file is written to ./pagepick.kdl, or to the global config
location with --global. Existing files are never overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as JSON",
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().Bool("global", false, "Write the global config file instead of ./pagepick.kdl")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.ProjectConfigFile
	if global, _ := cmd.Flags().GetBool("global"); global {
		path = config.GlobalConfigPath()
		if path == "" {
			return fmt.Errorf("cannot determine the global config directory")
		}
	}
	if len(args) == 1 {
		path = args[0]
	}

	if err := config.WriteDefaultConfig(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, source, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if source == "" {
		source = "defaults"
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "# source: %s\n", source)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}
