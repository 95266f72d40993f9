package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/pagepick/internal/server"
)

const (
	appName    = "pagepick"
	appVersion = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Proxy web pages and pick their elements for copy editing",
	Long: `Pagepick loads any web page through a rewriting proxy and injects an
element picker. Clicking an element in the proxied page reports a stable CSS
selector and the element's content to the embedding page.

It also provides:
  - A builder page at / with a live selection list
  - Copy suggestions from Ollama or Anthropic models
  - An MCP server exposing inspect, apply and generate tools`,
	Version:       appVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default: ./pagepick.kdl, then the global config)")
	rootCmd.PersistentFlags().StringSlice("env-file", []string{".env"}, ".env files to load before reading the environment")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: auto, text or json")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(configCmd)

	// Version template
	rootCmd.SetVersionTemplate(fmt.Sprintf("%s v%s\n", appName, appVersion))

	server.Version = appVersion
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}
