package main

import (
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/standardbeagle/pagepick/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the proxy and builder server",
	Long: `Run the HTTP server that proxies pages with the element picker injected.

Endpoints:
  /                      Builder page: load a URL and collect selections
  /proxy?url=<target>    Proxied page with the picker injected
  /api/test-page         Built-in demo page
  /api/selections        Selection log (GET, POST, DELETE) and live stream
  /api/generate          Copy suggestions
  /api/personalize       Campaign personalization for several elements
  /api/commands          Structured page edit commands
  /api/apply             Apply copy replacements to a page
  /api/health            Health check

The server stops gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("listen", "l", "", "Listen address (default :3000)")
	serveCmd.Flags().String("provider", "", "LLM provider: ollama or anthropic")
	serveCmd.Flags().String("ollama-url", "", "Ollama server URL")
	serveCmd.Flags().String("model", "", "LLM model name")
	serveCmd.Flags().Float64("rate-limit", 0, "Requests per second per client IP (0 = unlimited)")
	serveCmd.Flags().Bool("strip-scripts", false, "Remove upstream <script> elements before injecting the picker")
	serveCmd.Flags().Bool("trust-proxy", false, "Take the client IP from X-Forwarded-For / X-Real-IP")
	serveCmd.Flags().StringSlice("allow-host", nil, "Restrict proxying to these hosts (repeatable, '.example.com' matches subdomains)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	// Create root context with signal cancellation
	ctx, cancel := signal.NotifyContext(cmd.Context(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer cancel()

	srv, err := server.New(cfg, log)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"listen":   cfg.Server.Listen,
		"provider": cfg.LLM.Provider,
		"model":    cfg.LLM.Model,
		"version":  appVersion,
	}).Info("starting pagepick")

	if err := srv.Run(ctx); err != nil {
		return err
	}
	log.Info("pagepick stopped")
	return nil
}
