package main

import (
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/standardbeagle/pagepick/internal/llm"
	"github.com/standardbeagle/pagepick/internal/picker"
	"github.com/standardbeagle/pagepick/internal/proxy"
	"github.com/standardbeagle/pagepick/internal/tools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as MCP server",
	Long: `Run as an MCP (Model Context Protocol) server over stdio.

Tools:
  inspect_page   List a page's editable elements with their selectors
  apply_copy     Apply copy replacements and return the edited HTML
  generate_copy  Suggest improved copy for one element

Logs are written to stderr.`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().String("provider", "", "LLM provider: ollama or anthropic")
	mcpCmd.Flags().String("ollama-url", "", "Ollama server URL")
	mcpCmd.Flags().String("model", "", "LLM model name")
	mcpCmd.Flags().StringSlice("allow-host", nil, "Restrict fetching to these hosts")
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer cancel()

	script, err := picker.Script(cfg.Picker)
	if err != nil {
		return err
	}
	provider, err := llm.NewProvider(cfg.LLM, log)
	if err != nil {
		return err
	}
	generator := llm.NewGenerator(provider, llm.DefaultOptions(cfg.LLM), log)
	fetcher := proxy.NewFetcher(cfg.Proxy, log)

	// Create MCP server
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    appName,
			Version: appVersion,
		},
		&mcp.ServerOptions{
			HasTools: true,
			Instructions: `Page copy tools.

Use inspect_page to find the selectors of a page's headings, paragraphs,
links, buttons and images, generate_copy to draft new copy for one of them,
and apply_copy to preview the page with the new copy in place.`,
		},
	)
	tools.NewPageTools(fetcher, generator, script, cfg.Proxy.StripScripts, log).Register(server)

	log.WithField("provider", provider.Name()).Info("mcp server ready on stdio")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
