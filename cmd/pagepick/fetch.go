package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/pagepick/internal/dom"
	"github.com/standardbeagle/pagepick/internal/picker"
	"github.com/standardbeagle/pagepick/internal/protocol"
	"github.com/standardbeagle/pagepick/internal/proxy"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Fetch a page and list its selectable elements",
	Long: `Fetch a page the way the proxy does and list the elements the picker
would report, with their selectors.

With --html the rewritten document is printed instead, exactly as /proxy
would serve it.

Examples:
  pagepick fetch https://example.com
  pagepick fetch https://example.com --selector "h1, h2" --json
  pagepick fetch https://example.com --html > page.html`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringP("selector", "s", "", "CSS selector limiting which elements are listed")
	fetchCmd.Flags().IntP("limit", "n", dom.DefaultInspectLimit, "Maximum number of elements")
	fetchCmd.Flags().Int("max-text", 60, "Truncate element text to this many characters (0 = no truncation)")
	fetchCmd.Flags().Bool("json", false, "Print elements as JSON")
	fetchCmd.Flags().Bool("html", false, "Print the rewritten document instead of the element list")
	fetchCmd.Flags().Bool("no-picker", false, "With --html, do not inject the picker script")
	fetchCmd.Flags().Bool("strip-scripts", false, "Remove upstream <script> elements before listing or printing")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	fetcher := proxy.NewFetcher(cfg.Proxy, log)
	out := cmd.OutOrStdout()

	if asHTML, _ := flags.GetBool("html"); asHTML {
		page, err := fetcher.Fetch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		opts := proxy.PrepareOptions{StripScripts: cfg.Proxy.StripScripts}
		if noPicker, _ := flags.GetBool("no-picker"); !noPicker {
			if opts.Script, err = picker.Script(cfg.Picker); err != nil {
				return err
			}
		}
		_, err = out.Write(proxy.PrepareDocument(page, opts))
		return err
	}

	var opts dom.InspectOptions
	opts.Selector, _ = flags.GetString("selector")
	opts.Limit, _ = flags.GetInt("limit")
	opts.MaxText, _ = flags.GetInt("max-text")

	_, elements, err := proxy.InspectPage(cmd.Context(), fetcher, args[0], cfg.Proxy.StripScripts, opts)
	if err != nil {
		return err
	}

	if asJSON, _ := flags.GetBool("json"); asJSON {
		if elements == nil {
			elements = []protocol.ElementData{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(elements)
	}
	return printElements(out, elements)
}

// printElements writes one aligned row per element.
func printElements(w io.Writer, elements []protocol.ElementData) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TAG\tSELECTOR\tCONTENT")
	for _, el := range elements {
		content := el.Content.Text
		if el.Content.Type == protocol.ContentImage {
			content = el.Content.Src
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", el.TagName, el.Selector, content)
	}
	return tw.Flush()
}
