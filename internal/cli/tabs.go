package cli

import (
	"os"

	"github.com/grantcarthew/cdpctl/internal/browser"
	"github.com/spf13/cobra"
)

var listTabsCmd = &cobra.Command{
	Use:   "list-tabs",
	Short: "List open tabs and their target IDs",
	Long: `Lists every debuggable target exposed by the browser.

Each entry includes the target ID, type, title, URL, and the WebSocket
debugger URL other commands connect to. Pass a target ID from this list
to commands like navigate, screenshot, or eval.

Examples:
  cdpctl list-tabs
  cdpctl list-tabs --port 9223`,
	Args: cobra.NoArgs,
	RunE: runListTabs,
}

var browserInfoCmd = &cobra.Command{
	Use:   "browser-info",
	Short: "Show browser version information",
	Long: `Shows browser build, protocol version, user agent, and the
browser-level WebSocket debugger URL from /json/version.

Examples:
  cdpctl browser-info`,
	Args: cobra.NoArgs,
	RunE: runBrowserInfo,
}

var newTabCmd = &cobra.Command{
	Use:   "new-tab [url]",
	Short: "Open a new tab",
	Long: `Opens a new tab, optionally navigating it to a URL, and prints
the new target ID. Use --json to print the full target record.

Examples:
  cdpctl new-tab
  cdpctl new-tab https://example.com
  cdpctl new-tab https://example.com --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runNewTab,
}

var closeTabCmd = &cobra.Command{
	Use:   "close-tab <id>",
	Short: "Close a tab",
	Long: `Closes the tab with the given target ID and prints the
browser's acknowledgment.

Examples:
  cdpctl close-tab ABC123`,
	Args: cobra.ExactArgs(1),
	RunE: runCloseTab,
}

var activateTabCmd = &cobra.Command{
	Use:   "activate-tab <id>",
	Short: "Bring a tab to the front",
	Long: `Activates (focuses) the tab with the given target ID and prints
the browser's acknowledgment.

Examples:
  cdpctl activate-tab ABC123`,
	Args: cobra.ExactArgs(1),
	RunE: runActivateTab,
}

func init() {
	rootCmd.AddCommand(listTabsCmd)
	rootCmd.AddCommand(browserInfoCmd)
	rootCmd.AddCommand(newTabCmd)
	rootCmd.AddCommand(closeTabCmd)
	rootCmd.AddCommand(activateTabCmd)
}

func runListTabs(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	targets, err := browser.FetchTargets(ctx, Host, Port)
	if err != nil {
		return outputError(err.Error())
	}

	return outputJSON(os.Stdout, targets)
}

func runBrowserInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	info, err := browser.FetchVersion(ctx, Host, Port)
	if err != nil {
		return outputError(err.Error())
	}

	return outputJSON(os.Stdout, info)
}

func runNewTab(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	var pageURL string
	if len(args) > 0 {
		pageURL = args[0]
	}

	target, err := browser.NewTarget(ctx, Host, Port, pageURL)
	if err != nil {
		return outputError(err.Error())
	}

	if JSONOutput {
		return outputJSON(os.Stdout, target)
	}
	return outputSuccess(target.ID)
}

func runCloseTab(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	ack, err := browser.CloseTarget(ctx, Host, Port, args[0])
	if err != nil {
		return outputError(err.Error())
	}

	return outputSuccess(ack)
}

func runActivateTab(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	ack, err := browser.ActivateTarget(ctx, Host, Port, args[0])
	if err != nil {
		return outputError(err.Error())
	}

	return outputSuccess(ack)
}
