package cli

import (
	"github.com/grantcarthew/cdpctl/internal/cdp"
	"github.com/spf13/cobra"
)

var navigateCmd = &cobra.Command{
	Use:   "navigate <id> <url>",
	Short: "Navigate a tab to a URL",
	Long: `Navigates the tab with the given target ID to a URL.

Wait modes:
  none   Return as soon as Page.navigate is acknowledged (default)
  dom    Wait until document.readyState is interactive or complete
  load   Wait until document.readyState is complete
  idle   Wait until no network request has been active for 500ms

The dom and load modes poll current page state, so they cannot miss a
transition that happened before the poll. The idle mode watches the
network event stream and requires it to go quiet. All modes are bounded
by --timeout.

Examples:
  cdpctl navigate ABC123 https://example.com
  cdpctl navigate ABC123 https://example.com --wait load
  cdpctl navigate ABC123 https://example.com --wait idle --timeout 30s`,
	Args: cobra.ExactArgs(2),
	RunE: runNavigate,
}

func init() {
	navigateCmd.Flags().String("wait", "none", "Wait mode: none, dom, load, or idle")
	rootCmd.AddCommand(navigateCmd)
}

func runNavigate(cmd *cobra.Command, args []string) error {
	wait, _ := cmd.Flags().GetString("wait")
	switch wait {
	case "none", "dom", "load", "idle":
	default:
		return outputError("--wait must be none, dom, load, or idle")
	}

	ctx, cancel := commandContext()
	defer cancel()

	client, err := dialTarget(ctx, args[0])
	if err != nil {
		return outputError(err.Error())
	}
	defer func() { _ = client.Close() }()

	// Enable before navigating so the idle wait observes the full
	// request burst from the start of the load.
	if err := enableDomains(ctx, client, "Page", "Network", "Runtime"); err != nil {
		return outputError(err.Error())
	}

	if _, err := client.CallContext(ctx, "Page.navigate", map[string]any{"url": args[1]}); err != nil {
		return outputError(err.Error())
	}

	switch wait {
	case "dom":
		err = cdp.WaitForState(ctx, cdp.ReadyStateQuery(client), "interactive", "complete")
	case "load":
		err = cdp.WaitForState(ctx, cdp.ReadyStateQuery(client), "complete")
	case "idle":
		err = cdp.WaitForNetworkIdle(ctx, client, cdp.DefaultQuietPeriod)
	}
	if err != nil {
		return outputError(err.Error())
	}

	return outputSuccess(nil)
}
