package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var listCookiesCmd = &cobra.Command{
	Use:   "list-cookies <id>",
	Short: "List browser cookies",
	Long: `Lists all browser cookies via Network.getAllCookies, printed as
JSON. The target ID selects the connection; the cookie jar itself is
browser-wide.

Examples:
  cdpctl list-cookies ABC123
  cdpctl list-cookies ABC123 | jq '.cookies[].name'`,
	Args: cobra.ExactArgs(1),
	RunE: runListCookies,
}

func init() {
	rootCmd.AddCommand(listCookiesCmd)
}

func runListCookies(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	client, err := dialTarget(ctx, args[0])
	if err != nil {
		return outputError(err.Error())
	}
	defer func() { _ = client.Close() }()

	if err := enableDomains(ctx, client, "Network"); err != nil {
		return outputError(err.Error())
	}

	cookies, err := client.CallContext(ctx, "Network.getAllCookies", map[string]any{})
	if err != nil {
		return outputError(err.Error())
	}

	return outputRawJSON(os.Stdout, cookies)
}
