package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var getDOMCmd = &cobra.Command{
	Use:   "get-dom <id>",
	Short: "Print the visible text of a page",
	Long: `Prints document.documentElement.innerText for the tab with the
given target ID.

Examples:
  cdpctl get-dom ABC123`,
	Args: cobra.ExactArgs(1),
	RunE: runGetDOM,
}

var getHTMLCmd = &cobra.Command{
	Use:   "get-html <id>",
	Short: "Print the HTML of a page",
	Long: `Prints document.documentElement.outerHTML for the tab with the
given target ID.

Examples:
  cdpctl get-html ABC123
  cdpctl get-html ABC123 > page.html`,
	Args: cobra.ExactArgs(1),
	RunE: runGetHTML,
}

var getDOMSnapshotCmd = &cobra.Command{
	Use:   "get-dom-snapshot <id>",
	Short: "Capture a DOM snapshot",
	Long: `Captures a structured DOM snapshot via DOMSnapshot.captureSnapshot
and prints it as JSON.

Examples:
  cdpctl get-dom-snapshot ABC123`,
	Args: cobra.ExactArgs(1),
	RunE: runGetDOMSnapshot,
}

func init() {
	rootCmd.AddCommand(getDOMCmd)
	rootCmd.AddCommand(getHTMLCmd)
	rootCmd.AddCommand(getDOMSnapshotCmd)
}

func runGetDOM(cmd *cobra.Command, args []string) error {
	return printEvaluatedString(args[0],
		"document.documentElement ? document.documentElement.innerText : ''")
}

func runGetHTML(cmd *cobra.Command, args []string) error {
	return printEvaluatedString(args[0],
		"document.documentElement ? document.documentElement.outerHTML : ''")
}

func runGetDOMSnapshot(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	client, err := dialTarget(ctx, args[0])
	if err != nil {
		return outputError(err.Error())
	}
	defer func() { _ = client.Close() }()

	if err := enableDomains(ctx, client, "DOMSnapshot"); err != nil {
		return outputError(err.Error())
	}

	snapshot, err := client.CallContext(ctx, "DOMSnapshot.captureSnapshot", map[string]any{
		"computedStyles": []string{},
	})
	if err != nil {
		return outputError(err.Error())
	}

	return outputRawJSON(os.Stdout, snapshot)
}

// printEvaluatedString evaluates a string-valued expression in the
// target page and prints the result.
func printEvaluatedString(idOrURL, expression string) error {
	ctx, cancel := commandContext()
	defer cancel()

	client, err := dialTarget(ctx, idOrURL)
	if err != nil {
		return outputError(err.Error())
	}
	defer func() { _ = client.Close() }()

	result, err := client.CallContext(ctx, "Runtime.evaluate", map[string]any{
		"expression":    expression,
		"returnByValue": true,
	})
	if err != nil {
		return outputError(err.Error())
	}

	value, err := evaluatedValue(result)
	if err != nil {
		return outputError(err.Error())
	}

	fmt.Fprintln(os.Stdout, value)
	return nil
}

// evaluatedValue extracts the string value from a Runtime.evaluate result.
func evaluatedValue(result json.RawMessage) (string, error) {
	var resp struct {
		Result struct {
			Value string `json:"value"`
		} `json:"result"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return "", fmt.Errorf("parse evaluate result: %w", err)
	}
	return resp.Result.Value, nil
}
