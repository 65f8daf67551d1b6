package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var evalCmd = &cobra.Command{
	Use:   "eval <id> <expression>",
	Short: "Evaluate JavaScript in a page",
	Long: `Evaluates a JavaScript expression in the tab with the given
target ID and prints the raw Runtime.evaluate result as JSON.

Flags:
  --by-value        Return the result by value instead of a remote
                    object reference
  --await-promise   If the expression evaluates to a promise, wait for
                    it to settle

Examples:
  cdpctl eval ABC123 "document.title" --by-value
  cdpctl eval ABC123 "fetch('/api').then(r => r.status)" --by-value --await-promise`,
	Args: cobra.ExactArgs(2),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().Bool("by-value", false, "Return the result by value")
	evalCmd.Flags().Bool("await-promise", false, "Await a promise result")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	byValue, _ := cmd.Flags().GetBool("by-value")
	awaitPromise, _ := cmd.Flags().GetBool("await-promise")

	ctx, cancel := commandContext()
	defer cancel()

	client, err := dialTarget(ctx, args[0])
	if err != nil {
		return outputError(err.Error())
	}
	defer func() { _ = client.Close() }()

	result, err := client.CallContext(ctx, "Runtime.evaluate", map[string]any{
		"expression":    args[1],
		"returnByValue": byValue,
		"awaitPromise":  awaitPromise,
		"replMode":      true,
	})
	if err != nil {
		return outputError(err.Error())
	}

	return outputRawJSON(os.Stdout, result)
}
