package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/grantcarthew/cdpctl/internal/cdp"
	"github.com/spf13/cobra"
)

var consoleLogCmd = &cobra.Command{
	Use:   "console-log <id>",
	Short: "Stream console output from a page",
	Long: `Subscribes to console API calls and browser log entries for the
tab with the given target ID and prints them for --duration.

Event delivery is best-effort: the event queue is bounded, and a burst
larger than the queue drops the overflow rather than stalling the
connection.

Examples:
  cdpctl console-log ABC123
  cdpctl console-log ABC123 --duration 30s`,
	Args: cobra.ExactArgs(1),
	RunE: runConsoleLog,
}

var networkLogCmd = &cobra.Command{
	Use:   "network-log <id>",
	Short: "Stream network activity from a page",
	Long: `Subscribes to network events for the tab with the given target
ID and prints request/response lines for --duration.

Output format:
  REQ <url>             request sent
  RES <status> <url>    response received

Examples:
  cdpctl network-log ABC123
  cdpctl network-log ABC123 --duration 30s`,
	Args: cobra.ExactArgs(1),
	RunE: runNetworkLog,
}

func init() {
	consoleLogCmd.Flags().Duration("duration", 10*time.Second, "How long to stream events")
	networkLogCmd.Flags().Duration("duration", 10*time.Second, "How long to stream events")
	rootCmd.AddCommand(consoleLogCmd)
	rootCmd.AddCommand(networkLogCmd)
}

func runConsoleLog(cmd *cobra.Command, args []string) error {
	duration, _ := cmd.Flags().GetDuration("duration")
	return streamEvents(args[0], duration, []string{"Runtime", "Log"}, formatConsoleEvent)
}

func runNetworkLog(cmd *cobra.Command, args []string) error {
	duration, _ := cmd.Flags().GetDuration("duration")
	return streamEvents(args[0], duration, []string{"Network"}, formatNetworkEvent)
}

// streamEvents dials a target, enables domains, and prints formatted
// event lines until the duration elapses. The subscription is created
// before and only sees events published after it registers.
func streamEvents(idOrURL string, duration time.Duration, domains []string, format func(cdp.Event) (string, bool)) error {
	setupCtx, setupCancel := commandContext()
	defer setupCancel()

	client, err := dialTarget(setupCtx, idOrURL)
	if err != nil {
		return outputError(err.Error())
	}
	defer func() { _ = client.Close() }()

	if err := enableDomains(setupCtx, client, domains...); err != nil {
		return outputError(err.Error())
	}

	sub := client.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	for {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				return outputError("connection closed while streaming events")
			}
			if line, ok := format(evt); ok {
				fmt.Fprintln(os.Stdout, line)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// formatConsoleEvent renders console and log events as single lines.
func formatConsoleEvent(evt cdp.Event) (string, bool) {
	switch evt.Method {
	case "Runtime.consoleAPICalled":
		var params struct {
			Type string `json:"type"`
			Args []struct {
				Value any `json:"value"`
			} `json:"args"`
		}
		if err := json.Unmarshal(evt.Params, &params); err != nil {
			return "", false
		}
		values := make([]any, 0, len(params.Args))
		for _, arg := range params.Args {
			values = append(values, arg.Value)
		}
		data, _ := json.Marshal(values)
		return fmt.Sprintf("console.%s: %s", params.Type, data), true
	case "Log.entryAdded":
		return fmt.Sprintf("log: %s", evt.Params), true
	}
	return "", false
}

// formatNetworkEvent renders request/response events as single lines.
func formatNetworkEvent(evt cdp.Event) (string, bool) {
	switch evt.Method {
	case "Network.requestWillBeSent":
		var params struct {
			Request struct {
				URL string `json:"url"`
			} `json:"request"`
		}
		if err := json.Unmarshal(evt.Params, &params); err != nil {
			return "", false
		}
		return fmt.Sprintf("REQ %s", params.Request.URL), true
	case "Network.responseReceived":
		var params struct {
			Response struct {
				URL    string `json:"url"`
				Status int    `json:"status"`
			} `json:"response"`
		}
		if err := json.Unmarshal(evt.Params, &params); err != nil {
			return "", false
		}
		return fmt.Sprintf("RES %d %s", params.Response.Status, params.Response.URL), true
	}
	return "", false
}
