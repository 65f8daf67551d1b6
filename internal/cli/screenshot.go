package cli

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/grantcarthew/cdpctl/internal/cdp"
	"github.com/spf13/cobra"
)

var screenshotCmd = &cobra.Command{
	Use:   "screenshot <id>",
	Short: "Capture a screenshot of a page",
	Long: `Captures a screenshot of the tab with the given target ID.

Writes decoded image bytes to --out (printing the file path), or the
base64 payload to stdout when --out is omitted.

Flags:
  --out FILE           Write the image to a file
  --full               Capture the full scrollable page, not just the
                       viewport (uses Page.getLayoutMetrics for the clip)
  --format png|jpeg    Image format (default png)
  --quality N          JPEG quality 1-100 (jpeg only)

Examples:
  cdpctl screenshot ABC123 --out page.png
  cdpctl screenshot ABC123 --full --out full.png
  cdpctl screenshot ABC123 --format jpeg --quality 80 --out page.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runScreenshot,
}

func init() {
	screenshotCmd.Flags().String("out", "", "Write the image to a file")
	screenshotCmd.Flags().Bool("full", false, "Capture the full scrollable page")
	screenshotCmd.Flags().String("format", "png", "Image format: png or jpeg")
	screenshotCmd.Flags().Int("quality", 0, "JPEG quality 1-100 (jpeg only)")
	rootCmd.AddCommand(screenshotCmd)
}

// clampQuality bounds a JPEG quality value to the protocol's 1-100 range.
func clampQuality(quality int) int {
	if quality < 1 {
		return 1
	}
	if quality > 100 {
		return 100
	}
	return quality
}

func runScreenshot(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")
	full, _ := cmd.Flags().GetBool("full")
	format, _ := cmd.Flags().GetString("format")
	quality, _ := cmd.Flags().GetInt("quality")

	if format != "png" && format != "jpeg" {
		return outputError("--format must be png or jpeg")
	}
	if cmd.Flags().Changed("quality") && format != "jpeg" {
		return outputError("--quality only applies to jpeg")
	}

	ctx, cancel := commandContext()
	defer cancel()

	client, err := dialTarget(ctx, args[0])
	if err != nil {
		return outputError(err.Error())
	}
	defer func() { _ = client.Close() }()

	if err := enableDomains(ctx, client, "Page"); err != nil {
		return outputError(err.Error())
	}

	params := map[string]any{
		"format":      format,
		"fromSurface": true,
	}
	if cmd.Flags().Changed("quality") {
		params["quality"] = clampQuality(quality)
	}
	if full {
		clip, err := fullPageClip(ctx, client)
		if err != nil {
			return outputError(err.Error())
		}
		params["clip"] = clip
	}

	result, err := client.CallContext(ctx, "Page.captureScreenshot", params)
	if err != nil {
		return outputError(err.Error())
	}

	return writeBase64Payload(result, out, "captureScreenshot produced no data", false)
}

// fullPageClip derives a capture clip covering the entire page content.
func fullPageClip(ctx context.Context, client *cdp.Client) (map[string]any, error) {
	result, err := client.CallContext(ctx, "Page.getLayoutMetrics", map[string]any{})
	if err != nil {
		return nil, err
	}

	var metrics struct {
		ContentSize struct {
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		} `json:"contentSize"`
	}
	if err := json.Unmarshal(result, &metrics); err != nil {
		return nil, fmt.Errorf("parse layout metrics: %w", err)
	}

	width := metrics.ContentSize.Width
	height := metrics.ContentSize.Height
	if width == 0 {
		width = 800
	}
	if height == 0 {
		height = 600
	}

	return map[string]any{
		"x":      0.0,
		"y":      0.0,
		"width":  width,
		"height": height,
		"scale":  1.0,
	}, nil
}

// writeBase64Payload writes a base64 "data" field from a CDP result to
// a file (decoded) or stdout. rawStdout selects decoded bytes on stdout
// instead of the base64 text.
func writeBase64Payload(result json.RawMessage, out, emptyMsg string, rawStdout bool) error {
	var resp struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(result, &resp); err != nil {
		return outputError(fmt.Sprintf("parse result: %v", err))
	}
	if resp.Data == "" {
		return outputError(emptyMsg)
	}

	if out == "" {
		if rawStdout {
			raw, err := base64.StdEncoding.DecodeString(resp.Data)
			if err != nil {
				return outputError(fmt.Sprintf("decode data: %v", err))
			}
			_, err = os.Stdout.Write(raw)
			return err
		}
		_, err := os.Stdout.WriteString(resp.Data)
		return err
	}

	raw, err := base64.StdEncoding.DecodeString(resp.Data)
	if err != nil {
		return outputError(fmt.Sprintf("decode data: %v", err))
	}
	if err := os.WriteFile(out, raw, 0o644); err != nil {
		return outputError(fmt.Sprintf("write %s: %v", out, err))
	}

	return outputSuccess(out)
}
