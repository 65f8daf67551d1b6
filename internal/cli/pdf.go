package cli

import (
	"github.com/spf13/cobra"
)

var printPDFCmd = &cobra.Command{
	Use:   "print-pdf <id>",
	Short: "Print a page to PDF",
	Long: `Renders the tab with the given target ID to PDF via
Page.printToPDF.

Writes PDF bytes to --out (printing the file path), or raw PDF bytes to
stdout when --out is omitted.

Flags:
  --out FILE      Write the PDF to a file
  --landscape     Landscape orientation
  --scale FLOAT   Page scale, 0.1 to 2.0 (default 1.0)
  --backgrounds   Print CSS backgrounds

Examples:
  cdpctl print-pdf ABC123 --out page.pdf
  cdpctl print-pdf ABC123 --landscape --backgrounds --out page.pdf
  cdpctl print-pdf ABC123 > page.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runPrintPDF,
}

func init() {
	printPDFCmd.Flags().String("out", "", "Write the PDF to a file")
	printPDFCmd.Flags().Bool("landscape", false, "Landscape orientation")
	printPDFCmd.Flags().Float64("scale", 1.0, "Page scale, 0.1 to 2.0")
	printPDFCmd.Flags().Bool("backgrounds", false, "Print CSS backgrounds")
	rootCmd.AddCommand(printPDFCmd)
}

func runPrintPDF(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")
	landscape, _ := cmd.Flags().GetBool("landscape")
	scale, _ := cmd.Flags().GetFloat64("scale")
	backgrounds, _ := cmd.Flags().GetBool("backgrounds")

	ctx, cancel := commandContext()
	defer cancel()

	client, err := dialTarget(ctx, args[0])
	if err != nil {
		return outputError(err.Error())
	}
	defer func() { _ = client.Close() }()

	result, err := client.CallContext(ctx, "Page.printToPDF", map[string]any{
		"landscape":       landscape,
		"printBackground": backgrounds,
		"scale":           scale,
	})
	if err != nil {
		return outputError(err.Error())
	}

	return writeBase64Payload(result, out, "printToPDF produced no data", true)
}
