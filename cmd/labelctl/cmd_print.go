package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xelth-com/argoxlabels/internal/services/lookup"
	"github.com/xelth-com/argoxlabels/internal/services/printer"
)

var (
	printFormat string
	printOut    string
	printBranch int64
	printBatch  string
)

// printCmd renders a label PDF for one lot
var printCmd = &cobra.Command{
	Use:   "print <order>",
	Short: "Render the label PDF of a production order",
	Long: `Render the QR label of a stored production order.

Without --branch/--batch the most recent lot of the order is used.
The QR code points to PUBLIC_URL/view/<order>.`,
	Args: cobra.ExactArgs(1),
	RunE: runPrint,
}

func init() {
	f := printCmd.Flags()
	f.StringVar(&printFormat, "format", "argox", "Label format: argox (100x70mm, 3 columns) or tall (95.5x152.4mm)")
	f.StringVarP(&printOut, "out", "o", "", "Output file (default: etiqueta_<order>_<format>.pdf)")
	f.Int64Var(&printBranch, "branch", 0, "Branch id")
	f.StringVar(&printBatch, "batch", "", "Batch (lot) code")
}

func runPrint(cmd *cobra.Command, args []string) error {
	orderID, err := lookup.ParseOrderID(args[0])
	if err != nil {
		return err
	}
	format, err := printer.ParseFormat(printFormat)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	db, store, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	rec, ok, err := lookup.NewService(store).FindOne(ctx, orderID, lookup.Selector{BranchID: printBranch, BatchCode: printBatch})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no label stored for order %d", orderID)
	}

	pdf, err := printer.GenerateLabelPDF(rec, printer.DetailsURL(cfg.PublicURL, orderID), format)
	if err != nil {
		return err
	}

	path := printOut
	if path == "" {
		path = fmt.Sprintf("etiqueta_%d_%s.pdf", orderID, format)
	}
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "📄 %s (lote %q, filial %d)\n", path, rec.BatchCode, rec.BranchID)
	return nil
}
