package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/xelth-com/argoxlabels/internal/services/lookup"
)

var lookupJSON bool

// lookupCmd prints the stored rows of a production order
var lookupCmd = &cobra.Command{
	Use:   "lookup <order>",
	Short: "Show stored labels for a production order",
	Args:  cobra.ExactArgs(1),
	RunE:  runLookup,
}

func init() {
	lookupCmd.Flags().BoolVar(&lookupJSON, "json", false, "Print JSON instead of a table")
}

func runLookup(cmd *cobra.Command, args []string) error {
	orderID, err := lookup.ParseOrderID(args[0])
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

	records, err := lookup.NewService(store).Find(ctx, orderID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if lookupJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	if len(records) == 0 {
		fmt.Fprintf(out, "No labels stored for order %d\n", orderID)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OP\tFILIAL\tLOTE\tREF\tDATA\tDESCRIÇÃO")
	for _, rec := range records {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\t%s\n",
			rec.OrderID, rec.BranchID, rec.BatchCode, rec.ProductCode,
			rec.OpenedAt.Format("2006-01-02"), rec.ProductDescription)
	}
	return tw.Flush()
}
