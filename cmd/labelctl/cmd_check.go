package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// checkCmd verifies the label table before a first sync
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the label table and its composite unique index",
	Long: `Upserts resolve conflicts on (ord_in_codigo, fil_in_codigo,
orl_st_lotefabricacao). This command fails when the table is missing or the
unique index over those columns does not exist.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		db, store, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := store.CheckSchema(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ %s is ready for upserts\n", store.Table())
		return nil
	},
}
