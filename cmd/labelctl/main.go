package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/xelth-com/argoxlabels/internal/config"
	"github.com/xelth-com/argoxlabels/internal/database"
)

var (
	// Global flags
	timeout time.Duration
	table   string

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "labelctl",
	Short: "Production label sync and printing tool",
	Long: `labelctl pulls production orders from Power BI into Postgres and
renders Argox QR labels from the stored rows.

Configuration is read from .env and the environment (POWERBI_*, PG_*,
DATABASE_URL, LABEL_TABLE, PUBLIC_URL).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if table != "" {
			cfg.Database.Table = table
		}
		return cfg.ValidateStorage()
	},
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")
	rootCmd.PersistentFlags().StringVar(&table, "table", "", "Label table (default: LABEL_TABLE)")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(printCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

// commandContext is cancelled on SIGINT/SIGTERM or when --timeout elapses
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// openStore connects to the configured database and returns the label store
func openStore() (*database.DB, *database.LabelStore, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, database.NewLabelStore(db, cfg.Database.Table), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
