package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/xelth-com/argoxlabels/internal/apperr"
	"github.com/xelth-com/argoxlabels/internal/services/labelsync"
	"github.com/xelth-com/argoxlabels/internal/services/powerbi"
)

var (
	syncPolicy  string
	syncMigrate bool
	syncReq     labelsync.Request
)

// syncCmd runs one Power BI to Postgres sync
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull production orders from Power BI into the label table",
	Long: `Authenticate with Azure AD, query the Power BI dataset, normalize and
deduplicate the rows, and upsert them in batches of 50.

Flags override the POWERBI_* settings from the environment.`,
	RunE: runSync,
}

func init() {
	f := syncCmd.Flags()
	f.StringVar(&syncReq.TenantID, "tenant", "", "Azure AD tenant id")
	f.StringVar(&syncReq.ClientID, "client-id", "", "Service principal client id")
	f.StringVar(&syncReq.ClientSecret, "client-secret", "", "Service principal secret")
	f.StringVar(&syncReq.Scope, "scope", "", "OAuth scope")
	f.StringVar(&syncReq.GroupID, "group", "", "Power BI workspace (group) id")
	f.StringVar(&syncReq.DatasetID, "dataset", "", "Power BI dataset id")
	f.StringVar(&syncReq.TableName, "source-table", "", "Table inside the dataset")
	f.StringVar(&syncPolicy, "policy", "", "Batch failure policy: abort or continue (default: SYNC_BATCH_POLICY)")
	f.BoolVar(&syncMigrate, "migrate", false, "Create the label table and its unique index first")
}

func runSync(cmd *cobra.Command, args []string) error {
	raw := cfg.Sync.BatchPolicy
	if cmd.Flags().Changed("policy") {
		raw = syncPolicy
	}
	policy, err := labelsync.PolicyFromString(raw)
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

	if syncMigrate {
		if err := store.Migrate(); err != nil {
			return err
		}
	}

	client := powerbi.NewClient(powerbi.Config{
		AuthURL: cfg.PowerBI.AuthURL,
		APIURL:  cfg.PowerBI.APIURL,
		Timeout: time.Duration(cfg.PowerBI.TimeoutSeconds) * time.Second,
	})
	pipeline := labelsync.NewPipeline(client, store, policy)

	out := cmd.OutOrStdout()
	req := syncReq.WithDefaults(labelsync.DefaultsFromConfig(cfg.PowerBI))
	result, err := pipeline.Run(ctx, req, func(line string) {
		fmt.Fprintf(out, "[%s] %s\n", time.Now().Format("15:04:05"), line)
	})
	if err != nil {
		if code := apperr.CodeOf(err); code != "" {
			return fmt.Errorf("%w [%s]", err, code)
		}
		return err
	}

	fmt.Fprintf(out, "✅ %d records written", result.RecordsWritten)
	if result.FailedBatches > 0 {
		fmt.Fprintf(out, " (%d batches failed)", result.FailedBatches)
	}
	fmt.Fprintln(out)
	return nil
}
