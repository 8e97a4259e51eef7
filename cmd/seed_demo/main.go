package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/xelth-com/argoxlabels/internal/config"
	"github.com/xelth-com/argoxlabels/internal/database"
	"github.com/xelth-com/argoxlabels/internal/models"
	"github.com/xelth-com/argoxlabels/internal/services/labelsync"
	"github.com/xelth-com/argoxlabels/internal/services/powerbi"
)

// demoRows look like executeQueries output so they go through the same
// normalization as a real sync
var demoRows = []map[string]interface{}{
	{"[ord_in_codigo]": 244, "[ord_dt_abertura_real]": "2025-02-03T07:45:00", "[fil_in_codigo]": 1,
		"[pro_st_alternativo]": "X1", "[pro_st_descricao]": "Camiseta algodão manga curta",
		"[orl_st_lotefabricacao]": "L-2502-01", "[esv_st_valor]": "100% algodão penteado"},
	{"[ord_in_codigo]": 244, "[ord_dt_abertura_real]": "2025-02-03T07:45:00", "[fil_in_codigo]": 1,
		"[pro_st_alternativo]": "X1", "[pro_st_descricao]": "Camiseta algodão manga curta",
		"[orl_st_lotefabricacao]": "L-2502-02", "[esv_st_valor]": "100% algodão penteado"},
	{"[ord_in_codigo]": 245, "[ord_dt_abertura_real]": "2025-02-04T10:00:00", "[fil_in_codigo]": 2,
		"[pro_st_alternativo]": "TS-220", "[pro_st_descricao]": "Tecido técnico respirável",
		"[orl_st_lotefabricacao]": "A7", "[esv_st_valor]": "88% poliéster 12% elastano"},
	{"[ord_in_codigo]": 246, "[pro_st_alternativo]": "MNT-01"},
}

func main() {
	fmt.Println("🌱 Label Demo Data Seeder")
	fmt.Println(strings.Repeat("=", 60))

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	if err := cfg.ValidateStorage(); err != nil {
		log.Fatalf("❌ %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	store := database.NewLabelStore(db, cfg.Database.Table)

	// Run migrations first
	fmt.Printf("🔨 Migrating %s...\n", store.Table())
	if err := store.Migrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	records, err := demoRecords()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := labelsync.NewUpserter(store, labelsync.PolicyAbort).Upsert(ctx, records, func(format string, args ...interface{}) {
		fmt.Printf("   "+format+"\n", args...)
	})
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	fmt.Println()
	fmt.Printf("✅ %d demo labels written. Try: labelctl lookup 244\n", res.Written)
}

func demoRecords() ([]models.ProductionLabel, error) {
	// Round-trip through JSON so numbers arrive the way the API delivers them
	raw, err := json.Marshal(demoRows)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rows []powerbi.Row
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}

	records, _ := labelsync.NewNormalizer().NormalizeAll(rows)
	return labelsync.Deduplicate(records), nil
}
