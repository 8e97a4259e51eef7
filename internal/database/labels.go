package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xelth-com/argoxlabels/internal/apperr"
	"github.com/xelth-com/argoxlabels/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Postgres SQLSTATE codes the label store reacts to
const (
	pgUndefinedTable       = "42P01"
	pgNoConflictConstraint = "42P10"
	pgCardinalityViolation = "21000"
)

// LabelStore persists production labels into a single named table
type LabelStore struct {
	writer *gorm.DB
	reader *gorm.DB
	table  string
}

// NewLabelStore creates a store on top of an open database
func NewLabelStore(db *DB, table string) *LabelStore {
	return &LabelStore{writer: db.DB, reader: db.Reader(), table: table}
}

// NewLabelStoreWithPools is used when the pools are managed elsewhere
func NewLabelStoreWithPools(writer, reader *gorm.DB, table string) *LabelStore {
	if reader == nil {
		reader = writer
	}
	return &LabelStore{writer: writer, reader: reader, table: table}
}

// Table returns the target table name
func (s *LabelStore) Table() string { return s.table }

// Migrate creates the table and the composite unique index the upsert relies on
func (s *LabelStore) Migrate() error {
	if err := s.writer.Table(s.table).AutoMigrate(&models.ProductionLabel{}); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", s.table, err)
	}
	return nil
}

// UpsertBatch writes one batch with ON CONFLICT (order, branch, batch) DO UPDATE
func (s *LabelStore) UpsertBatch(ctx context.Context, records []models.ProductionLabel) error {
	if len(records) == 0 {
		return nil
	}
	if err := upsertQuery(s.writer.WithContext(ctx), s.table, records).Error; err != nil {
		return classifyWriteError(s.table, err)
	}
	return nil
}

func upsertQuery(db *gorm.DB, table string, records []models.ProductionLabel) *gorm.DB {
	columns := make([]clause.Column, 0, len(models.ConflictColumns))
	for _, name := range models.ConflictColumns {
		columns = append(columns, clause.Column{Name: name})
	}

	return db.Table(table).Clauses(clause.OnConflict{
		Columns: columns,
		DoUpdates: clause.AssignmentColumns([]string{
			models.ColOpenedAt,
			models.ColProductCode,
			models.ColDescription,
			models.ColComposition,
			"source_row",
		}),
	}).Create(&records)
}

// FindByOrderID returns every stored record for the order, newest first.
// An unknown order yields an empty slice and no error.
func (s *LabelStore) FindByOrderID(ctx context.Context, orderID int64) ([]models.ProductionLabel, error) {
	var records []models.ProductionLabel

	err := withTableFallback(s.table, func(table string) error {
		records = records[:0]
		return s.reader.WithContext(ctx).
			Table(table).
			Where(models.ColOrderID+" = ?", orderID).
			Order(models.ColOpenedAt + " DESC").
			Order(models.ColBranchID).
			Order(models.ColBatchCode).
			Find(&records).Error
	})
	if err != nil {
		return nil, apperr.New(apperr.KindStorageRead, fmt.Sprintf("lookup of order %d failed", orderID), err)
	}
	if records == nil {
		records = []models.ProductionLabel{}
	}
	return records, nil
}

// withTableFallback retries with the lower-cased table name when the first
// reference is rejected as unknown. Postgres folds unquoted identifiers to lower
// case, so a table created unquoted as "Labels" is only reachable as "labels".
func withTableFallback(table string, run func(table string) error) error {
	err := run(table)
	if err == nil || pgCode(err) != pgUndefinedTable {
		return err
	}

	lower := strings.ToLower(table)
	if lower == table {
		return err
	}
	log.Printf("⚠️  Table %q not found, retrying as %q", table, lower)
	return run(lower)
}

func classifyWriteError(table string, err error) error {
	e := apperr.New(apperr.KindStorageWrite, "upsert into "+table+" failed", err)
	switch pgCode(err) {
	case pgNoConflictConstraint:
		e.Message = fmt.Sprintf("table %s has no unique constraint on (%s); create it before syncing",
			table, strings.Join(models.ConflictColumns, ", "))
		return e.WithCode(apperr.CodeConflictTargetMissing)
	case pgCardinalityViolation:
		return e.WithCode(apperr.CodeDuplicateInBatch)
	case pgUndefinedTable:
		return e.WithCode(apperr.CodeUndefinedTable)
	}
	return e
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// CheckSchema verifies the upsert precondition: the table exists and carries a
// unique index over exactly the conflict columns.
func (s *LabelStore) CheckSchema(ctx context.Context) error {
	var defs []string
	err := withTableFallback(s.table, func(table string) error {
		defs = defs[:0]
		var exists bool
		if err := s.writer.WithContext(ctx).
			Raw("SELECT to_regclass(?) IS NOT NULL", table).
			Scan(&exists).Error; err != nil {
			return err
		}
		if !exists {
			return &pgconn.PgError{Code: pgUndefinedTable, Message: fmt.Sprintf("relation %q does not exist", table)}
		}
		return s.writer.WithContext(ctx).
			Raw("SELECT indexdef FROM pg_indexes WHERE tablename = ?", table).
			Scan(&defs).Error
	})
	if err != nil {
		return classifyWriteError(s.table, err)
	}
	if !uniqueIndexCovers(defs, models.ConflictColumns) {
		return apperr.New(apperr.KindStorageWrite,
			fmt.Sprintf("table %s has no unique index on (%s)", s.table, strings.Join(models.ConflictColumns, ", ")), nil).
			WithCode(apperr.CodeConflictTargetMissing)
	}
	return nil
}

// uniqueIndexCovers reports whether one of the index definitions is a unique
// index over exactly cols, in any order.
func uniqueIndexCovers(defs []string, cols []string) bool {
	for _, def := range defs {
		if !strings.HasPrefix(strings.ToUpper(def), "CREATE UNIQUE INDEX") {
			continue
		}
		lp, rp := strings.LastIndex(def, "("), strings.LastIndex(def, ")")
		if lp < 0 || rp < lp {
			continue
		}
		parts := strings.Split(def[lp+1:rp], ",")
		if len(parts) != len(cols) {
			continue
		}
		have := map[string]bool{}
		for _, p := range parts {
			have[strings.Trim(strings.TrimSpace(p), `"`)] = true
		}
		all := true
		for _, c := range cols {
			if !have[c] {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}
