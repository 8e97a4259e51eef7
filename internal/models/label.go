package models

import (
	"strconv"
	"time"

	"gorm.io/datatypes"
)

// Source column names, shared by the Power BI query and the storage table
const (
	ColOrderID     = "ord_in_codigo"
	ColOpenedAt    = "ord_dt_abertura_real"
	ColBranchID    = "fil_in_codigo"
	ColProductCode = "pro_st_alternativo"
	ColDescription = "pro_st_descricao"
	ColBatchCode   = "orl_st_lotefabricacao"
	ColComposition = "esv_st_valor"
)

// DefaultDescription is stored when the source row carries no description
const DefaultDescription = "Produto sem descrição"

// ConflictColumns is the composite key (order, branch, batch). The table must
// carry a unique index over exactly these columns for upserts to work.
var ConflictColumns = []string{ColOrderID, ColBranchID, ColBatchCode}

// ProductionLabel mirrors one production-order row pulled from Power BI
type ProductionLabel struct {
	ID                 int64          `gorm:"primaryKey" json:"id,omitempty"`
	OrderID            int64          `gorm:"column:ord_in_codigo;not null;uniqueIndex:idx_label_composite_key,priority:1" json:"ord_in_codigo"`
	OpenedAt           time.Time      `gorm:"column:ord_dt_abertura_real;index" json:"ord_dt_abertura_real"`
	BranchID           int64          `gorm:"column:fil_in_codigo;not null;default:1;uniqueIndex:idx_label_composite_key,priority:2" json:"fil_in_codigo"`
	ProductCode        string         `gorm:"column:pro_st_alternativo" json:"pro_st_alternativo"`
	ProductDescription string         `gorm:"column:pro_st_descricao" json:"pro_st_descricao"`
	BatchCode          string         `gorm:"column:orl_st_lotefabricacao;not null;default:'';uniqueIndex:idx_label_composite_key,priority:3" json:"orl_st_lotefabricacao"`
	Composition        string         `gorm:"column:esv_st_valor" json:"esv_st_valor"`
	SourceRow          datatypes.JSON `gorm:"column:source_row;type:jsonb" json:"-"`
}

// TableName is the default table; LABEL_TABLE overrides it at query time
func (ProductionLabel) TableName() string { return "production_labels" }

// Key returns the composite identity of the record
func (l ProductionLabel) Key() LabelKey {
	return LabelKey{OrderID: l.OrderID, BranchID: l.BranchID, BatchCode: l.BatchCode}
}

// LabelKey is the (order, branch, batch) conflict target
type LabelKey struct {
	OrderID   int64
	BranchID  int64
	BatchCode string
}

func (k LabelKey) String() string {
	return strconv.FormatInt(k.OrderID, 10) + "-" + strconv.FormatInt(k.BranchID, 10) + "-" + k.BatchCode
}
