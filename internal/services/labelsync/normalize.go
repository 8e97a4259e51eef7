package labelsync

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xelth-com/argoxlabels/internal/models"
	"github.com/xelth-com/argoxlabels/internal/services/powerbi"
)

// columnKeys lists, per field, the raw keys tried in order. executeQueries
// returns "[name]" for SELECTCOLUMNS output on some datasets and bare "name" on
// others, so both are accepted with the bracketed form first.
var columnKeys = map[string][]string{
	models.ColOrderID:     candidates(models.ColOrderID),
	models.ColOpenedAt:    candidates(models.ColOpenedAt),
	models.ColBranchID:    candidates(models.ColBranchID),
	models.ColProductCode: candidates(models.ColProductCode),
	models.ColDescription: candidates(models.ColDescription),
	models.ColBatchCode:   candidates(models.ColBatchCode),
	models.ColComposition: candidates(models.ColComposition),
}

func candidates(column string) []string {
	return []string{"[" + column + "]", column}
}

// CandidateKeys exposes the lookup order for a column
func CandidateKeys(column string) []string {
	keys := columnKeys[column]
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalizer maps raw rows onto ProductionLabel records
type Normalizer struct {
	Now func() time.Time
}

// NewNormalizer creates a normalizer using the wall clock
func NewNormalizer() *Normalizer {
	return &Normalizer{Now: time.Now}
}

// Normalize converts one raw row. It returns false when no order id can be
// resolved; such rows are malformed source data and are dropped silently.
func (n *Normalizer) Normalize(row powerbi.Row) (models.ProductionLabel, bool) {
	orderID, ok := lookupInt(row, models.ColOrderID)
	if !ok {
		return models.ProductionLabel{}, false
	}

	rec := models.ProductionLabel{
		OrderID:            orderID,
		BranchID:           1,
		ProductCode:        lookupString(row, models.ColProductCode),
		ProductDescription: lookupString(row, models.ColDescription),
		BatchCode:          lookupString(row, models.ColBatchCode),
		Composition:        lookupString(row, models.ColComposition),
	}
	if branch, ok := lookupInt(row, models.ColBranchID); ok {
		rec.BranchID = branch
	}
	if rec.ProductDescription == "" {
		rec.ProductDescription = models.DefaultDescription
	}
	if opened, ok := lookupTime(row, models.ColOpenedAt); ok {
		rec.OpenedAt = opened
	} else {
		rec.OpenedAt = n.now()
	}

	if raw, err := json.Marshal(row); err == nil {
		rec.SourceRow = raw
	}
	return rec, true
}

// NormalizeAll converts rows preserving input order and reports how many were dropped
func (n *Normalizer) NormalizeAll(rows []powerbi.Row) ([]models.ProductionLabel, int) {
	out := make([]models.ProductionLabel, 0, len(rows))
	for _, row := range rows {
		if rec, ok := n.Normalize(row); ok {
			out = append(out, rec)
		}
	}
	return out, len(rows) - len(out)
}

func (n *Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now().UTC()
	}
	return time.Now().UTC()
}

// lookup returns the first candidate value that is present and not blank
func lookup(row powerbi.Row, column string) (interface{}, bool) {
	for _, key := range columnKeys[column] {
		v, ok := row[key]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func lookupString(row powerbi.Row, column string) string {
	for _, key := range columnKeys[column] {
		v, ok := row[key]
		if !ok || v == nil {
			continue
		}
		// blank values fall through; others are kept verbatim since lot codes
		// are part of the conflict key
		if s := toString(v); strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// lookupInt treats zero like a missing value so the next candidate or the
// default applies
func lookupInt(row powerbi.Row, column string) (int64, bool) {
	for _, key := range columnKeys[column] {
		v, ok := row[key]
		if !ok || v == nil {
			continue
		}
		if n, ok := toInt64(v); ok && n != 0 {
			return n, true
		}
	}
	return 0, false
}

func lookupTime(row powerbi.Row, column string) (time.Time, bool) {
	v, ok := lookup(row, column)
	if !ok {
		return time.Time{}, false
	}
	s := strings.TrimSpace(toString(v))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, true
		}
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return wholeFloat(f)
	case float64:
		return wholeFloat(val)
	case int:
		return int64(val), true
	case int64:
		return val, true
	case string:
		s := strings.TrimSpace(val)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return wholeFloat(f)
		}
	}
	return 0, false
}

func wholeFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}
