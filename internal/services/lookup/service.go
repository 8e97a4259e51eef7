package lookup

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xelth-com/argoxlabels/internal/apperr"
	"github.com/xelth-com/argoxlabels/internal/models"
)

// Reader is the read side of the label table
type Reader interface {
	FindByOrderID(ctx context.Context, orderID int64) ([]models.ProductionLabel, error)
}

// Service answers label lookups by production order
type Service struct {
	reader Reader
}

// NewService creates a lookup service
func NewService(reader Reader) *Service {
	return &Service{reader: reader}
}

// ParseOrderID parses a user-supplied order number
func ParseOrderID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.KindMalformedInput, fmt.Sprintf("order id %q is not a positive integer", raw), nil)
	}
	return id, nil
}

// Find returns all records for the order. No rows is an empty slice, not an error.
func (s *Service) Find(ctx context.Context, orderID int64) ([]models.ProductionLabel, error) {
	if s.reader == nil {
		return nil, apperr.New(apperr.KindStorageConfig, "no storage configured for lookups", nil)
	}
	records, err := s.reader.FindByOrderID(ctx, orderID)
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		return nil, apperr.New(apperr.KindStorageRead, fmt.Sprintf("lookup of order %d failed", orderID), err)
	}
	if records == nil {
		records = []models.ProductionLabel{}
	}
	return records, nil
}

// Selector narrows the records of one order down to a single label
type Selector struct {
	BranchID  int64  // 0 matches any branch
	BatchCode string // empty matches any batch
}

// Select returns the first record matching sel. Records come newest first, so
// without a selector the most recent lot wins.
func Select(records []models.ProductionLabel, sel Selector) (models.ProductionLabel, bool) {
	for _, rec := range records {
		if sel.BranchID != 0 && rec.BranchID != sel.BranchID {
			continue
		}
		if sel.BatchCode != "" && rec.BatchCode != sel.BatchCode {
			continue
		}
		return rec, true
	}
	return models.ProductionLabel{}, false
}

// FindOne resolves a single label for printing
func (s *Service) FindOne(ctx context.Context, orderID int64, sel Selector) (models.ProductionLabel, bool, error) {
	records, err := s.Find(ctx, orderID)
	if err != nil {
		return models.ProductionLabel{}, false, err
	}
	rec, ok := Select(records, sel)
	return rec, ok, nil
}
