package lookup

import (
	"context"
	"errors"
	"testing"

	"github.com/xelth-com/argoxlabels/internal/apperr"
	"github.com/xelth-com/argoxlabels/internal/models"
)

type stubReader struct {
	records map[int64][]models.ProductionLabel
	err     error
	calls   int
}

func (s *stubReader) FindByOrderID(ctx context.Context, orderID int64) ([]models.ProductionLabel, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.records[orderID], nil
}

func TestFindUnknownOrderIsEmpty(t *testing.T) {
	svc := NewService(&stubReader{records: map[int64][]models.ProductionLabel{}})

	got, err := svc.Find(context.Background(), 404)
	if err != nil {
		t.Fatalf("not found must not be an error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestFindReturnsRecords(t *testing.T) {
	reader := &stubReader{records: map[int64][]models.ProductionLabel{
		244: {{OrderID: 244, BatchCode: "A"}, {OrderID: 244, BatchCode: "B"}},
	}}
	got, err := NewService(reader).Find(context.Background(), 244)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("got %d records, want 2", len(got))
	}
}

func TestFindPropagatesStorageErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apperr.Kind
	}{
		{"plain error", errors.New("connection refused"), apperr.KindStorageRead},
		{"typed error", apperr.New(apperr.KindStorageRead, "permission denied", nil), apperr.KindStorageRead},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(&stubReader{err: tt.err}).Find(context.Background(), 1)
			if apperr.KindOf(err) != tt.kind {
				t.Errorf("kind = %q, want %q", apperr.KindOf(err), tt.kind)
			}
		})
	}
}

func TestFindWithoutReader(t *testing.T) {
	_, err := NewService(nil).Find(context.Background(), 1)
	if !apperr.Is(err, apperr.KindStorageConfig) {
		t.Errorf("expected storage_config, got %v", err)
	}
}

func TestParseOrderID(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"244", 244, true},
		{" 12 ", 12, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseOrderID(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseOrderID(%q) = %d, %v", tt.in, got, err)
		}
		if err != nil && !apperr.Is(err, apperr.KindMalformedInput) {
			t.Errorf("ParseOrderID(%q) error kind = %q", tt.in, apperr.KindOf(err))
		}
	}
}

func TestSelect(t *testing.T) {
	records := []models.ProductionLabel{
		{OrderID: 1, BranchID: 1, BatchCode: "NEW"},
		{OrderID: 1, BranchID: 2, BatchCode: "OLD"},
		{OrderID: 1, BranchID: 1, BatchCode: "OLD"},
	}

	if rec, _ := Select(records, Selector{}); rec.BatchCode != "NEW" {
		t.Errorf("empty selector should pick the first record, got %+v", rec)
	}
	if rec, _ := Select(records, Selector{BranchID: 1, BatchCode: "OLD"}); rec.BranchID != 1 || rec.BatchCode != "OLD" {
		t.Errorf("unexpected selection %+v", rec)
	}
	if rec, _ := Select(records, Selector{BranchID: 2}); rec.BatchCode != "OLD" {
		t.Errorf("branch filter ignored: %+v", rec)
	}
	if _, ok := Select(records, Selector{BatchCode: "MISSING"}); ok {
		t.Error("no record should match")
	}
}
