package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSyncRun(t *testing.T) {
	before := testutil.ToFloat64(SyncRunsTotal.WithLabelValues("succeeded", ""))
	written := testutil.ToFloat64(SyncRecordsWritten)

	start := time.Now()
	RecordSyncRun("succeeded", "", start, start.Add(2*time.Second), 125, 0)

	if got := testutil.ToFloat64(SyncRunsTotal.WithLabelValues("succeeded", "")); got != before+1 {
		t.Errorf("runs counter = %v, want %v", got, before+1)
	}
	if got := testutil.ToFloat64(SyncRecordsWritten); got != written+125 {
		t.Errorf("records counter = %v, want %v", got, written+125)
	}
}

func TestRecordLookup(t *testing.T) {
	tests := []struct {
		found   int
		err     error
		outcome string
	}{
		{2, nil, "found"},
		{0, nil, "empty"},
		{0, errors.New("down"), "error"},
	}
	for _, tt := range tests {
		before := testutil.ToFloat64(LabelLookupsTotal.WithLabelValues(tt.outcome))
		RecordLookup(tt.found, tt.err)
		if got := testutil.ToFloat64(LabelLookupsTotal.WithLabelValues(tt.outcome)); got != before+1 {
			t.Errorf("%s counter = %v, want %v", tt.outcome, got, before+1)
		}
	}
}
