package labelsync

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/xelth-com/argoxlabels/internal/apperr"
	"github.com/xelth-com/argoxlabels/internal/models"
	"github.com/xelth-com/argoxlabels/internal/services/powerbi"
)

// fakeSource returns canned rows and records which calls were made
type fakeSource struct {
	authErr  error
	queryErr error
	rows     []powerbi.Row

	authCalls  int
	queryCalls int
	gotToken   string
	gotDataset powerbi.Dataset
}

func (f *fakeSource) Authenticate(ctx context.Context, creds powerbi.Credentials) (string, error) {
	f.authCalls++
	if f.authErr != nil {
		return "", f.authErr
	}
	return "token-" + creds.ClientID, nil
}

func (f *fakeSource) ExecuteQuery(ctx context.Context, token string, ds powerbi.Dataset) ([]powerbi.Row, error) {
	f.queryCalls++
	f.gotToken = token
	f.gotDataset = ds
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.rows, nil
}

// memoryStore emulates a table with a unique index on the composite key
type memoryStore struct {
	mu       sync.Mutex
	rows     map[models.LabelKey]models.ProductionLabel
	batches  []int
	failAt   map[int]error // 1-based batch number -> error
	inFlight int
	overlap  bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: map[models.LabelKey]models.ProductionLabel{}, failAt: map[int]error{}}
}

func (m *memoryStore) UpsertBatch(ctx context.Context, records []models.ProductionLabel) error {
	m.mu.Lock()
	m.inFlight++
	if m.inFlight > 1 {
		m.overlap = true
	}
	m.batches = append(m.batches, len(records))
	n := len(m.batches)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if err, ok := m.failAt[n]; ok {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		m.rows[rec.Key()] = rec
	}
	return nil
}

var validRequest = Request{
	TenantID:     "tenant",
	ClientID:     "client",
	ClientSecret: "secret",
	Scope:        "scope/.default",
	GroupID:      "group",
	DatasetID:    "dataset",
	TableName:    "Producao",
}

func rowsFor(n int) []powerbi.Row {
	rows := make([]powerbi.Row, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, powerbi.Row{
			"[ord_in_codigo]":         json.Number(strconv.Itoa(i)),
			"[orl_st_lotefabricacao]": "L" + strconv.Itoa(i),
			"[pro_st_descricao]":      "Produto " + strconv.Itoa(i),
		})
	}
	return rows
}

func TestPipelineHappyPath(t *testing.T) {
	src := &fakeSource{rows: rowsFor(3)}
	store := newMemoryStore()

	var streamed []string
	res, err := NewPipeline(src, store, PolicyAbort).Run(context.Background(), validRequest, func(line string) {
		streamed = append(streamed, line)
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.State != StateSucceeded {
		t.Errorf("state = %s, want succeeded", res.State)
	}
	if res.RecordsWritten != 3 {
		t.Errorf("RecordsWritten = %d, want 3", res.RecordsWritten)
	}
	if src.gotToken != "token-client" {
		t.Errorf("query should use the acquired token, got %q", src.gotToken)
	}
	if src.gotDataset.Table != "Producao" || src.gotDataset.GroupID != "group" {
		t.Errorf("unexpected dataset %+v", src.gotDataset)
	}
	if len(streamed) != len(res.LogLines) {
		t.Errorf("sink saw %d lines, result has %d", len(streamed), len(res.LogLines))
	}
	if res.RunID == "" {
		t.Error("run id should be set")
	}
}

func TestPipelineZeroRowsSucceeds(t *testing.T) {
	src := &fakeSource{rows: []powerbi.Row{}}
	store := newMemoryStore()

	res, err := NewPipeline(src, store, PolicyAbort).Run(context.Background(), validRequest, nil)
	if err != nil {
		t.Fatalf("empty result must not fail: %v", err)
	}
	if res.State != StateSucceeded || res.RecordsWritten != 0 {
		t.Errorf("got state=%s written=%d, want succeeded/0", res.State, res.RecordsWritten)
	}
	if len(store.batches) != 0 {
		t.Errorf("no upsert expected, got %d batches", len(store.batches))
	}
}

func TestPipelineAuthFailureShortCircuits(t *testing.T) {
	authErr := apperr.HTTP(apperr.KindAuthentication, "Azure AD rejected the token request", 401, `{"error":"invalid_client"}`)
	src := &fakeSource{authErr: authErr, rows: rowsFor(5)}
	store := newMemoryStore()

	res, err := NewPipeline(src, store, PolicyAbort).Run(context.Background(), validRequest, nil)
	if err == nil {
		t.Fatal("expected failure")
	}
	if !apperr.Is(err, apperr.KindAuthentication) {
		t.Errorf("kind = %q, want authentication", apperr.KindOf(err))
	}
	if res == nil || res.State != StateFailed {
		t.Fatalf("expected failed result, got %+v", res)
	}
	if src.queryCalls != 0 {
		t.Errorf("query must not run after auth failure, ran %d times", src.queryCalls)
	}
	if len(store.batches) != 0 {
		t.Errorf("upsert must not run after auth failure")
	}
	lastLine := res.LogLines[len(res.LogLines)-1]
	if !strings.Contains(lastLine, "invalid_client") {
		t.Errorf("failure line should carry the remote body, got %q", lastLine)
	}
	if len(res.LogLines) < 3 {
		t.Errorf("earlier log lines must be preserved: %v", res.LogLines)
	}
}

func TestPipelineQueryFailures(t *testing.T) {
	for _, kind := range []apperr.Kind{apperr.KindQuery, apperr.KindRemoteQuery} {
		t.Run(string(kind), func(t *testing.T) {
			src := &fakeSource{queryErr: apperr.New(kind, "boom", nil)}
			store := newMemoryStore()

			res, err := NewPipeline(src, store, PolicyAbort).Run(context.Background(), validRequest, nil)
			if apperr.KindOf(err) != kind {
				t.Errorf("kind = %q, want %q", apperr.KindOf(err), kind)
			}
			if res.State != StateFailed {
				t.Errorf("state = %s", res.State)
			}
			if len(store.batches) != 0 {
				t.Error("no upsert after query failure")
			}
		})
	}
}

func TestPipelineMalformedRequest(t *testing.T) {
	src := &fakeSource{}
	req := validRequest
	req.ClientSecret = ""
	req.DatasetID = " "

	res, err := NewPipeline(src, newMemoryStore(), PolicyAbort).Run(context.Background(), req, nil)
	if !apperr.Is(err, apperr.KindMalformedInput) {
		t.Fatalf("expected malformed_input, got %v", err)
	}
	if !strings.Contains(err.Error(), "clientSecret") || !strings.Contains(err.Error(), "datasetId") {
		t.Errorf("error should name missing fields: %v", err)
	}
	if src.authCalls != 0 {
		t.Error("no network call for malformed input")
	}
	if res.State != StateFailed {
		t.Errorf("state = %s", res.State)
	}
}

func TestPipelineMissingStoreIsConfigError(t *testing.T) {
	src := &fakeSource{rows: rowsFor(1)}

	_, err := NewPipeline(src, nil, PolicyAbort).Run(context.Background(), validRequest, nil)
	if !apperr.Is(err, apperr.KindStorageConfig) {
		t.Fatalf("expected storage_config, got %v", err)
	}
	if src.authCalls != 0 {
		t.Error("configuration errors must surface before any network call")
	}
}

func TestPipelineBatchesSequentially(t *testing.T) {
	src := &fakeSource{rows: rowsFor(125)}
	store := newMemoryStore()

	res, err := NewPipeline(src, store, PolicyAbort).Run(context.Background(), validRequest, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := []int{50, 50, 25}
	if len(store.batches) != len(want) {
		t.Fatalf("batches = %v, want %v", store.batches, want)
	}
	for i := range want {
		if store.batches[i] != want[i] {
			t.Errorf("batch %d size = %d, want %d", i, store.batches[i], want[i])
		}
	}
	if store.overlap {
		t.Error("batches must not overlap")
	}
	if res.RecordsWritten != 125 {
		t.Errorf("RecordsWritten = %d, want 125", res.RecordsWritten)
	}
}

func TestPipelineIdempotent(t *testing.T) {
	src := &fakeSource{rows: append(rowsFor(60), rowsFor(10)...)}
	store := newMemoryStore()
	p := NewPipeline(src, store, PolicyAbort)

	if _, err := p.Run(context.Background(), validRequest, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := snapshot(store)

	if _, err := p.Run(context.Background(), validRequest, nil); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second := snapshot(store)

	if len(first) != 60 || len(second) != 60 {
		t.Fatalf("row counts changed: %d -> %d", len(first), len(second))
	}
	for key, rec := range first {
		other := second[key]
		if rec.ProductDescription != other.ProductDescription || rec.Composition != other.Composition ||
			rec.ProductCode != other.ProductCode || rec.BranchID != other.BranchID {
			t.Errorf("row %s changed between runs", key)
		}
	}
}

func snapshot(m *memoryStore) map[models.LabelKey]models.ProductionLabel {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[models.LabelKey]models.ProductionLabel, len(m.rows))
	for k, v := range m.rows {
		out[k] = v
	}
	return out
}

func TestPipelineAbortPolicyStopsAtFirstFailedBatch(t *testing.T) {
	src := &fakeSource{rows: rowsFor(125)}
	store := newMemoryStore()
	store.failAt[2] = apperr.New(apperr.KindStorageWrite, "no unique constraint", nil).WithCode(apperr.CodeConflictTargetMissing)

	res, err := NewPipeline(src, store, PolicyAbort).Run(context.Background(), validRequest, nil)
	if err == nil {
		t.Fatal("expected storage failure")
	}
	if apperr.CodeOf(err) != apperr.CodeConflictTargetMissing {
		t.Errorf("code = %q, want conflict_target_missing", apperr.CodeOf(err))
	}
	e, _ := apperr.As(err)
	if !strings.Contains(e.Stage, "batch 2/3") {
		t.Errorf("stage should name the batch, got %q", e.Stage)
	}
	if len(store.batches) != 2 {
		t.Errorf("third batch must not be attempted, saw %v", store.batches)
	}
	if res.RecordsWritten != 50 || res.State != StateFailed {
		t.Errorf("got written=%d state=%s", res.RecordsWritten, res.State)
	}
}

func TestPipelineContinuePolicyFinishesRemainingBatches(t *testing.T) {
	src := &fakeSource{rows: rowsFor(125)}
	store := newMemoryStore()
	store.failAt[2] = errors.New("deadlock detected")

	res, err := NewPipeline(src, store, PolicyContinue).Run(context.Background(), validRequest, nil)
	if err != nil {
		t.Fatalf("continue policy should not fail the run: %v", err)
	}
	if len(store.batches) != 3 {
		t.Errorf("all batches should be attempted, saw %v", store.batches)
	}
	if res.RecordsWritten != 75 || res.FailedBatches != 1 {
		t.Errorf("got written=%d failed=%d, want 75/1", res.RecordsWritten, res.FailedBatches)
	}
	found := false
	for _, line := range res.LogLines {
		if strings.Contains(line, "Batch 2/3") && strings.Contains(line, "deadlock detected") {
			found = true
		}
	}
	if !found {
		t.Errorf("failed batch should be logged: %v", res.LogLines)
	}
}

func TestPipelineDropsAndDeduplicatesBeforeUpsert(t *testing.T) {
	src := &fakeSource{rows: []powerbi.Row{
		{"[ord_in_codigo]": json.Number("9"), "[pro_st_descricao]": "old"},
		{"pro_st_descricao": "orphan"},
		{"[ord_in_codigo]": json.Number("9"), "[pro_st_descricao]": "new"},
	}}
	store := newMemoryStore()

	res, err := NewPipeline(src, store, PolicyAbort).Run(context.Background(), validRequest, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.RecordsWritten != 1 {
		t.Errorf("RecordsWritten = %d, want 1", res.RecordsWritten)
	}
	rec := store.rows[models.LabelKey{OrderID: 9, BranchID: 1}]
	if rec.ProductDescription != "new" {
		t.Errorf("last duplicate should win, got %q", rec.ProductDescription)
	}
}

func TestRequestWithDefaults(t *testing.T) {
	got := Request{ClientSecret: "override"}.WithDefaults(validRequest)
	if got.ClientSecret != "override" {
		t.Errorf("explicit field replaced: %q", got.ClientSecret)
	}
	if got.TenantID != validRequest.TenantID || got.TableName != validRequest.TableName {
		t.Errorf("defaults not applied: %+v", got)
	}
}
