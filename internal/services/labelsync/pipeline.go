package labelsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xelth-com/argoxlabels/internal/apperr"
	"github.com/xelth-com/argoxlabels/internal/services/powerbi"
)

// State is a step of a sync run. Transitions are linear; any failure jumps to Failed.
type State string

const (
	StateIdle           State = "idle"
	StateAuthenticating State = "authenticating"
	StateQuerying       State = "querying"
	StateTransforming   State = "transforming"
	StateUpserting      State = "upserting"
	StateSucceeded      State = "succeeded"
	StateFailed         State = "failed"
)

// Source is the remote side of a run: identity provider plus dataset query
type Source interface {
	Authenticate(ctx context.Context, creds powerbi.Credentials) (string, error)
	ExecuteQuery(ctx context.Context, token string, ds powerbi.Dataset) ([]powerbi.Row, error)
}

// Request carries everything one run needs from the caller
type Request struct {
	TenantID     string `json:"tenantId"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	Scope        string `json:"scope"`
	GroupID      string `json:"groupId"`
	DatasetID    string `json:"datasetId"`
	TableName    string `json:"tableName"`
}

// Validate reports every missing required field as one malformed_input error
func (r Request) Validate() error {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"tenantId", r.TenantID},
		{"clientId", r.ClientID},
		{"clientSecret", r.ClientSecret},
		{"scope", r.Scope},
		{"groupId", r.GroupID},
		{"datasetId", r.DatasetID},
		{"tableName", r.TableName},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return apperr.New(apperr.KindMalformedInput, "missing required fields: "+strings.Join(missing, ", "), nil)
	}
	return nil
}

// WithDefaults fills empty fields from d
func (r Request) WithDefaults(d Request) Request {
	fill := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	fill(&r.TenantID, d.TenantID)
	fill(&r.ClientID, d.ClientID)
	fill(&r.ClientSecret, d.ClientSecret)
	fill(&r.Scope, d.Scope)
	fill(&r.GroupID, d.GroupID)
	fill(&r.DatasetID, d.DatasetID)
	fill(&r.TableName, d.TableName)
	return r
}

// Sink receives human-readable progress lines as they are produced
type Sink func(line string)

// Result is the transient outcome of one run
type Result struct {
	RunID          string    `json:"runId"`
	State          State     `json:"state"`
	RecordsWritten int       `json:"count"`
	FailedBatches  int       `json:"failedBatches"`
	LogLines       []string  `json:"logs"`
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
}

// Pipeline runs authenticate → query → transform → upsert once per call
type Pipeline struct {
	source     Source
	store      Store
	normalizer *Normalizer
	policy     BatchPolicy
}

// NewPipeline wires the pipeline stages
func NewPipeline(source Source, store Store, policy BatchPolicy) *Pipeline {
	return &Pipeline{
		source:     source,
		store:      store,
		normalizer: NewNormalizer(),
		policy:     policy,
	}
}

// stageKinds classifies errors a stage returns without a kind of their own
var stageKinds = map[State]apperr.Kind{
	StateIdle:           apperr.KindMalformedInput,
	StateAuthenticating: apperr.KindAuthentication,
	StateQuerying:       apperr.KindQuery,
	StateTransforming:   apperr.KindQuery,
	StateUpserting:      apperr.KindStorageWrite,
}

type run struct {
	result *Result
	sink   Sink
}

func (r *run) logf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	r.result.LogLines = append(r.result.LogLines, line)
	if r.sink != nil {
		r.sink(line)
	}
}

func (r *run) enter(state State) {
	r.result.State = state
}

func (r *run) fail(stage State, err error) (*Result, error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.New(stageKinds[stage], "stage failed", err)
	}
	if e.Stage == "" {
		e = e.WithStage(string(stage))
	}
	r.logf("ERROR: %s", e.Error())
	r.result.State = StateFailed
	r.result.FinishedAt = time.Now().UTC()
	return r.result, e
}

// Run executes one sync. The returned Result is never nil: on failure it still
// holds every log line produced up to the failing stage.
func (p *Pipeline) Run(ctx context.Context, req Request, sink Sink) (*Result, error) {
	return p.RunWithID(ctx, uuid.New().String(), req, sink)
}

// RunWithID is Run with a caller-chosen run identifier
func (p *Pipeline) RunWithID(ctx context.Context, runID string, req Request, sink Sink) (*Result, error) {
	r := &run{
		result: &Result{
			RunID:     runID,
			State:     StateIdle,
			LogLines:  []string{},
			StartedAt: time.Now().UTC(),
		},
		sink: sink,
	}
	r.logf("Sync run %s started", r.result.RunID)

	if err := req.Validate(); err != nil {
		return r.fail(StateIdle, err)
	}
	if p.store == nil {
		return r.fail(StateIdle, apperr.New(apperr.KindStorageConfig, "no storage configured for upserts", nil))
	}

	// 1. Authenticate
	r.enter(StateAuthenticating)
	r.logf("Authenticating with Azure AD (tenant %s)...", req.TenantID)
	token, err := p.source.Authenticate(ctx, powerbi.Credentials{
		TenantID:     req.TenantID,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		Scope:        req.Scope,
	})
	if err != nil {
		return r.fail(StateAuthenticating, err)
	}
	r.logf("Azure AD token acquired")

	// 2. Query
	r.enter(StateQuerying)
	r.logf("Querying Power BI dataset %s (table %s)...", req.DatasetID, req.TableName)
	rows, err := p.source.ExecuteQuery(ctx, token, powerbi.Dataset{
		GroupID:   req.GroupID,
		DatasetID: req.DatasetID,
		Table:     req.TableName,
	})
	if err != nil {
		return r.fail(StateQuerying, err)
	}
	r.logf("%d raw rows received from Power BI", len(rows))

	if len(rows) == 0 {
		r.logf("No rows returned; check that the dataset has data")
		return r.succeed(), nil
	}

	// 3. Transform
	r.enter(StateTransforming)
	records, dropped := p.normalizer.NormalizeAll(rows)
	if dropped > 0 {
		r.logf("%d rows without an order number were skipped", dropped)
	}
	unique := Deduplicate(records)
	if removed := len(records) - len(unique); removed > 0 {
		r.logf("%d duplicates removed, %d unique records", removed, len(unique))
	}
	r.logf("%d records ready to save", len(unique))

	// 4. Upsert
	r.enter(StateUpserting)
	r.logf("Saving %d records in batches of %d...", len(unique), BatchSize)
	res, err := NewUpserter(p.store, p.policy).Upsert(ctx, unique, r.logf)
	r.result.RecordsWritten = res.Written
	r.result.FailedBatches = res.FailedBatches
	if err != nil {
		return r.fail(StateUpserting, err)
	}
	if res.FailedBatches > 0 {
		r.logf("%d of %d batches failed; %d records written", res.FailedBatches, res.Batches, res.Written)
	}

	return r.succeed(), nil
}

func (r *run) succeed() *Result {
	r.result.State = StateSucceeded
	r.result.FinishedAt = time.Now().UTC()
	r.logf("Sync completed: %d records written", r.result.RecordsWritten)
	return r.result
}
