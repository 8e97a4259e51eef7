package labelsync

import (
	"context"
	"fmt"
	"strings"

	"github.com/xelth-com/argoxlabels/internal/apperr"
	"github.com/xelth-com/argoxlabels/internal/models"
)

// BatchSize is the number of records per upsert statement
const BatchSize = 50

// BatchPolicy decides what happens after a batch fails
type BatchPolicy string

const (
	// PolicyAbort stops at the first failed batch and fails the run
	PolicyAbort BatchPolicy = "abort"
	// PolicyContinue logs the failed batch and moves on to the next one
	PolicyContinue BatchPolicy = "continue"
)

// ParsePolicy maps a config value to a policy, defaulting to abort
func ParsePolicy(s string) BatchPolicy {
	if BatchPolicy(s) == PolicyContinue {
		return PolicyContinue
	}
	return PolicyAbort
}

// PolicyFromString accepts only "abort" or "continue", ignoring case
func PolicyFromString(s string) (BatchPolicy, error) {
	switch p := BatchPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyAbort, PolicyContinue:
		return p, nil
	}
	return "", apperr.New(apperr.KindMalformedInput,
		fmt.Sprintf("batch policy must be 'abort' or 'continue', got %q", s), nil)
}

// Store is the write side of the label table
type Store interface {
	UpsertBatch(ctx context.Context, records []models.ProductionLabel) error
}

// UpsertResult summarises one Upsert call
type UpsertResult struct {
	Written       int
	Batches       int
	FailedBatches int
}

// Upserter writes records in fixed-size batches, one at a time, in order
type Upserter struct {
	store     Store
	batchSize int
	policy    BatchPolicy
}

// NewUpserter creates an upserter using BatchSize
func NewUpserter(store Store, policy BatchPolicy) *Upserter {
	return &Upserter{store: store, batchSize: BatchSize, policy: policy}
}

// Batches splits records into contiguous chunks of size n; the last may be shorter
func Batches(records []models.ProductionLabel, n int) [][]models.ProductionLabel {
	if n <= 0 {
		n = BatchSize
	}
	var out [][]models.ProductionLabel
	for start := 0; start < len(records); start += n {
		end := start + n
		if end > len(records) {
			end = len(records)
		}
		out = append(out, records[start:end])
	}
	return out
}

// Upsert submits every batch sequentially and reports progress through logf.
// Under PolicyAbort the first failure is returned as a storage_write error.
func (u *Upserter) Upsert(ctx context.Context, records []models.ProductionLabel, logf func(string, ...interface{})) (UpsertResult, error) {
	var res UpsertResult
	batches := Batches(records, u.batchSize)
	res.Batches = len(batches)

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return res, apperr.New(apperr.KindStorageWrite, fmt.Sprintf("batch %d not submitted", i+1), err)
		}

		if err := u.store.UpsertBatch(ctx, batch); err != nil {
			res.FailedBatches++
			e, ok := apperr.As(err)
			if !ok {
				e = apperr.New(apperr.KindStorageWrite, "upsert failed", err)
			}
			e = e.WithStage(fmt.Sprintf("upserting batch %d/%d", i+1, len(batches)))
			logf("Batch %d/%d (%d records) failed: %v", i+1, len(batches), len(batch), err)

			if u.policy == PolicyAbort {
				return res, e
			}
			continue
		}

		res.Written += len(batch)
		logf("Batch %d/%d saved (%d/%d records)", i+1, len(batches), res.Written, len(records))
	}
	return res, nil
}
