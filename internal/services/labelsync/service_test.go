package labelsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xelth-com/argoxlabels/internal/apperr"
	"github.com/xelth-com/argoxlabels/internal/services/powerbi"
)

// blockingSource holds Authenticate until release is closed
type blockingSource struct {
	fakeSource
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSource) Authenticate(ctx context.Context, creds powerbi.Credentials) (string, error) {
	close(b.entered)
	<-b.release
	return b.fakeSource.Authenticate(ctx, creds)
}

type recordingListener struct {
	mu    sync.Mutex
	lines map[string][]string
	done  []*Result
}

func (l *recordingListener) SyncLog(runID, line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lines == nil {
		l.lines = map[string][]string{}
	}
	l.lines[runID] = append(l.lines[runID], line)
}

func (l *recordingListener) SyncDone(result *Result, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done = append(l.done, result)
}

func TestServiceRejectsConcurrentTrigger(t *testing.T) {
	src := &blockingSource{
		fakeSource: fakeSource{rows: rowsFor(2)},
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	svc := NewService(NewPipeline(src, newMemoryStore(), PolicyAbort), validRequest, 0)

	errc := make(chan error, 1)
	go func() {
		_, err := svc.Trigger(context.Background(), Request{}, nil)
		errc <- err
	}()

	<-src.entered
	if _, err := svc.Trigger(context.Background(), Request{}, nil); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("second trigger: got %v, want ErrRunInProgress", err)
	}

	close(src.release)
	if err := <-errc; err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// Once the first run is over a new trigger is accepted
	src.entered = make(chan struct{})
	if _, err := svc.Trigger(context.Background(), Request{}, nil); err != nil {
		t.Errorf("trigger after completion: %v", err)
	}
}

func TestServiceMergesDefaultsAndNotifiesListener(t *testing.T) {
	src := &fakeSource{rows: rowsFor(4)}
	svc := NewService(NewPipeline(src, newMemoryStore(), PolicyAbort), validRequest, 0)
	listener := &recordingListener{}
	svc.SetListener(listener)

	var sinkLines []string
	res, err := svc.Trigger(context.Background(), Request{TableName: "Outra"}, func(line string) {
		sinkLines = append(sinkLines, line)
	})
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	if src.gotDataset.Table != "Outra" {
		t.Errorf("explicit table name should win, got %q", src.gotDataset.Table)
	}
	if src.gotDataset.DatasetID != validRequest.DatasetID {
		t.Errorf("dataset id should come from defaults, got %q", src.gotDataset.DatasetID)
	}

	if len(listener.lines[res.RunID]) != len(res.LogLines) {
		t.Errorf("listener saw %d lines, want %d", len(listener.lines[res.RunID]), len(res.LogLines))
	}
	if len(sinkLines) != len(res.LogLines) {
		t.Errorf("caller sink saw %d lines, want %d", len(sinkLines), len(res.LogLines))
	}
	if len(listener.done) != 1 || listener.done[0] != res {
		t.Errorf("SyncDone should be called once with the result")
	}
	if svc.LastResult() != res {
		t.Error("LastResult should return the latest run")
	}
}

func TestServiceStopWithoutStart(t *testing.T) {
	svc := NewService(NewPipeline(&fakeSource{}, newMemoryStore(), PolicyAbort), validRequest, 0)

	done := make(chan struct{})
	go func() {
		svc.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a service that never started")
	}
}

func TestServiceSchedulerDisabled(t *testing.T) {
	svc := NewService(NewPipeline(&fakeSource{}, newMemoryStore(), PolicyAbort), validRequest, 0)
	svc.Start()
	svc.Stop()
	if svc.LastResult() != nil {
		t.Error("disabled scheduler must not run a sync")
	}
}

func TestParsePolicy(t *testing.T) {
	if ParsePolicy("continue") != PolicyContinue {
		t.Error("continue not parsed")
	}
	for _, s := range []string{"", "abort", "whatever"} {
		if ParsePolicy(s) != PolicyAbort {
			t.Errorf("ParsePolicy(%q) should default to abort", s)
		}
	}
}

func TestPolicyFromString(t *testing.T) {
	tests := []struct {
		in   string
		want BatchPolicy
		ok   bool
	}{
		{"abort", PolicyAbort, true},
		{"Continue", PolicyContinue, true},
		{"contnue", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := PolicyFromString(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("PolicyFromString(%q) = %q, %v", tt.in, got, err)
		}
		if err != nil && !apperr.Is(err, apperr.KindMalformedInput) {
			t.Errorf("PolicyFromString(%q) kind = %q", tt.in, apperr.KindOf(err))
		}
	}
}
