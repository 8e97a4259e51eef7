package labelsync

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xelth-com/argoxlabels/internal/apperr"
	"github.com/xelth-com/argoxlabels/internal/config"
	"github.com/xelth-com/argoxlabels/internal/metrics"
)

// ErrRunInProgress is returned when a trigger arrives while a run is active
var ErrRunInProgress = errors.New("a sync run is already in progress")

// Listener is notified of every progress line of every run
type Listener interface {
	SyncLog(runID, line string)
	SyncDone(result *Result, err error)
}

// Service serialises sync runs and optionally schedules them
type Service struct {
	pipeline *Pipeline
	defaults Request
	interval time.Duration
	listener Listener

	running sync.Mutex

	mu   sync.RWMutex
	last *Result

	started bool
	stop    chan struct{}
	done    chan struct{}
}

// NewService creates a sync service. Fields missing from a trigger are taken
// from defaults; interval <= 0 disables the scheduler.
func NewService(pipeline *Pipeline, defaults Request, interval time.Duration) *Service {
	return &Service{
		pipeline: pipeline,
		defaults: defaults,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// SetListener registers the listener receiving live progress
func (s *Service) SetListener(l Listener) {
	s.listener = l
}

// Trigger runs one sync unless another is already active
func (s *Service) Trigger(ctx context.Context, req Request, sink Sink) (*Result, error) {
	if !s.running.TryLock() {
		metrics.SyncRejected.Inc()
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	req = req.WithDefaults(s.defaults)

	runID := uuid.New().String()
	result, err := s.pipeline.RunWithID(ctx, runID, req, func(line string) {
		log.Printf("🔄 Sync: %s", line)
		if s.listener != nil {
			s.listener.SyncLog(runID, line)
		}
		if sink != nil {
			sink(line)
		}
	})

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()

	metrics.RecordSyncRun(string(result.State), string(apperr.KindOf(err)),
		result.StartedAt, result.FinishedAt, result.RecordsWritten, result.FailedBatches)

	if s.listener != nil {
		s.listener.SyncDone(result, err)
	}
	if err != nil {
		log.Printf("❌ Sync run failed: %v", err)
	} else {
		log.Printf("✅ Sync run finished: %d records written", result.RecordsWritten)
	}
	return result, err
}

// LastResult returns the outcome of the most recent run, or nil
func (s *Service) LastResult() *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Start begins the background synchronization loop
func (s *Service) Start() {
	s.started = true
	if s.interval <= 0 {
		log.Println("Scheduled sync disabled: SYNC_INTERVAL_MINUTES not set")
		close(s.done)
		return
	}

	go func() {
		defer close(s.done)
		log.Printf("📡 Scheduled sync started (every %s)", s.interval)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
				if _, err := s.Trigger(ctx, Request{}, nil); errors.Is(err, ErrRunInProgress) {
					log.Println("⏭️  Scheduled sync skipped: previous run still active")
				}
				cancel()
			case <-s.stop:
				log.Println("🛑 Scheduled sync stopped")
				return
			}
		}
	}()
}

// Stop halts the scheduler and waits for it to exit
func (s *Service) Stop() {
	if !s.started {
		return
	}
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done
}

// DefaultsFromConfig builds the request used for fields a trigger leaves empty
func DefaultsFromConfig(c config.PowerBIConfig) Request {
	return Request{
		TenantID:     c.TenantID,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Scope:        c.Scope,
		GroupID:      c.GroupID,
		DatasetID:    c.DatasetID,
		TableName:    c.Table,
	}
}
