package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/restosync/pos-agent/internal/model"
)

// slowSource blocks in Extract long enough for ticks to pile up, and
// counts how many extractions ever overlap.
type slowSource struct {
	delay time.Duration

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	calls       atomic.Int32
}

func (s *slowSource) Extract(ctx context.Context, start, end time.Time) (model.ExtractionResult, error) {
	s.calls.Add(1)

	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()

	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
	}

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()

	return model.ExtractionResult{}, nil
}

func TestSchedulerNeverOverlapsCycles(t *testing.T) {
	tr := newScriptedTransport()
	src := &slowSource{delay: 120 * time.Millisecond}

	cfg := testConfig()
	cfg.Sync.Interval = 30 * time.Millisecond
	cfg.Heartbeat.Interval = time.Hour

	coord, _ := newTestCoordinator(t, tr, src, cfg)
	sched := NewScheduler(coord, cfg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := sched.Run(ctx); err != nil {
		t.Fatalf("scheduler run: %v", err)
	}

	src.mu.Lock()
	max := src.maxInFlight
	src.mu.Unlock()
	if max > 1 {
		t.Errorf("cycles overlapped: max in-flight extractions = %d", max)
	}
	if src.calls.Load() < 1 {
		t.Errorf("initial cycle never ran")
	}
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	tr := newScriptedTransport()
	src := &slowSource{delay: 10 * time.Millisecond}

	cfg := testConfig()
	cfg.Sync.Interval = time.Hour
	cfg.Heartbeat.Interval = time.Hour

	coord, _ := newTestCoordinator(t, tr, src, cfg)
	sched := NewScheduler(coord, cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}

	calls := src.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if src.calls.Load() != calls {
		t.Error("new cycle started after shutdown")
	}
}

func TestSchedulerExitsOnBufferFailure(t *testing.T) {
	tr := newScriptedTransport()
	tr.errs[ingestURL] = errors.New("connection refused")
	src := &fakeSource{result: genResult("orderheaders", 10)}

	cfg := testConfig()
	cfg.Sync.Interval = time.Hour
	cfg.Heartbeat.Interval = time.Hour
	cfg.Sync.RetryAttempts = 1

	coord, q := newTestCoordinator(t, tr, src, cfg)
	// a closed database makes every buffer write fail
	_ = q.Close()

	sched := NewScheduler(coord, cfg, zap.NewNop())

	done := make(chan error, 1)
	go func() { done <- sched.Run(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrBufferUnavailable) {
			t.Fatalf("expected buffer failure to surface from Run, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler kept running after a buffer write failure")
	}
}
