package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/restosync/pos-agent/internal/config"
)

// Scheduler ticks the coordinator's jobs at their configured
// intervals. Sync cycles never overlap: if the previous cycle is still
// running when the next tick fires, the tick is skipped. Heartbeat and
// housekeeping run on their own timers and may interleave with a
// cycle; the buffer's per-operation transactions make that safe.
type Scheduler struct {
	coord *Coordinator
	cfg   config.Config
	log   *zap.Logger

	cycleRunning atomic.Bool
	wg           sync.WaitGroup
	fatal        chan error
}

func NewScheduler(coord *Coordinator, cfg config.Config, log *zap.Logger) *Scheduler {
	return &Scheduler{coord: coord, cfg: cfg, log: log, fatal: make(chan error, 1)}
}

// Run blocks until ctx is cancelled or a cycle reports the buffer
// unusable. An initial cycle and heartbeat fire immediately;
// afterwards everything is timer-driven. On cancellation no new work
// starts, and Run waits for an in-flight cycle to let its current
// network call finish or time out naturally.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("agent started",
		zap.String("version", Version),
		zap.String("store_id", s.cfg.StoreID),
		zap.Duration("sync_interval", s.cfg.Sync.Interval),
		zap.Duration("heartbeat_interval", s.cfg.Heartbeat.Interval))

	s.startCycle(ctx)
	s.coord.Heartbeat(ctx)

	syncTick := time.NewTicker(s.cfg.Sync.Interval)
	defer syncTick.Stop()
	hbTick := time.NewTicker(s.cfg.Heartbeat.Interval)
	defer hbTick.Stop()
	houseTick := time.NewTicker(24 * time.Hour)
	defer houseTick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("shutdown signal observed, waiting for in-flight cycle")
			s.wg.Wait()
			return nil
		case err := <-s.fatal:
			s.log.Error("buffer unusable, stopping", zap.Error(err))
			s.wg.Wait()
			return err
		case <-syncTick.C:
			s.startCycle(ctx)
		case <-hbTick.C:
			s.coord.Heartbeat(ctx)
		case <-houseTick.C:
			s.coord.Housekeeping(ctx)
		}
	}
}

func (s *Scheduler) startCycle(ctx context.Context) {
	if !s.cycleRunning.CompareAndSwap(false, true) {
		s.log.Warn("previous cycle still running, skipping tick")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.cycleRunning.Store(false)

		if _, err := s.coord.RunCycle(ctx); err != nil {
			if errors.Is(err, ErrBufferUnavailable) {
				select {
				case s.fatal <- err:
				default:
				}
				return
			}
			s.log.Error("cycle ended with error", zap.Error(err))
		}
	}()
}
