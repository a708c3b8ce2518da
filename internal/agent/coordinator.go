// Package agent orchestrates the extraction-and-sync pipeline: drain
// the buffer, extract, chunk, deliver, re-buffer failures, report
// health. One cycle at a time; the buffer is the only shared state and
// every touch goes through its atomic operations.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/restosync/pos-agent/internal/buffer"
	"github.com/restosync/pos-agent/internal/chunker"
	"github.com/restosync/pos-agent/internal/config"
	"github.com/restosync/pos-agent/internal/delivery"
	"github.com/restosync/pos-agent/internal/metrics"
	"github.com/restosync/pos-agent/internal/model"
	"github.com/restosync/pos-agent/internal/source"
)

// Version is reported in every payload and heartbeat.
const Version = "2.0.0"

const lastSyncKey = "last_sync"

// degradedAfter is how many consecutive failed deliveries flip the
// heartbeat status to degraded.
const degradedAfter = 3

// ErrBufferUnavailable marks a failed write to the durable buffer.
// Without the buffer nothing the agent does is crash-safe, so callers
// treat this as fatal instead of retrying on the next tick.
var ErrBufferUnavailable = errors.New("sync buffer unavailable")

type Coordinator struct {
	cfg       config.Config
	queue     *buffer.Queue
	engine    *delivery.Engine
	transport delivery.Transport
	src       source.DataSource
	log       *zap.Logger

	startTime time.Time

	mu         sync.Mutex
	lastSync   *time.Time
	syncErrors int // consecutive delivery failures
}

func NewCoordinator(
	cfg config.Config,
	queue *buffer.Queue,
	engine *delivery.Engine,
	transport delivery.Transport,
	src source.DataSource,
	log *zap.Logger,
) *Coordinator {
	c := &Coordinator{
		cfg:       cfg,
		queue:     queue,
		engine:    engine,
		transport: transport,
		src:       src,
		log:       log,
		startTime: time.Now(),
	}

	// last_sync survives restarts so heartbeats stay truthful
	if v, ok, err := queue.GetStatus(context.Background(), lastSyncKey); err == nil && ok {
		if t, perr := time.Parse(time.RFC3339, v); perr == nil {
			c.lastSync = &t
		}
	}

	return c
}

// CycleSummary is what one cycle accomplished, in records.
type CycleSummary struct {
	Redelivered int
	Synced      int
	Buffered    int
}

// RunCycle runs one full cycle over the configured lookback window.
func (c *Coordinator) RunCycle(ctx context.Context) (CycleSummary, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -c.cfg.Sync.LookbackDays)
	return c.runCycle(ctx, start, end)
}

// RunCycleAt runs one full cycle extracting a single specific day.
func (c *Coordinator) RunCycleAt(ctx context.Context, day time.Time) (CycleSummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return c.runCycle(ctx, start, start.AddDate(0, 0, 1))
}

func (c *Coordinator) runCycle(ctx context.Context, start, end time.Time) (CycleSummary, error) {
	c.log.Info("cycle started",
		zap.Time("window_start", start),
		zap.Time("window_end", end))

	var summary CycleSummary

	// Phase 1: redelivery. A failure here is not fatal to the cycle;
	// extraction still runs so fresh data keeps getting buffered.
	summary.Redelivered = c.redeliverPending(ctx)

	// Phases 2 and 3
	synced, buffered, err := c.syncWindow(ctx, start, end)
	summary.Synced = synced
	summary.Buffered = buffered

	c.log.Info("cycle complete",
		zap.Int("redelivered_records", summary.Redelivered),
		zap.Int("synced_records", summary.Synced),
		zap.Int("buffered_records", summary.Buffered))

	return summary, err
}

// redeliverPending drains buffered batches oldest first. The first
// failed redelivery stops the phase: the endpoint is down, and further
// attempts this cycle would just burn the backoff budget.
func (c *Coordinator) redeliverPending(ctx context.Context) int {
	batches, err := c.queue.ListPending(ctx, c.cfg.Sync.PendingLimit)
	if err != nil {
		c.log.Error("list pending failed", zap.Error(err))
		return 0
	}
	if len(batches) == 0 {
		return 0
	}

	c.log.Info("processing pending batches", zap.Int("count", len(batches)))

	redelivered := 0
	for _, b := range batches {
		if b.RetryCount >= c.cfg.Sync.RetryCeiling {
			c.log.Warn("batch abandoned, skipping",
				zap.String("id", b.ID),
				zap.Int("retry_count", b.RetryCount),
				zap.Int("ceiling", c.cfg.Sync.RetryCeiling))
			continue
		}

		dur, err := c.engine.Deliver(ctx, json.RawMessage(b.Payload))
		if err != nil {
			c.noteFailure()
			metrics.DeliveriesTotal.WithLabelValues("redelivery", "failure").Inc()
			if merr := c.queue.MarkFailed(ctx, b.ID, err.Error()); merr != nil {
				c.log.Error("mark failed errored", zap.String("id", b.ID), zap.Error(merr))
			}
			c.log.Warn("endpoint unreachable, stopping pending redelivery",
				zap.String("id", b.ID), zap.Error(err))
			break
		}

		if err := c.queue.MarkDelivered(ctx, b.ID, dur); err != nil {
			c.log.Error("mark delivered errored", zap.String("id", b.ID), zap.Error(err))
			continue
		}
		c.noteSuccess()
		metrics.DeliveriesTotal.WithLabelValues("redelivery", "success").Inc()
		metrics.RecordsTotal.WithLabelValues("redelivered").Add(float64(b.RecordCount))
		redelivered += b.RecordCount
	}

	return redelivered
}

// syncWindow extracts [start, end), chunks, and delivers each chunk,
// buffering what the endpoint refuses. Used by both the regular cycle
// and historical backfill.
func (c *Coordinator) syncWindow(ctx context.Context, start, end time.Time) (synced, buffered int, err error) {
	result, err := c.src.Extract(ctx, start, end)
	if err != nil {
		c.log.Error("extraction failed", zap.Error(err))
		return 0, 0, fmt.Errorf("extract: %w", err)
	}

	total := result.TotalRecords()
	if total == 0 {
		c.log.Info("no new data to sync")
		return 0, 0, nil
	}
	c.log.Info("extracted records", zap.Int("count", total))

	chunks := chunker.Split(result, c.cfg.Sync.ChunkSize)
	if len(chunks) > 1 {
		c.log.Info("split extraction into chunks",
			zap.Int("records", total),
			zap.Int("chunks", len(chunks)),
			zap.Int("chunk_size", c.cfg.Sync.ChunkSize))
	}

	now := time.Now()
	for i, chunk := range chunks {
		if chunk.RecordCount == 0 {
			continue
		}

		payload := model.SyncPayload{
			StoreID:        c.cfg.StoreID,
			Data:           chunk.Data,
			ExtractionTime: now.Format(model.ExtractionTimeLayout),
			AgentVersion:   Version,
			ChunkInfo: &model.ChunkInfo{
				ChunkNumber:  i + 1,
				TotalChunks:  len(chunks),
				ChunkRecords: chunk.RecordCount,
			},
		}

		if _, derr := c.engine.Deliver(ctx, payload); derr != nil {
			c.noteFailure()
			metrics.DeliveriesTotal.WithLabelValues("fresh", "failure").Inc()

			raw, merr := json.Marshal(payload)
			if merr != nil {
				c.log.Error("marshal chunk payload failed", zap.Error(merr))
				continue
			}
			id, qerr := c.queue.Enqueue(ctx, c.cfg.StoreID, raw, chunk.RecordCount)
			if qerr != nil {
				// durability is the core contract; losing the buffer is fatal
				return synced, buffered, fmt.Errorf("%w: buffer chunk: %v", ErrBufferUnavailable, qerr)
			}
			metrics.RecordsTotal.WithLabelValues("buffered").Add(float64(chunk.RecordCount))
			buffered += chunk.RecordCount
			c.log.Warn("chunk buffered for later sync",
				zap.Int("chunk", i+1),
				zap.Int("total_chunks", len(chunks)),
				zap.String("batch_id", id),
				zap.Error(derr))
			continue
		}

		c.noteSuccess()
		metrics.DeliveriesTotal.WithLabelValues("fresh", "success").Inc()
		metrics.RecordsTotal.WithLabelValues("synced").Add(float64(chunk.RecordCount))
		synced += chunk.RecordCount
	}

	return synced, buffered, nil
}

// SyncWindow is the exported entry point for historical backfill.
func (c *Coordinator) SyncWindow(ctx context.Context, start, end time.Time) (synced, buffered int, err error) {
	return c.syncWindow(ctx, start, end)
}

func (c *Coordinator) noteSuccess() {
	now := time.Now()
	c.mu.Lock()
	c.lastSync = &now
	c.syncErrors = 0
	c.mu.Unlock()

	if err := c.queue.SetStatus(context.Background(), lastSyncKey, now.Format(time.RFC3339)); err != nil {
		c.log.Error("persist last_sync failed", zap.Error(err))
	}
}

func (c *Coordinator) noteFailure() {
	c.mu.Lock()
	c.syncErrors++
	c.mu.Unlock()
}

// Heartbeat posts a best-effort status report. It never returns an
// error and never retries: observability must not destabilize the
// pipeline.
func (c *Coordinator) Heartbeat(ctx context.Context) {
	snap, err := c.queue.Stats(ctx, c.cfg.Sync.RetryCeiling)
	if err != nil {
		c.log.Warn("heartbeat stats failed", zap.Error(err))
		metrics.HeartbeatsTotal.WithLabelValues("failure").Inc()
		return
	}
	metrics.PendingBatches.Set(float64(snap.PendingBatches))

	c.mu.Lock()
	status := "healthy"
	if c.syncErrors >= degradedAfter {
		status = "degraded"
	}
	var lastSync *string
	if c.lastSync != nil {
		s := c.lastSync.Format(time.RFC3339)
		lastSync = &s
	}
	c.mu.Unlock()

	hb := model.Heartbeat{
		StoreID:        c.cfg.StoreID,
		AgentVersion:   Version,
		Timestamp:      time.Now().Format(time.RFC3339),
		Status:         status,
		LastSync:       lastSync,
		PendingRecords: snap.PendingRecords,
		Synced24h:      snap.Synced24hRecords,
		UptimeSeconds:  int64(time.Since(c.startTime).Seconds()),
	}

	hbURL, err := HeartbeatURL(c.cfg.Endpoint)
	if err != nil {
		c.log.Warn("heartbeat url invalid", zap.Error(err))
		metrics.HeartbeatsTotal.WithLabelValues("failure").Inc()
		return
	}

	code, _, err := c.transport.Post(ctx, hbURL, hb, c.cfg.Endpoint.HeartbeatTimeout)
	switch {
	case err != nil:
		c.log.Warn("heartbeat send failed", zap.Error(err))
		metrics.HeartbeatsTotal.WithLabelValues("failure").Inc()
	case code != http.StatusOK:
		c.log.Warn("heartbeat rejected", zap.Int("status", code))
		metrics.HeartbeatsTotal.WithLabelValues("failure").Inc()
	default:
		c.log.Debug("heartbeat sent",
			zap.String("status", status),
			zap.Int("pending_records", snap.PendingRecords))
		metrics.HeartbeatsTotal.WithLabelValues("success").Inc()
	}
}

// HeartbeatURL joins the heartbeat path onto the ingest endpoint's
// scheme and host.
func HeartbeatURL(ep config.EndpointConfig) (string, error) {
	u, err := url.Parse(ep.URL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("endpoint url %q has no scheme or host", ep.URL)
	}
	return u.Scheme + "://" + u.Host + ep.HeartbeatPath, nil
}

// Housekeeping purges buffer rows past the retention age. Errors are
// logged only; retention is bounded growth, not correctness.
func (c *Coordinator) Housekeeping(ctx context.Context) {
	deleted, err := c.queue.PurgeOlderThan(ctx, c.cfg.Sync.Retention)
	if err != nil {
		c.log.Error("housekeeping purge failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		c.log.Info("purged old buffer rows", zap.Int64("deleted", deleted))
	}
}
